package wasm

// Module is a module of one exported function and one exported memory.
type Module struct {
	Name    string
	Params  []ValType
	Results []ValType
	// Locals are the function's locals beyond its parameters.
	Locals []ValType
	// Body is the function's expression, without the final end.
	Body []byte
	// MemoryPages is the minimum size of the memory.
	MemoryPages uint32
}

// MemoryExport is the name the memory is exported under.
const MemoryExport = "memory"

// Encode returns the binary encoding of the module.
func (m *Module) Encode() []byte {
	w := NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	sec := NewWriter()
	sec.WriteU32(1)
	sec.Byte(FuncTypeByte)
	writeValTypes(sec, m.Params)
	writeValTypes(sec, m.Results)
	w.Section(SectionType, sec)

	sec = NewWriter()
	sec.WriteU32(1)
	sec.WriteU32(0)
	w.Section(SectionFunction, sec)

	sec = NewWriter()
	sec.WriteU32(1)
	sec.Byte(0x00) // no maximum
	sec.WriteU32(max(m.MemoryPages, 1))
	w.Section(SectionMemory, sec)

	sec = NewWriter()
	sec.WriteU32(2)
	sec.WriteName(m.Name)
	sec.Byte(KindFunc)
	sec.WriteU32(0)
	sec.WriteName(MemoryExport)
	sec.Byte(KindMemory)
	sec.WriteU32(0)
	w.Section(SectionExport, sec)

	body := NewWriter()
	writeLocals(body, m.Locals)
	body.Byte(m.Body...)
	body.Byte(OpEnd)
	sec = NewWriter()
	sec.WriteU32(1)
	sec.WriteU32(uint32(body.Len()))
	sec.Byte(body.Bytes()...)
	w.Section(SectionCode, sec)

	return w.Bytes()
}

func writeValTypes(w *Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

// writeLocals writes locals as runs of equal types.
func writeLocals(w *Writer, locals []ValType) {
	type run struct {
		n uint32
		t ValType
	}
	var runs []run
	for _, t := range locals {
		if len(runs) > 0 && runs[len(runs)-1].t == t {
			runs[len(runs)-1].n++
			continue
		}
		runs = append(runs, run{1, t})
	}
	w.WriteU32(uint32(len(runs)))
	for _, r := range runs {
		w.WriteU32(r.n)
		w.Byte(byte(r.t))
	}
}
