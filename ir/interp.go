package ir

import (
	"encoding/binary"
	"fmt"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/target"
)

// Memory is a flat little-endian byte memory with a bump allocator.
// Address 0 is never handed out.
type Memory struct {
	data []byte
	top  uint64
}

// NewMemory creates a memory of the given size in bytes.
func NewMemory(size uint64) *Memory {
	return &Memory{data: make([]byte, size), top: 16}
}

// Alloc reserves n bytes aligned to align and returns their address.
func (m *Memory) Alloc(n, align uint64) (uint64, error) {
	addr := target.AlignTo(m.top, max(align, 1))
	if addr+n > uint64(len(m.data)) {
		return 0, errors.New(errors.PhaseBackend, errors.KindOutOfBounds).
			Detail("allocate %d bytes: memory exhausted", n).Build()
	}
	m.top = addr + n
	return addr, nil
}

func (m *Memory) check(addr, n uint64) error {
	if addr == 0 || addr+n > uint64(len(m.data)) || addr+n < addr {
		return errors.New(errors.PhaseBackend, errors.KindOutOfBounds).
			Value(addr).Detail("access of %d bytes at %#x", n, addr).Build()
	}
	return nil
}

// Read returns a copy of n bytes at addr.
func (m *Memory) Read(addr, n uint64) ([]byte, error) {
	if err := m.check(addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, m.data[addr:addr+n])
	return out, nil
}

// Write copies b to addr.
func (m *Memory) Write(addr uint64, b []byte) error {
	if err := m.check(addr, uint64(len(b))); err != nil {
		return err
	}
	copy(m.data[addr:], b)
	return nil
}

// Interp executes straight-line functions over a Memory. Every value is
// held as the bytes of its in-memory image, so aggregates, loads, and
// stores share one representation.
type Interp struct {
	Mem *Memory
	tb  *target.Builder
}

// NewInterp creates an interpreter with a 64 KiB memory.
func NewInterp(tb *target.Builder) *Interp {
	return &Interp{Mem: NewMemory(1 << 16), tb: tb}
}

// EncodeInt returns the in-memory image of integer v of type t.
func (in *Interp) EncodeInt(t *target.Type, v int64) []byte {
	size, _ := in.tb.SizeOf(t)
	buf := make([]byte, 8)
	var bits uint32 = 64
	if t.IsInt() {
		bits = t.Bits()
	} else if t.IsPointer() {
		bits = in.tb.Config().PointerBits
	}
	binary.LittleEndian.PutUint64(buf, zextBits(v, bits))
	out := make([]byte, size)
	copy(out, buf)
	return out
}

// DecodeInt reads a signed integer of type t from its image.
func (in *Interp) DecodeInt(t *target.Type, b []byte) int64 {
	return sextBits(int64(in.DecodeUint(t, b)), t.Bits())
}

// DecodeUint reads an unsigned integer or pointer of type t from its image.
func (in *Interp) DecodeUint(t *target.Type, b []byte) uint64 {
	buf := make([]byte, 8)
	copy(buf, b)
	v := binary.LittleEndian.Uint64(buf)
	if t.IsInt() {
		return zextBits(int64(v), t.Bits())
	}
	return zextBits(int64(v), in.tb.Config().PointerBits)
}

// Run executes fn with args given as value images and returns the image of
// the result (nil for void functions).
func (in *Interp) Run(fn *Func, args ...[]byte) ([]byte, error) {
	if len(args) != len(fn.Params) {
		return nil, errors.InvalidInput(errors.PhaseBackend,
			fmt.Sprintf("%s takes %d arguments, got %d", fn.Name, len(fn.Params), len(args)))
	}
	env := make(map[*Value][]byte, len(fn.Body)+len(args))
	for i, p := range fn.Params {
		env[p] = args[i]
	}
	for _, v := range fn.Body {
		out, err := in.exec(env, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", fn.Name, v.Format(), err)
		}
		env[v] = out
	}
	if fn.Result == nil {
		return nil, nil
	}
	return in.value(env, fn.Result)
}

func (in *Interp) value(env map[*Value][]byte, v *Value) ([]byte, error) {
	if b, ok := env[v]; ok {
		return b, nil
	}
	switch v.op {
	case OpConst:
		return in.EncodeInt(v.typ, v.aux), nil
	case OpUndef, OpZero:
		size, _ := in.tb.SizeOf(v.typ)
		return make([]byte, size), nil
	case OpAgg:
		size, _ := in.tb.SizeOf(v.typ)
		out := make([]byte, size)
		for i, e := range v.args {
			eb, err := in.value(env, e)
			if err != nil {
				return nil, err
			}
			copy(out[in.fieldOffset(v.typ, i):], eb)
		}
		return out, nil
	}
	return nil, errors.Internal(errors.PhaseBackend, "value %s used before definition", v)
}

func (in *Interp) fieldOffset(t *target.Type, i int) uint64 {
	if t.Kind() == target.KindStruct {
		return in.tb.FieldOffset(t, i)
	}
	size, _ := in.tb.SizeOf(t.Elem())
	return uint64(i) * size
}

func (in *Interp) operands(env map[*Value][]byte, v *Value) ([][]byte, error) {
	ops := make([][]byte, len(v.args))
	for i, a := range v.args {
		b, err := in.value(env, a)
		if err != nil {
			return nil, err
		}
		ops[i] = b
	}
	return ops, nil
}

func (in *Interp) exec(env map[*Value][]byte, v *Value) ([]byte, error) {
	ops, err := in.operands(env, v)
	if err != nil {
		return nil, err
	}
	switch v.op {
	case OpAdd, OpSub, OpMul, OpUDiv, OpSDiv:
		t := v.typ
		x, y := in.DecodeInt(t, ops[0]), in.DecodeInt(t, ops[1])
		r, ok := foldBinary(v.op, x, y, t.Bits())
		if !ok {
			return nil, errors.InvalidData(errors.PhaseBackend, nil, "division by zero")
		}
		return in.EncodeInt(t, r), nil
	case OpNeg:
		return in.EncodeInt(v.typ, -in.DecodeInt(v.typ, ops[0])), nil
	case OpICmp:
		t := v.args[0].typ
		r := foldCompare(Pred(v.aux), in.DecodeInt(t, ops[0]), in.DecodeInt(t, ops[1]), t.Bits())
		if r {
			return in.EncodeInt(v.typ, 1), nil
		}
		return in.EncodeInt(v.typ, 0), nil
	case OpSelect:
		if in.DecodeUint(v.args[0].typ, ops[0]) != 0 {
			return ops[1], nil
		}
		return ops[2], nil
	case OpMin, OpMax:
		t := v.typ
		x, y := in.DecodeInt(t, ops[0]), in.DecodeInt(t, ops[1])
		less := x < y
		if v.aux != 0 {
			less = zextBits(x, t.Bits()) < zextBits(y, t.Bits())
		}
		if (v.op == OpMin) == less {
			return ops[0], nil
		}
		return ops[1], nil
	case OpTrunc, OpZExt:
		return in.EncodeInt(v.typ, int64(in.DecodeUint(v.args[0].typ, ops[0]))), nil
	case OpSExt:
		return in.EncodeInt(v.typ, in.DecodeInt(v.args[0].typ, ops[0])), nil
	case OpExtract:
		off := in.fieldOffset(v.args[0].typ, int(v.aux))
		size, _ := in.tb.SizeOf(v.typ)
		out := make([]byte, size)
		copy(out, ops[0][off:off+size])
		return out, nil
	case OpInsert:
		out := make([]byte, len(ops[0]))
		copy(out, ops[0])
		copy(out[in.fieldOffset(v.typ, int(v.aux)):], ops[1])
		return out, nil
	case OpGEP:
		return in.gep(v, ops)
	case OpBitcast:
		return ops[0], nil
	case OpLoad:
		size, _ := in.tb.SizeOf(v.typ)
		return in.Mem.Read(in.DecodeUint(v.args[0].typ, ops[0]), size)
	case OpStore:
		return nil, in.Mem.Write(in.DecodeUint(v.args[1].typ, ops[1]), ops[0])
	case OpAlloca:
		size, ok := in.tb.SizeOf(v.elem)
		if !ok {
			return nil, errors.Unsupported(errors.PhaseBackend, "alloca of non-native type "+v.elem.String())
		}
		addr, err := in.Mem.Alloc(size, in.tb.AlignOf(v.elem))
		if err != nil {
			return nil, err
		}
		return in.EncodeInt(v.typ, int64(addr)), nil
	case OpMemset:
		addr := in.DecodeUint(v.args[0].typ, ops[0])
		n := in.DecodeUint(v.args[2].typ, ops[2])
		fill := make([]byte, n)
		for i := range fill {
			fill[i] = ops[1][0]
		}
		return nil, in.Mem.Write(addr, fill)
	}
	return nil, errors.Internal(errors.PhaseBackend, "cannot execute %s", v.op)
}

func (in *Interp) gep(v *Value, ops [][]byte) ([]byte, error) {
	addr := int64(in.DecodeUint(v.args[0].typ, ops[0]))
	cur := v.elem
	for i, ix := range v.args[1:] {
		n := in.DecodeInt(ix.typ, ops[i+1])
		if i == 0 {
			size, _ := in.tb.SizeOf(cur)
			addr += n * int64(size)
			continue
		}
		switch cur.Kind() {
		case target.KindStruct:
			addr += int64(in.tb.FieldOffset(cur, int(n)))
			cur = cur.Field(int(n))
		case target.KindArray:
			cur = cur.Elem()
			size, _ := in.tb.SizeOf(cur)
			addr += n * int64(size)
		}
	}
	return in.EncodeInt(v.typ, addr), nil
}
