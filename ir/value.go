package ir

import (
	"fmt"
	"strings"

	"github.com/Lucretia/gnat-llvm/target"
)

// Op identifies what produced a Value.
type Op uint8

const (
	OpConst Op = iota
	OpUndef
	OpZero
	OpAgg
	OpParam
	OpAdd
	OpSub
	OpMul
	OpUDiv
	OpSDiv
	OpNeg
	OpICmp
	OpSelect
	OpMin
	OpMax
	OpTrunc
	OpSExt
	OpZExt
	OpExtract
	OpInsert
	OpGEP
	OpBitcast
	OpLoad
	OpStore
	OpAlloca
	OpMemset
)

var opNames = [...]string{
	OpConst:   "const",
	OpUndef:   "undef",
	OpZero:    "zeroinitializer",
	OpAgg:     "aggregate",
	OpParam:   "param",
	OpAdd:     "add",
	OpSub:     "sub",
	OpMul:     "mul",
	OpUDiv:    "udiv",
	OpSDiv:    "sdiv",
	OpNeg:     "neg",
	OpICmp:    "icmp",
	OpSelect:  "select",
	OpMin:     "min",
	OpMax:     "max",
	OpTrunc:   "trunc",
	OpSExt:    "sext",
	OpZExt:    "zext",
	OpExtract: "extractvalue",
	OpInsert:  "insertvalue",
	OpGEP:     "getelementptr",
	OpBitcast: "bitcast",
	OpLoad:    "load",
	OpStore:   "store",
	OpAlloca:  "alloca",
	OpMemset:  "memset",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// IsConstant reports whether values produced by o are compile-time constants.
func (o Op) IsConstant() bool {
	return o == OpConst || o == OpUndef || o == OpZero || o == OpAgg
}

// Pred is an integer comparison predicate.
type Pred uint8

const (
	PredEQ Pred = iota
	PredNE
	PredULT
	PredULE
	PredUGT
	PredUGE
	PredSLT
	PredSLE
	PredSGT
	PredSGE
)

var predNames = [...]string{"eq", "ne", "ult", "ule", "ugt", "uge", "slt", "sle", "sgt", "sge"}

func (p Pred) String() string {
	if int(p) < len(predNames) {
		return predNames[p]
	}
	return "?"
}

// Value is an SSA value: a constant, a parameter, or the result of an
// instruction. Instructions with no result (store, memset) are Values of
// type void.
type Value struct {
	typ      *target.Type
	elem     *target.Type // GEP source element, alloca type
	name     string
	args     []*Value
	aux      int64 // constant, param index, field index, predicate, unsigned flag
	id       int
	op       Op
	volatile bool
}

func (v *Value) Op() Op             { return v.op }
func (v *Value) Type() *target.Type { return v.typ }
func (v *Value) Args() []*Value     { return v.args }
func (v *Value) Name() string       { return v.name }
func (v *Value) ID() int            { return v.id }
func (v *Value) Volatile() bool     { return v.volatile }

// Aux returns the op-specific immediate: the constant, parameter index,
// field index, predicate, or unsigned flag.
func (v *Value) Aux() int64 { return v.aux }

// SourceElem returns the element type a GEP indexes from, or the type an
// alloca reserves.
func (v *Value) SourceElem() *target.Type { return v.elem }

// IsConst reports whether v is a compile-time constant.
func (v *Value) IsConst() bool { return v.op.IsConstant() }

// ConstInt returns the signed value of an integer constant.
func (v *Value) ConstInt() (int64, bool) {
	if v.op != OpConst {
		return 0, false
	}
	return v.aux, true
}

// ConstUint returns the zero-extended value of an integer constant.
func (v *Value) ConstUint() (uint64, bool) {
	if v.op != OpConst {
		return 0, false
	}
	return zextBits(v.aux, v.typ.Bits()), true
}

func (v *Value) String() string {
	switch v.op {
	case OpConst:
		return fmt.Sprintf("%s %d", v.typ, v.aux)
	case OpUndef:
		return fmt.Sprintf("%s undef", v.typ)
	case OpZero:
		return fmt.Sprintf("%s zeroinitializer", v.typ)
	case OpAgg:
		parts := make([]string, len(v.args))
		for i, a := range v.args {
			parts[i] = a.String()
		}
		return fmt.Sprintf("%s [%s]", v.typ, strings.Join(parts, ", "))
	case OpParam:
		if v.name != "" {
			return fmt.Sprintf("%s %%%s", v.typ, v.name)
		}
		return fmt.Sprintf("%s %%arg%d", v.typ, v.aux)
	}
	return fmt.Sprintf("%s %%%d", v.typ, v.id)
}

// Format renders the defining instruction of v.
func (v *Value) Format() string {
	if v.op.IsConstant() || v.op == OpParam {
		return v.String()
	}
	var b strings.Builder
	if v.typ.Kind() != target.KindVoid {
		fmt.Fprintf(&b, "%%%d = ", v.id)
	}
	b.WriteString(v.op.String())
	if v.volatile {
		b.WriteString(" volatile")
	}
	switch v.op {
	case OpICmp:
		fmt.Fprintf(&b, " %s", Pred(v.aux))
	case OpMin, OpMax:
		if v.aux != 0 {
			b.WriteString(" unsigned")
		}
	case OpExtract, OpInsert:
		fmt.Fprintf(&b, " #%d", v.aux)
	case OpGEP, OpAlloca:
		fmt.Fprintf(&b, " %s", v.elem)
	}
	for i, a := range v.args {
		if i == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	switch v.op {
	case OpTrunc, OpSExt, OpZExt, OpBitcast:
		fmt.Fprintf(&b, " to %s", v.typ)
	}
	return b.String()
}

// Func is a straight-line function: parameters, a body in program order,
// and an optional result.
type Func struct {
	Ret    *target.Type
	Result *Value
	Name   string
	Params []*Value
	Body   []*Value
	nextID int
}

// NewFunc creates an empty function.
func NewFunc(name string, ret *target.Type, params ...*target.Type) *Func {
	fn := &Func{Name: name, Ret: ret}
	for i, p := range params {
		fn.Params = append(fn.Params, &Value{op: OpParam, typ: p, aux: int64(i), id: -1})
	}
	return fn
}

func (f *Func) String() string {
	var b strings.Builder
	ps := make([]string, len(f.Params))
	for i, p := range f.Params {
		ps[i] = p.String()
	}
	fmt.Fprintf(&b, "define %s @%s(%s) {\n", f.Ret, f.Name, strings.Join(ps, ", "))
	for _, v := range f.Body {
		b.WriteString("  ")
		b.WriteString(v.Format())
		b.WriteByte('\n')
	}
	if f.Result != nil {
		fmt.Fprintf(&b, "  ret %s\n", f.Result)
	} else {
		b.WriteString("  ret void\n")
	}
	b.WriteString("}\n")
	return b.String()
}

func zextBits(v int64, bits uint32) uint64 {
	if bits >= 64 {
		return uint64(v)
	}
	return uint64(v) & (1<<bits - 1)
}

func sextBits(v int64, bits uint32) int64 {
	if bits >= 64 {
		return v
	}
	shift := 64 - bits
	return v << shift >> shift
}
