package ir

import (
	"fmt"

	"github.com/Lucretia/gnat-llvm/target"
)

// Builder appends instructions to a Func. Operations whose operands are all
// constants are folded and never reach the body, so callers can test
// IsConst on any result to learn whether it is known at compile time.
//
// Misusing the builder (mismatched operand types, indexing a scalar) is a
// programming error and panics.
type Builder struct {
	fn *Func
	tb *target.Builder
}

// NewBuilder returns a builder appending to fn.
func NewBuilder(tb *target.Builder, fn *Func) *Builder {
	return &Builder{fn: fn, tb: tb}
}

func (b *Builder) Target() *target.Builder { return b.tb }
func (b *Builder) Func() *Func             { return b.fn }

// Ret sets the function result.
func (b *Builder) Ret(v *Value) {
	b.fn.Result = v
}

func (b *Builder) emit(v *Value) *Value {
	v.id = b.fn.nextID
	b.fn.nextID++
	b.fn.Body = append(b.fn.Body, v)
	return v
}

func canon(v int64, bits uint32) int64 {
	if bits == 1 {
		return v & 1
	}
	return sextBits(v, bits)
}

// Const returns an integer constant of type t. A pointer type yields the
// null pointer for 0.
func (b *Builder) Const(t *target.Type, v int64) *Value {
	switch t.Kind() {
	case target.KindInt:
		return &Value{op: OpConst, typ: t, aux: canon(v, t.Bits()), id: -1}
	case target.KindPointer:
		if v != 0 {
			panic("ir: non-null pointer constant")
		}
		return &Value{op: OpConst, typ: t, id: -1}
	}
	panic(fmt.Sprintf("ir: integer constant of type %s", t))
}

// Bool returns an i1 constant.
func (b *Builder) Bool(v bool) *Value {
	if v {
		return b.Const(b.tb.Bool(), 1)
	}
	return b.Const(b.tb.Bool(), 0)
}

func (b *Builder) Undef(t *target.Type) *Value {
	return &Value{op: OpUndef, typ: t, id: -1}
}

func (b *Builder) Zero(t *target.Type) *Value {
	if t.IsInt() || t.IsPointer() {
		return b.Const(t, 0)
	}
	return &Value{op: OpZero, typ: t, id: -1}
}

// Agg builds a constant aggregate. Every element must be constant.
func (b *Builder) Agg(t *target.Type, elems ...*Value) *Value {
	if !t.IsAggregate() {
		panic(fmt.Sprintf("ir: aggregate constant of type %s", t))
	}
	for _, e := range elems {
		if !e.IsConst() {
			panic("ir: non-constant aggregate element")
		}
	}
	args := make([]*Value, len(elems))
	copy(args, elems)
	return &Value{op: OpAgg, typ: t, args: args, id: -1}
}

func mustInt(v *Value) uint32 {
	if !v.typ.IsInt() {
		panic(fmt.Sprintf("ir: %s is not an integer", v))
	}
	return v.typ.Bits()
}

func mustSame(a, c *Value) {
	if !target.Equal(a.typ, c.typ) {
		panic(fmt.Sprintf("ir: operand types differ: %s vs %s", a.typ, c.typ))
	}
}

func (b *Builder) binary(op Op, x, y *Value) *Value {
	mustSame(x, y)
	bits := mustInt(x)
	xc, xok := x.ConstInt()
	yc, yok := y.ConstInt()
	if xok && yok {
		if r, ok := foldBinary(op, xc, yc, bits); ok {
			return b.Const(x.typ, r)
		}
	}
	switch {
	case op == OpAdd && yok && yc == 0, op == OpSub && yok && yc == 0:
		return x
	case op == OpAdd && xok && xc == 0:
		return y
	case op == OpMul && yok && yc == 1, (op == OpSDiv || op == OpUDiv) && yok && yc == 1:
		return x
	case op == OpMul && xok && xc == 1:
		return y
	case op == OpMul && ((xok && xc == 0) || (yok && yc == 0)):
		return b.Const(x.typ, 0)
	}
	return b.emit(&Value{op: op, typ: x.typ, args: []*Value{x, y}})
}

func foldBinary(op Op, x, y int64, bits uint32) (int64, bool) {
	switch op {
	case OpAdd:
		return x + y, true
	case OpSub:
		return x - y, true
	case OpMul:
		return x * y, true
	case OpUDiv:
		uy := zextBits(y, bits)
		if uy == 0 {
			return 0, false
		}
		return int64(zextBits(x, bits) / uy), true
	case OpSDiv:
		if y == 0 || (y == -1 && x == sextBits(int64(1)<<(bits-1), bits)) {
			return 0, false
		}
		return x / y, true
	}
	return 0, false
}

// FoldBinary evaluates a binary operation on constants of the given width
// the way the builder does. It fails where the instruction would trap.
func FoldBinary(op Op, x, y int64, bits uint32) (int64, bool) {
	r, ok := foldBinary(op, x, y, bits)
	return canon(r, bits), ok
}

// FoldCompare evaluates an integer comparison on constants.
func FoldCompare(p Pred, x, y int64, bits uint32) bool { return foldCompare(p, x, y, bits) }

// Canon reduces v to the canonical form of a bits-wide constant.
func Canon(v int64, bits uint32) int64 { return canon(v, bits) }

// Extend widens a bits-wide constant by sign or with zeros.
func Extend(v int64, bits uint32, signed bool) int64 {
	if signed {
		return sextBits(v, bits)
	}
	return int64(zextBits(v, bits))
}

func (b *Builder) Add(x, y *Value) *Value  { return b.binary(OpAdd, x, y) }
func (b *Builder) Sub(x, y *Value) *Value  { return b.binary(OpSub, x, y) }
func (b *Builder) Mul(x, y *Value) *Value  { return b.binary(OpMul, x, y) }
func (b *Builder) UDiv(x, y *Value) *Value { return b.binary(OpUDiv, x, y) }
func (b *Builder) SDiv(x, y *Value) *Value { return b.binary(OpSDiv, x, y) }

func (b *Builder) Neg(x *Value) *Value {
	mustInt(x)
	if c, ok := x.ConstInt(); ok {
		return b.Const(x.typ, -c)
	}
	return b.emit(&Value{op: OpNeg, typ: x.typ, args: []*Value{x}})
}

// ICmp compares two integers, yielding an i1.
func (b *Builder) ICmp(p Pred, x, y *Value) *Value {
	mustSame(x, y)
	bits := mustInt(x)
	xc, xok := x.ConstInt()
	yc, yok := y.ConstInt()
	if xok && yok {
		return b.Bool(foldCompare(p, xc, yc, bits))
	}
	return b.emit(&Value{op: OpICmp, typ: b.tb.Bool(), args: []*Value{x, y}, aux: int64(p)})
}

func foldCompare(p Pred, x, y int64, bits uint32) bool {
	ux, uy := zextBits(x, bits), zextBits(y, bits)
	switch p {
	case PredEQ:
		return x == y
	case PredNE:
		return x != y
	case PredULT:
		return ux < uy
	case PredULE:
		return ux <= uy
	case PredUGT:
		return ux > uy
	case PredUGE:
		return ux >= uy
	case PredSLT:
		return x < y
	case PredSLE:
		return x <= y
	case PredSGT:
		return x > y
	case PredSGE:
		return x >= y
	}
	return false
}

// Select picks t when cond is true, f otherwise.
func (b *Builder) Select(cond, t, f *Value) *Value {
	if !cond.typ.IsInt() || cond.typ.Bits() != 1 {
		panic("ir: select condition is not i1")
	}
	mustSame(t, f)
	if c, ok := cond.ConstInt(); ok {
		if c != 0 {
			return t
		}
		return f
	}
	if t == f {
		return t
	}
	return b.emit(&Value{op: OpSelect, typ: t.typ, args: []*Value{cond, t, f}})
}

func (b *Builder) minmax(op Op, x, y *Value, unsigned bool) *Value {
	mustSame(x, y)
	bits := mustInt(x)
	xc, xok := x.ConstInt()
	yc, yok := y.ConstInt()
	if xok && yok {
		if FoldMinMax(op, xc, yc, bits, unsigned) == xc {
			return x
		}
		return y
	}
	aux := int64(0)
	if unsigned {
		aux = 1
	}
	return b.emit(&Value{op: op, typ: x.typ, args: []*Value{x, y}, aux: aux})
}

// FoldMinMax returns the lesser (OpMin) or greater of two constants.
func FoldMinMax(op Op, x, y int64, bits uint32, unsigned bool) int64 {
	less := x < y
	if unsigned {
		less = zextBits(x, bits) < zextBits(y, bits)
	}
	if (op == OpMin) == less {
		return x
	}
	return y
}

func (b *Builder) Min(x, y *Value, unsigned bool) *Value { return b.minmax(OpMin, x, y, unsigned) }
func (b *Builder) Max(x, y *Value, unsigned bool) *Value { return b.minmax(OpMax, x, y, unsigned) }

// Trunc narrows an integer.
func (b *Builder) Trunc(v *Value, t *target.Type) *Value {
	if mustInt(v) <= t.Bits() || !t.IsInt() {
		panic(fmt.Sprintf("ir: trunc %s to %s", v.typ, t))
	}
	if c, ok := v.ConstInt(); ok {
		return b.Const(t, c)
	}
	return b.emit(&Value{op: OpTrunc, typ: t, args: []*Value{v}})
}

// SExt widens an integer, replicating its sign bit.
func (b *Builder) SExt(v *Value, t *target.Type) *Value {
	if mustInt(v) >= t.Bits() || !t.IsInt() {
		panic(fmt.Sprintf("ir: sext %s to %s", v.typ, t))
	}
	if c, ok := v.ConstInt(); ok {
		return b.Const(t, sextBits(c, v.typ.Bits()))
	}
	return b.emit(&Value{op: OpSExt, typ: t, args: []*Value{v}})
}

// ZExt widens an integer with zero bits.
func (b *Builder) ZExt(v *Value, t *target.Type) *Value {
	if mustInt(v) >= t.Bits() || !t.IsInt() {
		panic(fmt.Sprintf("ir: zext %s to %s", v.typ, t))
	}
	if c, ok := v.ConstInt(); ok {
		return b.Const(t, int64(zextBits(c, v.typ.Bits())))
	}
	return b.emit(&Value{op: OpZExt, typ: t, args: []*Value{v}})
}

// IntCast converts between integer widths, extending by sign when signed.
func (b *Builder) IntCast(v *Value, t *target.Type, signed bool) *Value {
	from := mustInt(v)
	switch {
	case from == t.Bits():
		return v
	case from > t.Bits():
		return b.Trunc(v, t)
	case signed:
		return b.SExt(v, t)
	default:
		return b.ZExt(v, t)
	}
}

func aggField(t *target.Type, i int) *target.Type {
	switch t.Kind() {
	case target.KindStruct:
		return t.Field(i)
	case target.KindArray:
		return t.Elem()
	}
	panic(fmt.Sprintf("ir: %s is not an aggregate", t))
}

// Extract reads field i of an aggregate value.
func (b *Builder) Extract(agg *Value, i int) *Value {
	ft := aggField(agg.typ, i)
	switch agg.op {
	case OpAgg:
		return agg.args[i]
	case OpZero:
		return b.Zero(ft)
	case OpUndef:
		return b.Undef(ft)
	}
	return b.emit(&Value{op: OpExtract, typ: ft, args: []*Value{agg}, aux: int64(i)})
}

// Insert returns agg with field i replaced by v.
func (b *Builder) Insert(agg, v *Value, i int) *Value {
	ft := aggField(agg.typ, i)
	if !target.Equal(ft, v.typ) {
		panic(fmt.Sprintf("ir: insert %s into field of type %s", v.typ, ft))
	}
	if agg.IsConst() && v.IsConst() {
		elems := b.expand(agg)
		elems[i] = v
		return b.Agg(agg.typ, elems...)
	}
	return b.emit(&Value{op: OpInsert, typ: agg.typ, args: []*Value{agg, v}, aux: int64(i)})
}

func (b *Builder) expand(agg *Value) []*Value {
	n := agg.typ.NumFields()
	if agg.typ.Kind() == target.KindArray {
		n = int(agg.typ.Len())
	}
	elems := make([]*Value, n)
	for i := range elems {
		elems[i] = b.Extract(agg, i)
	}
	return elems
}

// GEP computes an address from ptr, which points at elem. The first index
// steps over whole elems; later indexes select struct fields (constant) or
// array elements. Indexes are sign-extended to pointer width.
func (b *Builder) GEP(elem *target.Type, ptr *Value, idx ...*Value) *Value {
	if !ptr.typ.IsPointer() {
		panic(fmt.Sprintf("ir: gep base %s is not a pointer", ptr.typ))
	}
	if len(idx) == 0 {
		panic("ir: gep without indexes")
	}
	cur := elem
	for _, ix := range idx[1:] {
		mustInt(ix)
		switch cur.Kind() {
		case target.KindStruct:
			c, ok := ix.ConstInt()
			if !ok {
				panic("ir: non-constant struct index")
			}
			cur = cur.Field(int(c))
		case target.KindArray:
			cur = cur.Elem()
		default:
			panic(fmt.Sprintf("ir: cannot index into %s", cur))
		}
	}
	mustInt(idx[0])
	args := append([]*Value{ptr}, idx...)
	return b.emit(&Value{op: OpGEP, typ: b.tb.PointerTo(cur), elem: elem, args: args})
}

// StructGEP returns the address of field i of the struct ptr points to.
func (b *Builder) StructGEP(ptr *Value, i int) *Value {
	i32 := b.tb.Int(32)
	return b.GEP(ptr.typ.Elem(), ptr, b.Const(i32, 0), b.Const(i32, int64(i)))
}

// Bitcast reinterprets a pointer as pointing to another type.
func (b *Builder) Bitcast(v *Value, t *target.Type) *Value {
	if !v.typ.IsPointer() || !t.IsPointer() {
		panic(fmt.Sprintf("ir: bitcast %s to %s", v.typ, t))
	}
	if target.Equal(v.typ, t) {
		return v
	}
	if c, ok := v.ConstInt(); ok {
		return b.Const(t, c)
	}
	return b.emit(&Value{op: OpBitcast, typ: t, args: []*Value{v}})
}

// Load reads the value ptr points to.
func (b *Builder) Load(ptr *Value, volatile bool) *Value {
	if !ptr.typ.IsPointer() {
		panic(fmt.Sprintf("ir: load from %s", ptr.typ))
	}
	return b.emit(&Value{op: OpLoad, typ: ptr.typ.Elem(), args: []*Value{ptr}, volatile: volatile})
}

// Store writes v to ptr.
func (b *Builder) Store(v, ptr *Value, volatile bool) *Value {
	if !ptr.typ.IsPointer() || !target.Equal(ptr.typ.Elem(), v.typ) {
		panic(fmt.Sprintf("ir: store %s to %s", v.typ, ptr.typ))
	}
	return b.emit(&Value{op: OpStore, typ: b.tb.Void(), args: []*Value{v, ptr}, volatile: volatile})
}

// Alloca reserves a stack slot for one t.
func (b *Builder) Alloca(t *target.Type, name string) *Value {
	return b.emit(&Value{op: OpAlloca, typ: b.tb.PointerTo(t), elem: t, name: name})
}

// Memset fills n bytes at ptr with the i8 value fill.
func (b *Builder) Memset(ptr, fill, n *Value, volatile bool) *Value {
	if !ptr.typ.IsPointer() || !fill.typ.IsInt() || fill.typ.Bits() != 8 || !n.typ.IsInt() {
		panic("ir: bad memset operands")
	}
	return b.emit(&Value{op: OpMemset, typ: b.tb.Void(), args: []*Value{ptr, fill, n}, volatile: volatile})
}
