package arrays

import (
	"go.uber.org/zap"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/shape"
	"github.com/Lucretia/gnat-llvm/target"
)

// leafAt returns the expression giving the element at the zero-based
// source-order position pos. A scalar reached early fills the rest.
func leafAt(lit *sem.Aggregate, pos []int) (sem.Expr, error) {
	var e sem.Expr = lit
	for _, p := range pos {
		agg, ok := e.(*sem.Aggregate)
		if !ok {
			return e, nil
		}
		switch {
		case p < len(agg.Elems):
			e = agg.Elems[p]
		case agg.Others != nil:
			e = agg.Others
		default:
			return nil, errors.OutOfBounds(errors.PhaseLiteral, []string{lit.String()}, p, len(agg.Elems))
		}
	}
	if _, ok := e.(*sem.Aggregate); ok {
		return nil, errors.Internal(errors.PhaseLiteral, "aggregate %s nested deeper than its type", lit)
	}
	return e, nil
}

// uniformFill returns the single value every element of lit takes, if
// lit is an others-only aggregate at every level.
func uniformFill(lit *sem.Aggregate) (sem.Expr, bool) {
	var e sem.Expr = lit
	for {
		agg, ok := e.(*sem.Aggregate)
		if !ok {
			return e, true
		}
		if len(agg.Elems) != 0 || agg.Others == nil {
			return nil, false
		}
		e = agg.Others
	}
}

// staticLengths returns the source-order extent of every dimension.
func staticLengths(s *shape.Shape) ([]int, bool) {
	lens := make([]int, len(s.Dims))
	for i, d := range s.Dims {
		if !d.Low.IsConst || !d.High.IsConst {
			return nil, false
		}
		lens[i] = int(max(d.High.Value-d.Low.Value+1, 0))
	}
	return lens, true
}

// sourceOrder maps a storage-order position back to source order.
func sourceOrder(s *shape.Shape, pos []int) []int {
	out := make([]int, len(pos))
	copy(out, pos)
	if s.ColumnMajor {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// constLeaf turns a static leaf into a constant of type t.
func (a *Addresser) constLeaf(e sem.Expr, t *target.Type) (*ir.Value, error) {
	if r, ok := e.(*sem.RealLit); ok {
		if r.Value != 0 {
			return nil, errors.Unsupported(errors.PhaseLiteral, "non-zero real aggregate element "+r.String())
		}
		return a.b.Zero(t), nil
	}
	v, ok := sem.StaticValue(e)
	if !ok || !t.IsInt() {
		return nil, errors.Internal(errors.PhaseLiteral, "element %s is not a static %s", e, t)
	}
	return a.b.Const(t, v), nil
}

// ConstAggregate builds the constant value of the static aggregate lit of
// the constrained array type arr.
func (a *Addresser) ConstAggregate(lit *sem.Aggregate, arr *sem.Type) (*ir.Value, error) {
	if !sem.IsConstantAggregate(lit) {
		return nil, errors.Internal(errors.PhaseLiteral, "aggregate %s is not static", lit)
	}
	gt := a.reg.Default(arr)
	if !gt.Present() {
		return nil, errors.Internal(errors.PhaseLiteral, "type %s not elaborated", arr)
	}
	phys := a.reg.Physical(gt)
	s, err := a.shapes.Shape(arr)
	if err != nil {
		return nil, err
	}
	if !a.tb.IsNative(phys) {
		return nil, errors.Unsupported(errors.PhaseLiteral, "constant aggregate of variable-size type "+arr.Name)
	}

	var build func(t *target.Type, pos []int) (*ir.Value, error)
	build = func(t *target.Type, pos []int) (*ir.Value, error) {
		if len(pos) == len(s.Dims) {
			leaf, err := leafAt(lit, sourceOrder(s, pos))
			if err != nil {
				return nil, err
			}
			return a.constLeaf(leaf, t)
		}
		elems := make([]*ir.Value, t.Len())
		for i := range elems {
			x, err := build(t.Elem(), append(pos, i))
			if err != nil {
				return nil, err
			}
			elems[i] = x
		}
		return a.b.Agg(t, elems...), nil
	}
	return build(phys, make([]int, 0, len(s.Dims)))
}

// fillable reports whether storing fill into every element of arr can be
// done with a byte fill.
func (a *Addresser) fillable(fill sem.Expr, compPhys *target.Type) bool {
	if r, ok := fill.(*sem.RealLit); ok {
		return r.Value == 0
	}
	if !compPhys.IsInt() {
		return false
	}
	if compPhys.Bits() == 8 {
		return true
	}
	v, ok := sem.StaticValue(fill)
	if !ok || compPhys.Bits()%8 != 0 {
		return false
	}
	c := ir.Canon(v, compPhys.Bits())
	first := byte(c)
	for i := uint32(8); i < compPhys.Bits(); i += 8 {
		if byte(c>>i) != first {
			return false
		}
	}
	return true
}

// Aggregate stores the aggregate lit into the array dest refers to. A
// uniform byte pattern is written with one memset and a static aggregate
// of fixed layout with one store. Anything else is stored element by
// element.
func (a *Addresser) Aggregate(lit *sem.Aggregate, dest gltype.Value) error {
	arr, s, err := a.array(dest)
	if err != nil {
		return err
	}
	_, compPhys, err := a.component(arr)
	if err != nil {
		return err
	}
	if fill, ok := uniformFill(lit); ok && a.fillable(fill, compPhys) {
		return a.OthersFill(lit, dest)
	}

	phys := a.reg.Physical(dest.GT)
	if dest.Rel == gltype.Reference && a.tb.IsNative(phys) && sem.IsConstantAggregate(lit) {
		c, err := a.ConstAggregate(lit, arr)
		if err != nil {
			return err
		}
		a.b.Store(c, dest.IR, arr.FullAccess)
		a.log.Debug("constant aggregate", zap.String("type", arr.Name))
		return nil
	}

	lens, ok := staticLengths(s)
	if !ok {
		return errors.Unsupported(errors.PhaseLiteral, "aggregate with named elements for dynamic bounds of "+arr.Name)
	}
	ref, commit, err := a.fullAccess(dest, arr)
	if err != nil {
		return err
	}
	pos := make([]int, len(lens))
	var walk func(k int) error
	walk = func(k int) error {
		if k == len(lens) {
			return a.storeElement(lit, ref, arr, s, pos, compPhys)
		}
		for i := range lens[k] {
			pos[k] = i
			if err := walk(k + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return err
	}
	commit()
	return nil
}

func (a *Addresser) storeElement(lit *sem.Aggregate, ref gltype.Value, arr *sem.Type, s *shape.Shape, pos []int, compPhys *target.Type) error {
	leaf, err := leafAt(lit, pos)
	if err != nil {
		return err
	}
	var x *ir.Value
	if r, ok := leaf.(*sem.RealLit); ok {
		if x, err = a.constLeaf(r, compPhys); err != nil {
			return err
		}
	} else {
		if !compPhys.IsInt() {
			return errors.Unsupported(errors.PhaseLiteral, "element "+leaf.String()+" of "+arr.Name)
		}
		x, err = a.alg.EvalConvert(leaf, compPhys, !arr.Component.IsUnsigned())
		if err != nil {
			return err
		}
	}
	iptr := a.tb.IntPtr()
	idx := make([]*ir.Value, len(pos))
	for i, p := range pos {
		idx[i] = a.b.Const(iptr, int64(p))
	}
	lv, err := a.IndexedLValue(storageOrder(s, idx), ref)
	if err != nil {
		return err
	}
	a.b.Store(x, lv.IR, false)
	return nil
}

// OthersFill sets every byte of the array dest refers to from the
// uniform value of lit. Real fills are always zero.
func (a *Addresser) OthersFill(lit *sem.Aggregate, dest gltype.Value) error {
	arr, s, err := a.array(dest)
	if err != nil {
		return err
	}
	fill, ok := uniformFill(lit)
	if !ok {
		return errors.Internal(errors.PhaseLiteral, "aggregate %s is not uniform", lit)
	}
	i8 := a.tb.Int(8)
	var byteVal *ir.Value
	switch f := fill.(type) {
	case *sem.RealLit:
		if f.Value != 0 {
			return errors.Unsupported(errors.PhaseLiteral, "non-zero real fill "+f.String())
		}
		byteVal = a.b.Const(i8, 0)
	default:
		v, err := a.alg.Eval(fill)
		if err != nil {
			return err
		}
		byteVal = a.b.IntCast(v, i8, !arr.Component.IsUnsigned())
	}

	bref := a.boundsRef(dest, s)
	n, err := a.alg.ArrayTypeSize(arr, bref, false)
	if err != nil {
		return err
	}
	data, err := a.dataPtr(dest)
	if err != nil {
		return err
	}
	p := a.b.Bitcast(data, a.tb.PointerTo(i8))
	a.b.Memset(p, byteVal, n, arr.FullAccess)
	a.log.Debug("others fill",
		zap.String("type", arr.Name),
		zap.Stringer("fill", byteVal),
		zap.Bool("volatile", arr.FullAccess))
	return nil
}
