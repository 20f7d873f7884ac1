package arrays

import (
	"go.uber.org/zap"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/shape"
)

// constIndices returns the zero-based storage-order positions of exprs
// when every index and every bound is static.
func constIndices(s *shape.Shape, exprs []sem.Expr) ([]int, bool) {
	if len(exprs) != len(s.Dims) {
		return nil, false
	}
	pos := make([]int, len(exprs))
	for i, e := range exprs {
		d := s.Dims[i]
		v, ok := sem.StaticValue(e)
		if !ok || !d.Low.IsConst || !d.High.IsConst || v < d.Low.Value || v > d.High.Value {
			return nil, false
		}
		pos[i] = int(v - d.Low.Value)
	}
	if s.ColumnMajor {
		for i, j := 0, len(pos)-1; i < j; i, j = i+1, j-1 {
			pos[i], pos[j] = pos[j], pos[i]
		}
	}
	return pos, true
}

// materialize spills an in-register array to a temporary.
func (a *Addresser) materialize(v gltype.Value) (gltype.Value, error) {
	if v.Rel != gltype.Data {
		return v, nil
	}
	phys := a.reg.Physical(v.GT)
	if !a.tb.IsNative(phys) {
		return v, errors.Internal(errors.PhaseAddress, "in-register value of variable-size type %s", phys)
	}
	slot := a.b.Alloca(phys, "")
	a.b.Store(v.IR, slot, false)
	return gltype.Value{IR: slot, GT: v.GT, Rel: gltype.Reference}, nil
}

// fullAccess gives indexed access to a volatile full-access array through
// a private copy: the object is loaded whole first, and commit stores the
// copy back whole.
func (a *Addresser) fullAccess(v gltype.Value, arr *sem.Type) (gltype.Value, func(), error) {
	if !arr.FullAccess {
		return v, func() {}, nil
	}
	phys := a.reg.Physical(v.GT)
	if v.Rel != gltype.Reference || !a.tb.IsNative(phys) {
		return v, nil, errors.Unsupported(errors.PhaseAddress, "full access to variable-size array "+arr.Name)
	}
	whole := a.b.Load(v.IR, true)
	slot := a.b.Alloca(phys, arr.Name+"_copy")
	a.b.Store(whole, slot, false)
	commit := func() {
		a.b.Store(a.b.Load(slot, false), v.IR, true)
	}
	return gltype.Value{IR: slot, GT: v.GT, Rel: gltype.Reference}, commit, nil
}

func (a *Addresser) lvalue(exprs []sem.Expr, v gltype.Value) (gltype.Value, error) {
	idx, err := a.Indices(exprs, v)
	if err != nil {
		return gltype.Value{}, err
	}
	return a.IndexedLValue(idx, v)
}

// IndexedLoad reads the element of v selected by exprs. An in-register
// array indexed by constants is read without touching memory.
func (a *Addresser) IndexedLoad(exprs []sem.Expr, v gltype.Value) (gltype.Value, error) {
	arr, s, err := a.array(v)
	if err != nil {
		return gltype.Value{}, err
	}
	comp, _, err := a.component(arr)
	if err != nil {
		return gltype.Value{}, err
	}
	if v.Rel == gltype.Data {
		if pos, ok := constIndices(s, exprs); ok {
			x := v.IR
			for _, p := range pos {
				x = a.b.Extract(x, p)
			}
			return gltype.Value{IR: x, GT: comp, Rel: gltype.Data}, nil
		}
		if v, err = a.materialize(v); err != nil {
			return gltype.Value{}, err
		}
	}
	ref, _, err := a.fullAccess(v, arr)
	if err != nil {
		return gltype.Value{}, err
	}
	lv, err := a.lvalue(exprs, ref)
	if err != nil {
		return gltype.Value{}, err
	}
	return gltype.Value{IR: a.b.Load(lv.IR, false), GT: comp, Rel: gltype.Data}, nil
}

// IndexedStore writes val to the element of v selected by exprs. For an
// in-register array the result is the updated array value; otherwise it
// is v.
func (a *Addresser) IndexedStore(exprs []sem.Expr, v, val gltype.Value) (gltype.Value, error) {
	arr, s, err := a.array(v)
	if err != nil {
		return gltype.Value{}, err
	}
	comp, _, err := a.component(arr)
	if err != nil {
		return gltype.Value{}, err
	}
	elem, err := a.reg.Convert(a.b, val, comp)
	if err != nil {
		return gltype.Value{}, err
	}
	if elem.Rel != gltype.Data {
		return gltype.Value{}, errors.Internal(errors.PhaseAddress, "store of %s value", elem.Rel)
	}

	if v.Rel == gltype.Data {
		if pos, ok := constIndices(s, exprs); ok {
			return gltype.Value{IR: a.insertAt(v.IR, pos, elem.IR), GT: v.GT, Rel: gltype.Data}, nil
		}
		ref, err := a.materialize(v)
		if err != nil {
			return gltype.Value{}, err
		}
		if err := a.storeAt(exprs, ref, arr, elem.IR); err != nil {
			return gltype.Value{}, err
		}
		return gltype.Value{IR: a.b.Load(ref.IR, false), GT: v.GT, Rel: gltype.Data}, nil
	}
	return v, a.storeAt(exprs, v, arr, elem.IR)
}

func (a *Addresser) storeAt(exprs []sem.Expr, v gltype.Value, arr *sem.Type, x *ir.Value) error {
	ref, commit, err := a.fullAccess(v, arr)
	if err != nil {
		return err
	}
	lv, err := a.lvalue(exprs, ref)
	if err != nil {
		return err
	}
	a.b.Store(x, lv.IR, false)
	commit()
	return nil
}

// insertAt replaces the element at pos of a nested aggregate.
func (a *Addresser) insertAt(agg *ir.Value, pos []int, x *ir.Value) *ir.Value {
	path := make([]*ir.Value, len(pos))
	path[0] = agg
	for k := 1; k < len(pos); k++ {
		path[k] = a.b.Extract(path[k-1], pos[k-1])
	}
	for k := len(pos) - 1; k >= 0; k-- {
		x = a.b.Insert(path[k], x, pos[k])
	}
	return x
}

// Bounds builds the bounds record of type result for the array v of type
// src refers to.
func (a *Addresser) Bounds(result, src *sem.Type, v gltype.Value) (*ir.Value, error) {
	rs, err := a.shapes.Shape(result)
	if err != nil {
		return nil, err
	}
	ss, err := a.shapes.Shape(src)
	if err != nil {
		return nil, err
	}
	if len(rs.Dims) != len(ss.Dims) {
		return nil, errors.Internal(errors.PhaseAddress, "bounds of %s for %s", result, src)
	}
	bref := a.boundsRef(v, ss)
	rec := a.b.Undef(rs.BoundsType)
	for i := range rs.Dims {
		for _, low := range []bool{true, false} {
			x, err := a.alg.ArrayBound(src, i, low, bref, false, false)
			if err != nil {
				return nil, err
			}
			x = a.b.IntCast(x, rs.Dims[i].BoundType, !ss.Dims[i].Index.IsUnsigned())
			rec = a.b.Insert(rec, x, rs.Slot(i, !low))
		}
	}
	return rec, nil
}

// FatPointer views the array v refers to as an object of unconstrained
// type to, building its bounds record in a temporary.
func (a *Addresser) FatPointer(v gltype.Value, to *sem.Type) (gltype.Value, error) {
	src, _, err := a.array(v)
	if err != nil {
		return gltype.Value{}, err
	}
	if v.Rel == gltype.FatPointer && src == to {
		return v, nil
	}
	gt := a.reg.Default(to)
	if !gt.Present() {
		return gltype.Value{}, errors.Internal(errors.PhaseAddress, "type %s not elaborated", to)
	}
	ts, err := a.shapes.Shape(to)
	if err != nil {
		return gltype.Value{}, err
	}
	_, compPhys, err := a.component(to)
	if err != nil {
		return gltype.Value{}, err
	}
	rec, err := a.Bounds(to, src, v)
	if err != nil {
		return gltype.Value{}, err
	}
	slot := a.b.Alloca(ts.BoundsType, to.Name+"_bounds")
	a.b.Store(rec, slot, false)

	data, err := a.dataPtr(v)
	if err != nil {
		return gltype.Value{}, err
	}
	fp := a.b.Undef(a.tb.FatPointer(compPhys, ts.BoundsType))
	fp = a.b.Insert(fp, a.b.Bitcast(data, a.tb.PointerTo(compPhys)), 0)
	fp = a.b.Insert(fp, slot, 1)
	a.log.Debug("fat pointer", zap.String("from", src.Name), zap.String("to", to.Name))
	return gltype.Value{IR: fp, GT: gt, Rel: gltype.FatPointer}, nil
}
