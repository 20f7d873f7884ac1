package arrays

import (
	"slices"

	"go.uber.org/zap"

	"github.com/Lucretia/gnat-llvm/bounds"
	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/shape"
	"github.com/Lucretia/gnat-llvm/target"
)

// Addresser emits the code that addresses, reads, writes, and initializes
// array objects.
type Addresser struct {
	b      *ir.Builder
	reg    *gltype.Registry
	shapes *shape.Table
	tb     *target.Builder
	alg    *bounds.Algebra[*ir.Value, bounds.Concrete]
	log    *zap.Logger
}

// New returns an addresser emitting into b. env supplies the values of
// discriminants and objects that bound and index expressions reference.
func New(b *ir.Builder, env *bounds.Env, reg *gltype.Registry, shapes *shape.Table) *Addresser {
	return &Addresser{
		b:      b,
		reg:    reg,
		shapes: shapes,
		tb:     reg.Target(),
		alg:    bounds.NewConcrete(b, env, reg, shapes),
		log:    Logger(),
	}
}

// Algebra returns the code-generating bounds algebra the addresser uses.
func (a *Addresser) Algebra() *bounds.Algebra[*ir.Value, bounds.Concrete] { return a.alg }

func (a *Addresser) array(v gltype.Value) (*sem.Type, *shape.Shape, error) {
	if !v.GT.Present() {
		return nil, nil, errors.Internal(errors.PhaseAddress, "array value without a representation")
	}
	arr := a.reg.Source(v.GT)
	if !arr.IsArray() {
		return nil, nil, errors.Internal(errors.PhaseAddress, "%s is not an array", arr)
	}
	s, err := a.shapes.Shape(arr)
	return arr, s, err
}

func (a *Addresser) component(arr *sem.Type) (gltype.GLType, *target.Type, error) {
	gt := a.reg.Default(arr.Component)
	if !gt.Present() {
		return gltype.None, nil, errors.Internal(errors.PhaseAddress, "component of %s not elaborated", arr)
	}
	return gt, a.reg.Physical(gt), nil
}

// dataPtr returns the address of the first element.
func (a *Addresser) dataPtr(v gltype.Value) (*ir.Value, error) {
	switch v.Rel {
	case gltype.Reference, gltype.BoundsAndDataRef:
		return v.IR, nil
	case gltype.FatPointer:
		return a.b.Extract(v.IR, 0), nil
	}
	return nil, errors.Internal(errors.PhaseAddress, "no data address in %s value", v.Rel)
}

// boundsRef returns the object's bounds record address for the bounds
// algebra. Objects of constrained types carry no bounds.
func (a *Addresser) boundsRef(v gltype.Value, s *shape.Shape) *ir.Value {
	switch v.Rel {
	case gltype.FatPointer:
		return a.b.Extract(v.IR, 1)
	case gltype.BoundsAndDataRef:
		// The bounds record immediately precedes the data.
		bt := s.BoundsType
		p := a.b.Bitcast(v.IR, a.tb.PointerTo(bt))
		return a.b.GEP(bt, p, a.b.Const(a.tb.Int(32), -1))
	}
	return a.b.Undef(a.tb.IntPtr())
}

func storageOrder(s *shape.Shape, idx []*ir.Value) []*ir.Value {
	if s.ColumnMajor {
		idx = slices.Clone(idx)
		slices.Reverse(idx)
	}
	return idx
}

// widen makes a zero-based index safe for address arithmetic, which
// sign-extends. Unsigned indexes narrower than a pointer go through the
// next wider standard integer type.
func (a *Addresser) widen(idx *ir.Value, index *sem.Type) *ir.Value {
	bits := idx.Type().Bits()
	if !index.IsUnsigned() || bits >= a.tb.Config().PointerBits {
		return idx
	}
	return a.b.ZExt(idx, a.tb.Int(target.StandardIntBits(bits)))
}

// Indices evaluates one index expression per dimension and turns each into
// a zero-based offset, returned in storage order.
func (a *Addresser) Indices(exprs []sem.Expr, v gltype.Value) ([]*ir.Value, error) {
	arr, s, err := a.array(v)
	if err != nil {
		return nil, err
	}
	if len(exprs) != len(s.Dims) {
		return nil, errors.Internal(errors.PhaseAddress, "%d indexes for %d-dimensional %s", len(exprs), len(s.Dims), arr)
	}
	bref := a.boundsRef(v, s)
	out := make([]*ir.Value, len(exprs))
	for i, e := range exprs {
		d := s.Dims[i]
		idx, err := a.alg.EvalConvert(e, d.BoundType, !d.Index.IsUnsigned())
		if err != nil {
			return nil, err
		}
		// Packed implementation types of unconstrained arrays are
		// already indexed from zero.
		if !arr.PackedImpl || arr.Constrained {
			lo, err := a.alg.ArrayBound(arr, i, true, bref, false, false)
			if err != nil {
				return nil, err
			}
			idx = a.b.Sub(idx, lo)
		}
		out[i] = a.widen(idx, d.Index)
	}
	return storageOrder(s, out), nil
}

// IndexedLValue returns a reference to the element at the zero-based
// storage-order indices.
func (a *Addresser) IndexedLValue(indices []*ir.Value, v gltype.Value) (gltype.Value, error) {
	arr, s, err := a.array(v)
	if err != nil {
		return gltype.Value{}, err
	}
	if len(indices) != len(s.Dims) {
		return gltype.Value{}, errors.Internal(errors.PhaseAddress, "%d indexes for %d-dimensional %s", len(indices), len(s.Dims), arr)
	}
	phys := a.reg.Physical(v.GT)
	if v.Rel == gltype.Reference && a.tb.IsNative(phys) {
		return a.nativeLValue(indices, v, arr, phys)
	}
	return a.dynamicLValue(indices, v, arr, s)
}

// nativeLValue addresses an array of fixed layout with one GEP.
func (a *Addresser) nativeLValue(indices []*ir.Value, v gltype.Value, arr *sem.Type, phys *target.Type) (gltype.Value, error) {
	comp, _, err := a.component(arr)
	if err != nil {
		return gltype.Value{}, err
	}
	ptr := a.b.Bitcast(v.IR, a.tb.PointerTo(phys))
	idx := append([]*ir.Value{a.b.Const(a.tb.Int(32), 0)}, indices...)
	return gltype.Value{IR: a.b.GEP(phys, ptr, idx...), GT: comp, Rel: gltype.Reference}, nil
}

// dynamicLValue folds the indices into one linear offset and steps over
// it in units of the component, or in bytes when the component has no
// fixed size.
func (a *Addresser) dynamicLValue(indices []*ir.Value, v gltype.Value, arr *sem.Type, s *shape.Shape) (gltype.Value, error) {
	comp, compPhys, err := a.component(arr)
	if err != nil {
		return gltype.Value{}, err
	}
	data, err := a.dataPtr(v)
	if err != nil {
		return gltype.Value{}, err
	}
	unit, byBytes := compPhys, !a.tb.IsNative(compPhys)
	if byBytes {
		unit = a.tb.Int(8)
	}
	base := a.b.Bitcast(data, a.tb.PointerTo(unit))
	bref := a.boundsRef(v, s)
	iptr := a.tb.IntPtr()

	var off *ir.Value
	for k, ix := range indices {
		ix = a.b.IntCast(ix, iptr, true)
		if k == 0 {
			off = ix
			continue
		}
		dim := k
		if s.ColumnMajor {
			dim = len(indices) - 1 - k
		}
		n, err := a.alg.ArrayLength(arr, dim, bref, false)
		if err != nil {
			return gltype.Value{}, err
		}
		off = a.b.Add(a.b.Mul(off, n), ix)
	}
	if byBytes {
		es, err := a.alg.ElementSize(arr.Component)
		if err != nil {
			return gltype.Value{}, err
		}
		off = a.b.Mul(off, es)
	}
	p := a.b.GEP(unit, base, off)
	return gltype.Value{IR: a.b.Bitcast(p, a.tb.PointerTo(compPhys)), GT: comp, Rel: gltype.Reference}, nil
}

// SliceLValue returns a reference to the slice of one-dimensional v
// described by the constrained type result.
func (a *Addresser) SliceLValue(result *sem.Type, v gltype.Value) (gltype.Value, error) {
	arr, s, err := a.array(v)
	if err != nil {
		return gltype.Value{}, err
	}
	if len(s.Dims) != 1 || result.Dims() != 1 || !result.Constrained {
		return gltype.Value{}, errors.Internal(errors.PhaseAddress, "slice %s of %s", result, arr)
	}
	rgt := a.reg.Default(result)
	if !rgt.Present() {
		return gltype.Value{}, errors.Internal(errors.PhaseAddress, "slice type %s not elaborated", result)
	}
	d := s.Dims[0]
	sgn := !d.Index.IsUnsigned()
	bref := a.boundsRef(v, s)

	lo, err := a.alg.ArrayBound(result, 0, true, bref, false, false)
	if err != nil {
		return gltype.Value{}, err
	}
	base, err := a.alg.ArrayBound(arr, 0, true, bref, false, false)
	if err != nil {
		return gltype.Value{}, err
	}
	off := a.widen(a.b.Sub(a.b.IntCast(lo, d.BoundType, sgn), base), d.Index)
	elem, err := a.IndexedLValue([]*ir.Value{off}, v)
	if err != nil {
		return gltype.Value{}, err
	}
	a.log.Debug("slice",
		zap.String("array", arr.Name),
		zap.String("slice", result.Name),
		zap.Stringer("offset", off))
	rp := a.tb.PointerTo(a.reg.Physical(rgt))
	return gltype.Value{IR: a.b.Bitcast(elem.IR, rp), GT: rgt, Rel: gltype.Reference}, nil
}
