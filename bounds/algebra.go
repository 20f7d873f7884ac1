package bounds

import (
	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/shape"
	"github.com/Lucretia/gnat-llvm/target"
)

// Algebra derives array bounds, lengths, and sizes from the primitives of
// domain D. The same rules serve code generation, dynamism tests, and
// symbolic back-annotation.
type Algebra[R any, D Domain[R]] struct {
	D      D
	Types  Types
	shapes *shape.Table
	reg    *gltype.Registry
	tb     *target.Builder
}

func newAlgebra[R any, D Domain[R]](d D, reg *gltype.Registry, shapes *shape.Table) *Algebra[R, D] {
	tb := reg.Target()
	return &Algebra[R, D]{D: d, Types: NewTypes(tb, shapes), shapes: shapes, reg: reg, tb: tb}
}

// Shape returns the shape of arr, building it on first use.
func (a *Algebra[R, D]) Shape(arr *sem.Type) (*shape.Shape, error) {
	return a.shapes.Shape(arr)
}

// Eval evaluates a source expression in the domain. The result has the
// bound type of the expression's type.
func (a *Algebra[R, D]) Eval(e sem.Expr) (R, error) {
	var zero R
	t := a.Types.Of(e.Type())
	switch e := e.(type) {
	case *sem.IntLit:
		return a.D.Const(t, e.Value), nil
	case *sem.EnumLit:
		return a.D.Const(t, e.Pos), nil
	case *sem.DiscRef, *sem.PosCall, *sem.ObjRef:
		return a.D.Leaf(e, t)
	case *sem.Attr:
		switch e.Kind {
		case sem.AttrLength:
			p := e.Prefix
			lo, err := a.EvalConvert(p.Low, a.Types.Of(p), signed(p))
			if err != nil {
				return zero, err
			}
			hi, err := a.EvalConvert(p.High, a.Types.Of(p), signed(p))
			if err != nil {
				return zero, err
			}
			return a.BoundsToLength(lo, hi, t, false, p.IsUnsigned()), nil
		case sem.AttrMin, sem.AttrMax:
			if len(e.Args) != 2 {
				return zero, errors.Internal(errors.PhaseBounds, "'%s with %d arguments", e.Kind, len(e.Args))
			}
			x, err := a.EvalConvert(e.Args[0], t, signed(e.Typ))
			if err != nil {
				return zero, err
			}
			y, err := a.EvalConvert(e.Args[1], t, signed(e.Typ))
			if err != nil {
				return zero, err
			}
			if e.Kind == sem.AttrMin {
				return a.D.Min(x, y, !signed(e.Typ)), nil
			}
			return a.D.Max(x, y, !signed(e.Typ)), nil
		}
	case *sem.Unary:
		x, err := a.EvalConvert(e.X, t, signed(e.Type()))
		if err != nil || e.Op == sem.OpPlus {
			return x, err
		}
		return a.D.Neg(x), nil
	case *sem.Binary:
		x, err := a.EvalConvert(e.X, t, signed(e.Typ))
		if err != nil {
			return zero, err
		}
		y, err := a.EvalConvert(e.Y, t, signed(e.Typ))
		if err != nil {
			return zero, err
		}
		return a.arith(e.Op, x, y, e.Typ), nil
	case *sem.Conversion:
		return a.EvalConvert(e.X, t, signed(e.X.Type()))
	}
	return zero, errors.Internal(errors.PhaseBounds, "cannot evaluate %s as a bound", e)
}

// EvalConvert evaluates e and converts the result to t.
func (a *Algebra[R, D]) EvalConvert(e sem.Expr, t *target.Type, sgn bool) (R, error) {
	v, err := a.Eval(e)
	if err != nil {
		return v, err
	}
	return a.D.Convert(v, t, sgn), nil
}

func (a *Algebra[R, D]) arith(op sem.BinaryOp, x, y R, st *sem.Type) R {
	switch op {
	case sem.OpAdd:
		return a.D.Add(x, y)
	case sem.OpSub:
		return a.D.Sub(x, y)
	case sem.OpMul:
		return a.D.Mul(x, y)
	}
	if signed(st) {
		return a.D.SDiv(x, y)
	}
	return a.D.UDiv(x, y)
}

// BoundsToLength computes the number of elements in lo .. hi as a value of
// type t. Bounds known not to be superflat skip the empty-range test.
func (a *Algebra[R, D]) BoundsToLength(lo, hi R, t *target.Type, notSuperflat, unsigned bool) R {
	d := a.D
	hiT := d.Convert(hi, t, !unsigned)
	if c, ok := d.ConstValue(lo); ok && c == 1 {
		if notSuperflat {
			return hiT
		}
		return d.Max(hiT, d.Const(t, 0), false)
	}
	n := d.Add(d.Sub(hiT, d.Convert(lo, t, !unsigned)), d.Const(t, 1))
	if notSuperflat {
		return n
	}
	pred := ir.PredSGT
	if unsigned {
		pred = ir.PredUGT
	}
	return d.Select(d.Compare(pred, lo, hi), d.Const(t, 0), n)
}

// EvalMinMax returns the least (wantLow) or greatest value e can take over
// every value of the discriminants it references, each taken from its
// subtype's range. Products and quotients combine like-named extremes
// of their operands.
func (a *Algebra[R, D]) EvalMinMax(e sem.Expr, wantLow bool) (R, error) {
	var zero R
	if !sem.HasDiscriminant(e) {
		return a.Eval(e)
	}
	t := a.Types.Of(e.Type())
	switch e := e.(type) {
	case *sem.DiscRef:
		return a.discExtreme(e.Disc, t, wantLow)
	case *sem.PosCall:
		return a.discExtreme(e.Disc, t, wantLow)
	case *sem.Attr:
		switch e.Kind {
		case sem.AttrLength:
			p := e.Prefix
			pt := a.Types.Of(p)
			lo, err := a.minMaxAs(p.Low, pt, !wantLow, signed(p))
			if err != nil {
				return zero, err
			}
			hi, err := a.minMaxAs(p.High, pt, wantLow, signed(p))
			if err != nil {
				return zero, err
			}
			return a.BoundsToLength(lo, hi, t, false, p.IsUnsigned()), nil
		case sem.AttrMin, sem.AttrMax:
			if len(e.Args) != 2 {
				break
			}
			x, err := a.minMaxAs(e.Args[0], t, wantLow, signed(e.Typ))
			if err != nil {
				return zero, err
			}
			y, err := a.minMaxAs(e.Args[1], t, wantLow, signed(e.Typ))
			if err != nil {
				return zero, err
			}
			if e.Kind == sem.AttrMin {
				return a.D.Min(x, y, !signed(e.Typ)), nil
			}
			return a.D.Max(x, y, !signed(e.Typ)), nil
		}
	case *sem.Unary:
		if e.Op == sem.OpPlus {
			return a.minMaxAs(e.X, t, wantLow, signed(e.Type()))
		}
		x, err := a.minMaxAs(e.X, t, !wantLow, signed(e.Type()))
		if err != nil {
			return zero, err
		}
		return a.D.Neg(x), nil
	case *sem.Binary:
		x, err := a.minMaxAs(e.X, t, wantLow, signed(e.Typ))
		if err != nil {
			return zero, err
		}
		y, err := a.minMaxAs(e.Y, t, wantLow != (e.Op == sem.OpSub), signed(e.Typ))
		if err != nil {
			return zero, err
		}
		return a.arith(e.Op, x, y, e.Typ), nil
	case *sem.Conversion:
		return a.minMaxAs(e.X, t, wantLow, signed(e.X.Type()))
	}
	return zero, errors.Internal(errors.PhaseBounds, "cannot bound %s over its discriminants", e)
}

func (a *Algebra[R, D]) minMaxAs(e sem.Expr, t *target.Type, wantLow, sgn bool) (R, error) {
	v, err := a.EvalMinMax(e, wantLow)
	if err != nil {
		return v, err
	}
	return a.D.Convert(v, t, sgn), nil
}

func (a *Algebra[R, D]) discExtreme(d *sem.Discriminant, t *target.Type, wantLow bool) (R, error) {
	b := d.Type.High
	if wantLow {
		b = d.Type.Low
	}
	return a.EvalConvert(b, t, signed(d.Type))
}

// ArrayBound returns the low or high bound of dimension dim of arr.
// v is the object's bounds record, consulted only when the type does not
// fix the bound. With maxSize, discriminant-dependent bounds are widened
// to their extreme over the discriminant's range, clipped to the index
// subtype, and unconstrained dimensions take the index subtype's bounds.
// forOrig reads a packed implementation type's bounds from the array
// type it implements.
func (a *Algebra[R, D]) ArrayBound(arr *sem.Type, dim int, low bool, v R, maxSize, forOrig bool) (R, error) {
	var zero R
	if forOrig && arr.PackedImpl && arr.Original != nil {
		arr = arr.Original
	}
	s, err := a.shapes.Shape(arr)
	if err != nil {
		return zero, err
	}
	if dim < 0 || dim >= len(s.Dims) {
		return zero, errors.Internal(errors.PhaseBounds, "dimension %d of %d-dimensional %s", dim, len(s.Dims), arr)
	}
	d := s.Dims[dim]
	b, ib := d.High, d.Index.High
	if low {
		b, ib = d.Low, d.Index.Low
	}
	sgn := !d.Index.IsUnsigned()

	switch {
	case b.IsConst:
		return a.D.Const(d.BoundType, b.Value), nil
	case b.Expr != nil && maxSize && sem.HasDiscriminant(b.Expr):
		x, err := a.minMaxAs(b.Expr, d.BoundType, low, sgn)
		if err != nil {
			return zero, err
		}
		lim, err := a.EvalConvert(ib, d.BoundType, sgn)
		if err != nil {
			return zero, err
		}
		if low {
			return a.D.Max(x, lim, !sgn), nil
		}
		return a.D.Min(x, lim, !sgn), nil
	case b.Expr != nil:
		return a.EvalConvert(b.Expr, d.BoundType, sgn)
	case maxSize:
		return a.EvalConvert(ib, d.BoundType, sgn)
	}
	return a.D.ExtractBound(v, s.Slot(dim, !low), d.BoundType), nil
}

// ArrayLength returns the number of elements of dimension dim at pointer
// width.
func (a *Algebra[R, D]) ArrayLength(arr *sem.Type, dim int, v R, maxSize bool) (R, error) {
	var zero R
	lo, err := a.ArrayBound(arr, dim, true, v, maxSize, false)
	if err != nil {
		return zero, err
	}
	hi, err := a.ArrayBound(arr, dim, false, v, maxSize, false)
	if err != nil {
		return zero, err
	}
	s, _ := a.shapes.Shape(arr)
	d := s.Dims[dim]
	return a.BoundsToLength(lo, hi, a.tb.IntPtr(), d.NotSuperflat, d.Index.IsUnsigned()), nil
}

// ArrayElements returns the product of all dimension lengths.
func (a *Algebra[R, D]) ArrayElements(arr *sem.Type, v R, maxSize bool) (R, error) {
	n := a.D.SizeConst(1)
	for dim := range arr.Dims() {
		l, err := a.ArrayLength(arr, dim, v, maxSize)
		if err != nil {
			return n, err
		}
		n = a.D.Mul(n, l)
	}
	return n, nil
}

// ArrayTypeSize returns the size in bytes of an object of type arr: the
// component's maximum size times the element count.
func (a *Algebra[R, D]) ArrayTypeSize(arr *sem.Type, v R, maxSize bool) (R, error) {
	es, err := a.ElementSize(arr.Component)
	if err != nil {
		return es, err
	}
	n, err := a.ArrayElements(arr, v, maxSize)
	if err != nil {
		return n, err
	}
	return a.D.Mul(es, n), nil
}

// ElementSize returns the size in bytes of one component of type comp.
// Components of variable size occupy their maximum size: that of an array
// component's widest bounds, or else the largest fixed-layout max-size or
// byte-array alternate registered for comp.
func (a *Algebra[R, D]) ElementSize(comp *sem.Type) (R, error) {
	var zero R
	gt := a.reg.Default(comp)
	if !gt.Present() {
		return zero, errors.Internal(errors.PhaseBounds, "component type %s has no representation", comp)
	}
	phys := a.reg.Physical(gt)
	if a.tb.IsNative(phys) {
		return a.D.TypeSize(phys), nil
	}
	if comp.IsArray() {
		return a.ArrayTypeSize(comp, a.D.Undef(a.tb.IntPtr()), true)
	}
	if fixed := a.fixedAlternate(comp); fixed != nil {
		return a.D.TypeSize(fixed), nil
	}
	return zero, errors.Unsupported(errors.PhaseBounds, "size of variable-size component type "+comp.Name)
}

// fixedAlternate returns the largest native physical type among comp's
// max-size and byte-array alternates, or nil.
func (a *Algebra[R, D]) fixedAlternate(comp *sem.Type) *target.Type {
	var best *target.Type
	var bestSize uint64
	for gt := range a.reg.Alternates(comp) {
		k := a.reg.Kind(gt)
		if k != gltype.KindMaxSize && k != gltype.KindByteArray {
			continue
		}
		phys := a.reg.Physical(gt)
		if !a.tb.IsNative(phys) {
			continue
		}
		if size, _ := a.tb.SizeOf(phys); best == nil || size > bestSize {
			best, bestSize = phys, size
		}
	}
	return best
}
