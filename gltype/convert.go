package gltype

import (
	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/ir"
)

// converter moves values of one alternate kind to and from the primitive
// alternate. from is the alternate being left, to the one being entered.
type converter interface {
	toPrimitive(c *convCtx, v Value, prim GLType) (Value, error)
	fromPrimitive(c *convCtx, v Value, to GLType) (Value, error)
}

// converters is indexed by the kind of the non-primitive side. Unset has no
// converter: values never have an unclassified alternate.
var converters = [numKinds]converter{
	KindPrimitive: identityConv{},
	KindDummy:     dummyConv{},
	KindIntAlt:    intAltConv{},
	KindBiased:    biasedConv{},
	KindPadded:    paddedConv{},
	KindByteArray: byteArrayConv{},
	KindMaxSize:   markerConv{},
	KindAligning:  markerConv{},
}

type convCtx struct {
	r *Registry
	b *ir.Builder
}

// ToPrimitive converts v to the primitive alternate of its source type.
func (r *Registry) ToPrimitive(b *ir.Builder, v Value) (Value, error) {
	c := &convCtx{r: r, b: b}
	v = c.collapse(v)
	prim := r.Primitive(r.Source(v.GT))
	if prim == None {
		return Value{}, errors.Internal(errors.PhaseConvert, "%s has no primitive alternate", r.Source(v.GT))
	}
	switch {
	case v.GT == prim:
		return v, nil
	case v.Rel == Bounds:
		return v.Of(prim), nil
	case v.Rel == BoundsAndDataRef:
		return c.repoint(v, prim)
	}
	conv := converters[r.Kind(v.GT)]
	if conv == nil {
		return Value{}, errors.Internal(errors.PhaseConvert, "convert from %s alternate", r.Kind(v.GT))
	}
	return conv.toPrimitive(c, v, prim)
}

// FromPrimitive converts v, which must be in the primitive alternate, to
// alternate to of the same source type.
func (r *Registry) FromPrimitive(b *ir.Builder, v Value, to GLType) (Value, error) {
	c := &convCtx{r: r, b: b}
	v = c.collapse(v)
	if !r.IsPrimitive(v.GT) {
		return Value{}, errors.Internal(errors.PhaseConvert, "from_primitive on %s alternate", r.Kind(v.GT))
	}
	if r.Source(to) != r.Source(v.GT) {
		return Value{}, errors.New(errors.PhaseConvert, errors.KindInternal).
			SourceType(r.Source(v.GT).Name).TargetType(r.Source(to).Name).
			Detail("alternate belongs to another type").Build()
	}
	switch {
	case to == v.GT:
		return v, nil
	case v.Rel == Bounds:
		return v.Of(to), nil
	case v.Rel == BoundsAndDataRef:
		return c.repoint(v, to)
	}
	conv := converters[r.Kind(to)]
	if conv == nil {
		return Value{}, errors.Internal(errors.PhaseConvert, "convert to %s alternate", r.Kind(to))
	}
	return conv.fromPrimitive(c, v, to)
}

// Convert moves v to alternate to through the primitive.
func (r *Registry) Convert(b *ir.Builder, v Value, to GLType) (Value, error) {
	if v.GT == to {
		return v, nil
	}
	p, err := r.ToPrimitive(b, v)
	if err != nil {
		return Value{}, err
	}
	return r.FromPrimitive(b, p, to)
}

// collapse turns a reference to a reference into a reference.
func (c *convCtx) collapse(v Value) Value {
	if v.Rel != ReferenceToReference {
		return v
	}
	return Value{IR: c.b.Load(v.IR, false), GT: v.GT, Rel: Reference}
}

// data materializes v as an object value.
func (c *convCtx) data(v Value) (Value, error) {
	switch v.Rel {
	case Data:
		return v, nil
	case Reference:
		return Value{IR: c.b.Load(v.IR, false), GT: v.GT, Rel: Data}, nil
	}
	return Value{}, errors.Internal(errors.PhaseConvert, "%s value cannot be loaded as data", v.Rel)
}

// repoint reinterprets the pointer of a reference-valued v as designating
// the physical type of to, keeping the relationship.
func (c *convCtx) repoint(v Value, to GLType) (Value, error) {
	tb := c.r.tb
	ptr := tb.PointerTo(c.r.Physical(to))
	switch v.Rel {
	case Reference, BoundsAndDataRef:
		return Value{IR: c.b.Bitcast(v.IR, ptr), GT: to, Rel: v.Rel}, nil
	case FatPointer:
		data := c.b.Bitcast(c.b.Extract(v.IR, 0), ptr)
		bounds := c.b.Extract(v.IR, 1)
		ft := tb.FatPointer(c.r.Physical(to), bounds.Type().Elem())
		fp := c.b.Insert(c.b.Insert(c.b.Undef(ft), data, 0), bounds, 1)
		return Value{IR: fp, GT: to, Rel: FatPointer}, nil
	case Bounds:
		return v.Of(to), nil
	}
	return Value{}, errors.Internal(errors.PhaseConvert, "cannot reinterpret %s value of %s", v.Rel, c.r.Source(v.GT))
}

type identityConv struct{}

func (identityConv) toPrimitive(_ *convCtx, v Value, _ GLType) (Value, error)   { return v, nil }
func (identityConv) fromPrimitive(_ *convCtx, v Value, _ GLType) (Value, error) { return v, nil }

// markerConv re-tags: markers share the primitive's physical type.
type markerConv struct{}

func (markerConv) toPrimitive(_ *convCtx, v Value, prim GLType) (Value, error) { return v.Of(prim), nil }
func (markerConv) fromPrimitive(_ *convCtx, v Value, to GLType) (Value, error) { return v.Of(to), nil }

// dummyConv changes only the pointer type of an access value.
type dummyConv struct{}

func (dummyConv) toPrimitive(c *convCtx, v Value, prim GLType) (Value, error) {
	return c.pointerCast(v, prim)
}

func (dummyConv) fromPrimitive(c *convCtx, v Value, to GLType) (Value, error) {
	return c.pointerCast(v, to)
}

func (c *convCtx) pointerCast(v Value, to GLType) (Value, error) {
	if v.Rel != Data {
		return c.repoint(v, to)
	}
	phys := c.r.Physical(to)
	if !v.IR.Type().IsPointer() || !phys.IsPointer() {
		mismatch := errors.TypeMismatch(errors.PhaseConvert, nil, v.IR.Type().String(), phys.String())
		return Value{}, errors.Wrap(errors.PhaseConvert, errors.KindInternal, mismatch,
			"dummy conversion of a non-pointer value")
	}
	return Value{IR: c.b.Bitcast(v.IR, phys), GT: to, Rel: Data}, nil
}

// intAltConv truncates or extends according to the declared range.
type intAltConv struct{}

func (intAltConv) toPrimitive(c *convCtx, v Value, prim GLType) (Value, error) {
	return c.intCast(v, prim)
}

func (intAltConv) fromPrimitive(c *convCtx, v Value, to GLType) (Value, error) {
	return c.intCast(v, to)
}

func (c *convCtx) intCast(v Value, to GLType) (Value, error) {
	d, err := c.data(v)
	if err != nil {
		return Value{}, err
	}
	signed := c.r.Source(to).HasSignedRange()
	return Value{IR: c.b.IntCast(d.IR, c.r.Physical(to), signed), GT: to, Rel: Data}, nil
}

// biasedConv stores value - bias in the alternate's width.
type biasedConv struct{}

func (biasedConv) toPrimitive(c *convCtx, v Value, prim GLType) (Value, error) {
	d, err := c.data(v)
	if err != nil {
		return Value{}, err
	}
	bias, _ := c.r.Bias(v.GT)
	phys := c.r.Physical(prim)
	wide := c.b.IntCast(d.IR, phys, false)
	return Value{IR: c.b.Add(wide, c.b.Const(phys, bias)), GT: prim, Rel: Data}, nil
}

func (biasedConv) fromPrimitive(c *convCtx, v Value, to GLType) (Value, error) {
	d, err := c.data(v)
	if err != nil {
		return Value{}, err
	}
	bias, _ := c.r.Bias(to)
	off := c.b.Sub(d.IR, c.b.Const(d.IR.Type(), bias))
	return Value{IR: c.b.IntCast(off, c.r.Physical(to), false), GT: to, Rel: Data}, nil
}

// paddedConv reaches the primitive as field 0 of the padded struct.
type paddedConv struct{}

func (paddedConv) toPrimitive(c *convCtx, v Value, prim GLType) (Value, error) {
	switch v.Rel {
	case Data:
		return Value{IR: c.b.Extract(v.IR, 0), GT: prim, Rel: Data}, nil
	case Reference:
		return Value{IR: c.b.StructGEP(v.IR, 0), GT: prim, Rel: Reference}, nil
	}
	return c.repoint(v, prim)
}

func (paddedConv) fromPrimitive(c *convCtx, v Value, to GLType) (Value, error) {
	if v.Rel == Data {
		phys := c.r.Physical(to)
		return Value{IR: c.b.Insert(c.b.Undef(phys), v.IR, 0), GT: to, Rel: Data}, nil
	}
	return c.repoint(v, to)
}

// byteArrayConv only ever works through memory.
type byteArrayConv struct{}

func (byteArrayConv) toPrimitive(c *convCtx, v Value, prim GLType) (Value, error) {
	if v.Rel == Data {
		slot := c.b.Alloca(c.r.Physical(v.GT), "")
		c.b.Store(v.IR, slot, false)
		v = Value{IR: slot, GT: v.GT, Rel: Reference}
	}
	return c.repoint(v, prim)
}

func (byteArrayConv) fromPrimitive(c *convCtx, v Value, to GLType) (Value, error) {
	if v.Rel == Data {
		return Value{}, errors.Internal(errors.PhaseConvert, "dynamically sized %s held as data", c.r.Source(v.GT))
	}
	return c.repoint(v, to)
}
