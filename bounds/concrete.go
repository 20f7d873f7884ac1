package bounds

import (
	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/shape"
	"github.com/Lucretia/gnat-llvm/target"
)

// Env supplies the run-time values bound expressions may reference.
type Env struct {
	Discs   map[*sem.Discriminant]*ir.Value
	Objects map[string]*ir.Value
}

// Bind records the value of discriminant d.
func (e *Env) Bind(d *sem.Discriminant, v *ir.Value) {
	if e.Discs == nil {
		e.Discs = make(map[*sem.Discriminant]*ir.Value)
	}
	e.Discs[d] = v
}

// Concrete computes bounds as IR values, emitting instructions for
// whatever does not fold.
type Concrete struct {
	B   *ir.Builder
	Env *Env
	tb  *target.Builder
}

// NewConcrete returns the code-generating algebra. env may be nil when no
// discriminant or object is in scope.
func NewConcrete(b *ir.Builder, env *Env, reg *gltype.Registry, shapes *shape.Table) *Algebra[*ir.Value, Concrete] {
	if env == nil {
		env = &Env{}
	}
	return newAlgebra[*ir.Value](Concrete{B: b, Env: env, tb: reg.Target()}, reg, shapes)
}

func (c Concrete) Const(t *target.Type, v int64) *ir.Value { return c.B.Const(t, v) }

func (c Concrete) SizeConst(v uint64) *ir.Value { return c.B.Const(c.tb.IntPtr(), int64(v)) }

func (c Concrete) TypeSize(t *target.Type) *ir.Value {
	n, _ := c.tb.SizeOf(t)
	return c.SizeConst(n)
}

func (c Concrete) Undef(t *target.Type) *ir.Value { return c.B.Undef(t) }

func (c Concrete) Compare(p ir.Pred, x, y *ir.Value) *ir.Value { return c.B.ICmp(p, x, y) }
func (c Concrete) Add(x, y *ir.Value) *ir.Value                { return c.B.Add(x, y) }
func (c Concrete) Sub(x, y *ir.Value) *ir.Value                { return c.B.Sub(x, y) }
func (c Concrete) Mul(x, y *ir.Value) *ir.Value                { return c.B.Mul(x, y) }
func (c Concrete) UDiv(x, y *ir.Value) *ir.Value               { return c.B.UDiv(x, y) }
func (c Concrete) SDiv(x, y *ir.Value) *ir.Value               { return c.B.SDiv(x, y) }
func (c Concrete) Neg(x *ir.Value) *ir.Value                   { return c.B.Neg(x) }
func (c Concrete) Select(cond, x, y *ir.Value) *ir.Value       { return c.B.Select(cond, x, y) }

func (c Concrete) Min(x, y *ir.Value, unsigned bool) *ir.Value { return c.B.Min(x, y, unsigned) }
func (c Concrete) Max(x, y *ir.Value, unsigned bool) *ir.Value { return c.B.Max(x, y, unsigned) }

func (c Concrete) Convert(v *ir.Value, t *target.Type, signed bool) *ir.Value {
	return c.B.IntCast(v, t, signed)
}

// ExtractBound accepts either a pointer to the bounds record or the
// record itself.
func (c Concrete) ExtractBound(v *ir.Value, slot int, t *target.Type) *ir.Value {
	var b *ir.Value
	if v.Type().IsPointer() {
		b = c.B.Load(c.B.StructGEP(v, slot), false)
	} else {
		b = c.B.Extract(v, slot)
	}
	return c.B.IntCast(b, t, true)
}

func (c Concrete) Leaf(e sem.Expr, t *target.Type) (*ir.Value, error) {
	switch e := e.(type) {
	case *sem.DiscRef:
		return c.disc(e.Disc, t)
	case *sem.PosCall:
		return c.disc(e.Disc, t)
	case *sem.ObjRef:
		v, ok := c.Env.Objects[e.Name]
		if !ok {
			return nil, errors.NotFound(errors.PhaseBounds, "object", e.Name)
		}
		return c.B.IntCast(v, t, signed(e.Typ)), nil
	}
	return nil, errors.Internal(errors.PhaseBounds, "%s is not a leaf", e)
}

func (c Concrete) disc(d *sem.Discriminant, t *target.Type) (*ir.Value, error) {
	v, ok := c.Env.Discs[d]
	if !ok {
		rec := ""
		if d.Record != nil {
			rec = d.Record.Name
		}
		return nil, errors.MissingDiscriminant(errors.PhaseBounds, rec, d.Name)
	}
	return c.B.IntCast(v, t, signed(d.Type)), nil
}

func (c Concrete) IsConst(v *ir.Value) bool             { return v.IsConst() }
func (c Concrete) ConstValue(v *ir.Value) (int64, bool) { return v.ConstInt() }
func (c Concrete) TypeOf(v *ir.Value) *target.Type      { return v.Type() }
