package lower

import (
	"go.uber.org/zap"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/shape"
	"github.com/Lucretia/gnat-llvm/target"
)

// Lowerer elaborates source types: it gives each one its natural physical
// type as the primitive alternate, then applies the type's own size and
// alignment clauses.
type Lowerer struct {
	reg        *gltype.Registry
	shapes     *shape.Table
	tb         *target.Builder
	inProgress map[*sem.Type]bool
	dummies    []*sem.Type
	log        *zap.Logger
}

// New returns a lowerer that records alternates in reg.
func New(reg *gltype.Registry, shapes *shape.Table) *Lowerer {
	return &Lowerer{
		reg:        reg,
		shapes:     shapes,
		tb:         reg.Target(),
		inProgress: make(map[*sem.Type]bool),
		log:        Logger(),
	}
}

// Model elaborates every type of m in declaration order, then completes
// the access types elaborated before their designated type.
func (l *Lowerer) Model(m *sem.Model) error {
	for _, t := range m.Types() {
		if _, err := l.Type(t); err != nil {
			return err
		}
	}
	return l.Complete()
}

// Type elaborates t if needed and returns its default alternate.
func (l *Lowerer) Type(t *sem.Type) (gltype.GLType, error) {
	if gt := l.reg.Default(t); gt != gltype.None && !l.reg.IsEmpty(gt) {
		return gt, nil
	}
	if l.inProgress[t] {
		return gltype.None, errors.Internal(errors.PhaseLower, "type %s depends on itself", t)
	}
	l.inProgress[t] = true
	defer delete(l.inProgress, t)

	phys, dummy, err := l.natural(t)
	if err != nil {
		return gltype.None, err
	}
	gt := l.reg.NewUnset(t)
	if err := l.reg.SetPrimitive(gt, phys, dummy); err != nil {
		return gltype.None, err
	}
	if dummy {
		l.dummies = append(l.dummies, t)
	}
	l.log.Debug("elaborated",
		zap.String("type", t.Name),
		zap.Stringer("kind", t.Kind),
		zap.Stringer("physical", phys),
		zap.Bool("dummy", dummy))

	if t.SizeClause != nil || t.Alignment != 0 {
		return l.reg.FindOrCreate(gltype.Request{
			Source:  t,
			Entity:  &t.Entity,
			Size:    clauseSize(t),
			Align:   t.Alignment,
			ForType: true,
		})
	}
	return gt, nil
}

func clauseSize(t *sem.Type) uint64 {
	if t.SizeClause == nil {
		return 0
	}
	return uint64(t.RMSize)
}

// Complete gives the access types that were elaborated as dummies their
// real pointer type, now that the designated types are known.
func (l *Lowerer) Complete() error {
	pending := l.dummies
	l.dummies = nil
	for _, t := range pending {
		if t.Designated == nil || l.reg.Primitive(t) != gltype.None {
			continue
		}
		phys, dummy, err := l.natural(t)
		if err != nil {
			return err
		}
		if dummy {
			continue
		}
		gt := l.reg.NewUnset(t)
		if err := l.reg.SetPrimitive(gt, phys, false); err != nil {
			return err
		}
	}
	return nil
}

// Component returns the alternate for a component of type t declared by
// ent, honoring the component's size clause.
func (l *Lowerer) Component(t *sem.Type, ent *sem.Entity, size uint64) (gltype.GLType, error) {
	gt, err := l.Type(t)
	if err != nil || size == 0 {
		return gt, err
	}
	return l.reg.FindOrCreate(gltype.Request{
		Source:       t,
		Entity:       ent,
		Size:         size,
		ForComponent: true,
	})
}

// Physical returns the physical type of t's default alternate.
func (l *Lowerer) Physical(t *sem.Type) (*target.Type, error) {
	gt, err := l.Type(t)
	if err != nil {
		return nil, err
	}
	return l.reg.Physical(gt), nil
}

func (l *Lowerer) natural(t *sem.Type) (*target.Type, bool, error) {
	switch {
	case t.IsDiscrete() || t.Kind == sem.KindFixed:
		bits, ok := t.StorageBits()
		if !ok {
			return nil, false, errors.Internal(errors.PhaseLower, "scalar type %s has no static range", t)
		}
		return l.tb.Int(bits), false, nil
	case t.Kind == sem.KindFloat:
		bits := t.FloatBits
		if bits == 0 {
			bits = 64
		}
		return l.tb.Float(bits), false, nil
	case t.IsAccess():
		return l.access(t)
	case t.IsArray():
		phys, err := l.array(t)
		return phys, false, err
	case t.IsRecord():
		phys, err := l.record(t)
		return phys, false, err
	}
	return nil, false, errors.Unsupported(errors.PhaseLower, "type kind "+t.Kind.String())
}

func (l *Lowerer) access(t *sem.Type) (*target.Type, bool, error) {
	d := t.Designated
	// Records not yet elaborated may refer back to t.
	if d == nil || l.inProgress[d] || (d.IsRecord() && l.reg.Primitive(d) == gltype.None) {
		return l.tb.PointerTo(l.tb.Int(8)), true, nil
	}
	if d.IsUnconstrainedArray() {
		s, err := l.shapes.Shape(d)
		if err != nil {
			return nil, false, err
		}
		comp, err := l.Physical(d.Component)
		if err != nil {
			return nil, false, err
		}
		return l.tb.FatPointer(comp, s.BoundsType), false, nil
	}
	phys, err := l.Physical(d)
	if err != nil {
		return nil, false, err
	}
	return l.tb.PointerTo(phys), false, nil
}

// array lowers constrained arrays with static bounds and a native
// component to nested IR arrays, outermost dimension first. Everything
// else has no fixed layout.
func (l *Lowerer) array(t *sem.Type) (*target.Type, error) {
	comp, err := l.Physical(t.Component)
	if err != nil {
		return nil, err
	}
	s, err := l.shapes.Shape(t)
	if err != nil {
		return nil, err
	}
	if !t.Constrained || !l.tb.IsNative(comp) {
		return l.tb.Opaque(t.Name, l.tb.AlignOf(comp)), nil
	}
	lens := make([]uint64, len(s.Dims))
	for i, d := range s.Dims {
		if !d.Low.IsConst || !d.High.IsConst {
			return l.tb.Opaque(t.Name, l.tb.AlignOf(comp)), nil
		}
		lens[i] = uint64(max(d.High.Value-d.Low.Value+1, 0))
	}
	phys := comp
	for i := len(lens) - 1; i >= 0; i-- {
		n := lens[i]
		if s.ColumnMajor {
			n = lens[len(lens)-1-i]
		}
		phys = l.tb.Array(phys, n)
	}
	return phys, nil
}

// record lays discriminants out first, then components in declaration
// order. A record containing a component of variable size is opaque.
func (l *Lowerer) record(t *sem.Type) (*target.Type, error) {
	var fields []*target.Type
	var align uint64 = 1
	native := true
	for _, d := range t.Discriminants {
		phys, err := l.Physical(d.Type)
		if err != nil {
			return nil, err
		}
		align = max(align, l.tb.AlignOf(phys))
		fields = append(fields, phys)
	}
	for _, c := range t.Components {
		phys, err := l.Physical(c.Type)
		if err != nil {
			return nil, err
		}
		native = native && l.tb.IsNative(phys)
		align = max(align, l.tb.AlignOf(phys))
		fields = append(fields, phys)
	}
	if !native {
		return l.tb.Opaque(t.Name, align), nil
	}
	return l.tb.Struct(t.Name, fields...), nil
}
