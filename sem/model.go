package sem

import (
	"golang.org/x/text/cases"

	"github.com/Lucretia/gnat-llvm/errors"
)

// foldName maps identifiers to their case-insensitive key.
func foldName(name string) string {
	return cases.Fold().String(name)
}

// SameName reports whether two identifiers denote the same name.
func SameName(a, b string) bool { return foldName(a) == foldName(b) }

// Model holds the source types of one compilation unit in declaration order.
type Model struct {
	byName map[string]*Type
	Unit   string
	types  []*Type
}

// NewModel creates an empty model for the named unit.
func NewModel(unit string) *Model {
	return &Model{Unit: unit, byName: make(map[string]*Type)}
}

// Add registers t, assigning its ID. Anonymous types are registered
// without a name.
func (m *Model) Add(t *Type) error {
	if t.ID != 0 {
		return errors.Duplicate(errors.PhaseLoad, "type", t.Name)
	}
	if t.Name != "" {
		key := foldName(t.Name)
		if _, ok := m.byName[key]; ok {
			return errors.Duplicate(errors.PhaseLoad, "type", t.Name)
		}
		m.byName[key] = t
	}
	m.types = append(m.types, t)
	t.ID = TypeID(len(m.types))
	for i, d := range t.Discriminants {
		d.Record, d.Index = t, i
	}
	return nil
}

// MustAdd is Add for fixtures known to be well-formed.
func (m *Model) MustAdd(t *Type) *Type {
	if err := m.Add(t); err != nil {
		panic(err)
	}
	return t
}

// Lookup finds a type by name, ignoring case.
func (m *Model) Lookup(name string) (*Type, bool) {
	t, ok := m.byName[foldName(name)]
	return t, ok
}

// Types returns the registered types in declaration order.
func (m *Model) Types() []*Type { return m.types }

// Type returns the type with the given ID, or nil.
func (m *Model) Type(id TypeID) *Type {
	if id == 0 || int(id) > len(m.types) {
		return nil
	}
	return m.types[id-1]
}

func declared(name string, k TypeKind) *Type {
	return &Type{Entity: Entity{Name: name, Kind: EntityType, UserDeclared: true, InUnit: true}, Kind: k}
}

// NewSigned builds a signed integer type with the range lo .. hi.
func NewSigned(name string, lo, hi int64) *Type {
	t := declared(name, KindSigned)
	t.Low, t.High = Int(t, lo), Int(t, hi)
	return t
}

// NewModular builds a modular type with the given modulus.
func NewModular(name string, modulus uint64) *Type {
	t := declared(name, KindModular)
	t.Low, t.High = Int(t, 0), Int(t, int64(modulus-1))
	return t
}

// NewEnum builds an enumeration type from its literals.
func NewEnum(name string, literals ...string) *Type {
	t := declared(name, KindEnum)
	t.Literals = literals
	t.Low = &EnumLit{Typ: t, Name: literals[0], Pos: 0}
	last := len(literals) - 1
	t.High = &EnumLit{Typ: t, Name: literals[last], Pos: int64(last)}
	return t
}

// Literal returns the enumeration literal at position pos.
func (t *Type) Literal(pos int64) *EnumLit {
	return &EnumLit{Typ: t, Name: t.Literals[pos], Pos: pos}
}

// NewFixed builds a fixed-point type whose mantissas range over lo .. hi.
func NewFixed(name string, lo, hi int64) *Type {
	t := declared(name, KindFixed)
	t.Low, t.High = Int(t, lo), Int(t, hi)
	return t
}

// NewFloat builds a 32- or 64-bit floating-point type.
func NewFloat(name string, bits uint32) *Type {
	t := declared(name, KindFloat)
	t.FloatBits = bits
	return t
}

// Subtype builds a scalar subtype of base with new bounds.
func Subtype(name string, base *Type, lo, hi Expr) *Type {
	t := *base
	t.Entity = Entity{Name: name, Kind: EntityType, UserDeclared: true, InUnit: true}
	t.ID = 0
	t.RMSize = 0
	t.Low, t.High = lo, hi
	return &t
}

// NewArray builds an unconstrained array type indexed by the given subtypes.
func NewArray(name string, component *Type, index ...*Type) *Type {
	t := declared(name, KindArray)
	t.Component = component
	t.Index = index
	return t
}

// NewConstrainedArray builds a constrained array type. Each range gives the
// bounds of one dimension; index supplies the index subtypes.
func NewConstrainedArray(name string, component *Type, index []*Type, bounds ...Range) *Type {
	t := NewArray(name, component, index...)
	t.Constrained = true
	t.Bounds = bounds
	return t
}

// NewRecord builds a record type.
func NewRecord(name string, discs []*Discriminant, comps ...*Component) *Type {
	t := declared(name, KindRecord)
	t.Discriminants = discs
	t.Components = comps
	for i, d := range discs {
		d.Record = t
		d.Index = i
	}
	return t
}

// NewAccess builds an access type designating d. A nil d is an access to
// an incomplete type.
func NewAccess(name string, d *Type) *Type {
	t := declared(name, KindAccess)
	t.Designated = d
	return t
}
