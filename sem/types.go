package sem

import (
	"fmt"
	"math/bits"
)

// Pos is a source location.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// IsValid reports whether p names a real location.
func (p Pos) IsValid() bool { return p.Line > 0 }

// EntityKind tells what a representation request is made for.
type EntityKind uint8

const (
	EntityType EntityKind = iota
	EntityObject
	EntityComponent
)

// Entity is the part of a declaration that representation decisions and
// diagnostics care about.
type Entity struct {
	// SizeClause locates a "for X'Size use" (or object size) clause.
	SizeClause *Pos
	// ComponentClause locates a record component clause or an array
	// component size clause.
	ComponentClause *Pos
	Name            string
	Decl            Pos
	Kind            EntityKind
	// UserDeclared is false for compiler-generated entities.
	UserDeclared bool
	// InUnit is true when the entity appears in the unit being compiled.
	InUnit bool
}

// TypeKind classifies source types.
type TypeKind uint8

const (
	KindSigned TypeKind = iota
	KindModular
	KindEnum
	KindFixed
	KindFloat
	KindRecord
	KindArray
	KindAccess
)

var typeKindNames = [...]string{
	KindSigned:  "signed",
	KindModular: "modular",
	KindEnum:    "enumeration",
	KindFixed:   "fixed",
	KindFloat:   "float",
	KindRecord:  "record",
	KindArray:   "array",
	KindAccess:  "access",
}

func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return "unknown"
}

// TypeID identifies a type within a Model. Zero means unregistered.
type TypeID uint32

// Range is a pair of bound expressions.
type Range struct {
	Low  Expr
	High Expr
}

// Discriminant parameterizes the shape of a record.
type Discriminant struct {
	Type    *Type
	Default Expr
	Record  *Type
	Name    string
	Index   int
}

// Component is a record field.
type Component struct {
	Type *Type
	Entity
}

// Type is a source-level type or subtype. Types are built once by the front
// end and then only read.
type Type struct {
	Low        Expr
	High       Expr
	Component  *Type
	Designated *Type
	// Original is the array type a packed implementation type implements.
	Original *Type
	Entity
	Literals      []string
	Index         []*Type
	Bounds        []Range
	Discriminants []*Discriminant
	Components    []*Component
	// RMSize is the size in bits given by a size clause, 0 when absent.
	RMSize      uint64
	Alignment   uint64
	FloatBits   uint32
	ID          TypeID
	Kind        TypeKind
	Constrained bool
	// ColumnMajor selects Fortran array convention.
	ColumnMajor bool
	// PackedImpl marks the implementation type of a packed array.
	PackedImpl bool
	// FullAccess marks objects that must be read and written whole.
	FullAccess bool
}

func (t *Type) String() string { return t.Name }

// IsDiscrete reports signed, modular, and enumeration types.
func (t *Type) IsDiscrete() bool {
	return t.Kind == KindSigned || t.Kind == KindModular || t.Kind == KindEnum
}

// IsScalarInteger reports types represented as integers: discrete and fixed point.
func (t *Type) IsScalarInteger() bool {
	return t.IsDiscrete() || t.Kind == KindFixed
}

// IsUnsigned reports whether values of t compare as unsigned.
func (t *Type) IsUnsigned() bool {
	return t.Kind == KindModular || t.Kind == KindEnum
}

// HasSignedRange reports whether the declared range of a scalar integer type
// includes negative values, so that widening must replicate the sign bit.
// A non-static low bound counts as signed.
func (t *Type) HasSignedRange() bool {
	if t.IsUnsigned() {
		return false
	}
	if t.Low == nil {
		return true
	}
	lo, ok := StaticValue(t.Low)
	return !ok || lo < 0
}

func (t *Type) IsArray() bool  { return t.Kind == KindArray }
func (t *Type) IsRecord() bool { return t.Kind == KindRecord }
func (t *Type) IsAccess() bool { return t.Kind == KindAccess }

// IsUnconstrainedArray reports array types whose bounds come from each object.
func (t *Type) IsUnconstrainedArray() bool {
	return t.Kind == KindArray && !t.Constrained
}

// Dims returns the number of array dimensions.
func (t *Type) Dims() int { return len(t.Index) }

// StaticRange returns the scalar range of t when both bounds are static.
func (t *Type) StaticRange() (lo, hi int64, ok bool) {
	if t.Low == nil || t.High == nil {
		return 0, 0, false
	}
	lo, okLo := StaticValue(t.Low)
	hi, okHi := StaticValue(t.High)
	return lo, hi, okLo && okHi
}

// Discriminant looks up a discriminant of a record type by name.
func (t *Type) Discriminant(name string) *Discriminant {
	key := foldName(name)
	for _, d := range t.Discriminants {
		if foldName(d.Name) == key {
			return d
		}
	}
	return nil
}

// HasDiscriminants reports whether t is a discriminated record.
func (t *Type) HasDiscriminants() bool { return len(t.Discriminants) > 0 }

// HasDefaultDiscriminants reports whether every discriminant has a default,
// making unconstrained objects of t mutable in shape.
func (t *Type) HasDefaultDiscriminants() bool {
	if len(t.Discriminants) == 0 {
		return false
	}
	for _, d := range t.Discriminants {
		if d.Default == nil {
			return false
		}
	}
	return true
}

// ValueBits returns the minimum number of bits holding every value of a
// scalar integer type: the size clause if present, else derived from the
// static range.
func (t *Type) ValueBits() (uint32, bool) {
	if t.RMSize != 0 {
		return uint32(t.RMSize), true
	}
	lo, hi, ok := t.StaticRange()
	if !ok {
		return 0, false
	}
	return rangeBits(lo, hi), true
}

func rangeBits(lo, hi int64) uint32 {
	if lo >= 0 {
		if hi <= 0 {
			return 1
		}
		return uint32(bits.Len64(uint64(hi)))
	}
	// Two's complement: one sign bit plus magnitude.
	need := func(v int64) uint32 {
		if v < 0 {
			return uint32(bits.Len64(uint64(^v))) + 1
		}
		return uint32(bits.Len64(uint64(v))) + 1
	}
	return max(need(lo), need(hi))
}

// StorageBits returns the width of the narrowest standard integer (8, 16,
// 32 or 64 bits) holding every value of a scalar integer type, reading the
// bits as unsigned for unsigned types and as two's complement otherwise.
// A size clause only ever widens the result.
func (t *Type) StorageBits() (uint32, bool) {
	lo, hi, ok := t.StaticRange()
	if !ok {
		return 0, false
	}
	need := rangeBits(lo, hi)
	if lo >= 0 && !t.IsUnsigned() {
		need++
	}
	if t.RMSize > uint64(need) {
		need = uint32(t.RMSize)
	}
	for _, w := range [...]uint32{8, 16, 32, 64} {
		if need <= w {
			return w, true
		}
	}
	return 64, false
}
