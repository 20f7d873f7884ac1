package gltype

import (
	"fmt"

	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/target"
)

// Rel is how an IR value relates to the object it stands for.
type Rel uint8

const (
	// Data is the object itself, of the alternate's physical type.
	Data Rel = iota
	// Reference is a pointer to the object.
	Reference
	// ReferenceToReference is a pointer to a Reference.
	ReferenceToReference
	// FatPointer is {data pointer, bounds pointer}.
	FatPointer
	// BoundsAndDataRef points at the data of an array whose bounds are
	// stored immediately before it.
	BoundsAndDataRef
	// Bounds is the bounds record of an array.
	Bounds
)

var relNames = [...]string{
	Data:                 "data",
	Reference:            "reference",
	ReferenceToReference: "reference_to_reference",
	FatPointer:           "fat_pointer",
	BoundsAndDataRef:     "bounds_and_data_ref",
	Bounds:               "bounds",
}

func (r Rel) String() string {
	if int(r) < len(relNames) {
		return relNames[r]
	}
	return "unknown"
}

// IsReference reports relationships whose IR value is a pointer (or a pair
// holding one) rather than the object.
func (r Rel) IsReference() bool {
	return r == Reference || r == ReferenceToReference || r == FatPointer || r == BoundsAndDataRef
}

// Value is an IR value tagged with the alternate it is represented in.
type Value struct {
	IR  *ir.Value
	GT  GLType
	Rel Rel
}

func (v Value) String() string {
	return fmt.Sprintf("%s %s (alt %d)", v.Rel, v.IR, v.GT)
}

// Of returns v re-tagged as alternate gt, keeping the relationship.
func (v Value) Of(gt GLType) Value {
	return Value{IR: v.IR, GT: gt, Rel: v.Rel}
}

// IRType returns the IR type a value of gt with relationship rel has. Fat
// pointers take their bounds type from bounds.
func (r *Registry) IRType(gt GLType, rel Rel, bounds *target.Type) *target.Type {
	phys := r.Physical(gt)
	switch rel {
	case Reference, BoundsAndDataRef:
		return r.tb.PointerTo(phys)
	case ReferenceToReference:
		return r.tb.PointerTo(r.tb.PointerTo(phys))
	case FatPointer:
		return r.tb.FatPointer(phys, bounds)
	case Bounds:
		return bounds
	}
	return phys
}
