package gltype

// Kind classifies an alternate.
type Kind uint8

const (
	// KindUnset is a freshly created entry not yet classified.
	KindUnset Kind = iota
	// KindPrimitive is the computation-ready representation of the type.
	KindPrimitive
	// KindDummy is a placeholder for an access type whose designated type
	// is not yet complete.
	KindDummy
	// KindIntAlt is an integer of a width other than the primitive's.
	KindIntAlt
	// KindBiased stores value minus the low bound of the range.
	KindBiased
	// KindPadded is {primitive, padding bytes}.
	KindPadded
	// KindByteArray is a fixed-size array of storage units standing in for
	// a dynamically sized primitive.
	KindByteArray
	// KindMaxSize shares the primitive's physical type but denotes its
	// maximum size.
	KindMaxSize
	// KindAligning shares the primitive's physical type with another
	// size or alignment.
	KindAligning

	numKinds
)

var kindNames = [...]string{
	KindUnset:     "unset",
	KindPrimitive: "primitive",
	KindDummy:     "dummy",
	KindIntAlt:    "int_alt",
	KindBiased:    "biased",
	KindPadded:    "padded",
	KindByteArray: "byte_array",
	KindMaxSize:   "max_size",
	KindAligning:  "aligning",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsMarker reports kinds that only re-tag the primitive's physical type.
func (k Kind) IsMarker() bool {
	return k == KindMaxSize || k == KindAligning
}
