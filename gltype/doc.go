// Package gltype records the physical encodings ("alternates") of source
// types and converts values between them.
//
// Every source type has a chain of alternates in a Registry. One of them is
// the primitive: the representation computations are done in. The others
// exist because a size clause, a component clause, an alignment, or a
// maximum-size context asked for something different:
//
//	KindIntAlt     integer of another width
//	KindBiased     integer holding value - low bound
//	KindPadded     {primitive, padding bytes}
//	KindByteArray  fixed bytes standing in for a dynamically sized primitive
//	KindMaxSize    marker: the maximum size of a dynamically sized primitive
//	KindAligning   marker: same physical type, other size or alignment
//	KindDummy      placeholder pointer for an access to an incomplete type
//
// FindOrCreate returns an existing alternate when one matches a Request and
// builds one otherwise. Alternates are never modified once classified,
// except for which one of a chain is the default.
//
// Values carry their alternate and how they relate to the object (data,
// reference, fat pointer, ...). ToPrimitive and FromPrimitive move them to
// and from the primitive, emitting IR through an ir.Builder.
package gltype
