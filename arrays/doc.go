// Package arrays emits array indexing, slicing, element access, bounds
// records, and aggregate initialization.
//
// Arrays of fixed layout are addressed with a single GEP over the nested
// IR array type. Others are addressed through a linear offset computed
// from the run-time bounds, stepping in bytes when the component itself
// has no fixed size.
package arrays
