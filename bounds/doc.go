// Package bounds evaluates array bounds, lengths, and sizes.
//
// One Algebra walks bound expressions for three domains:
//
//	Concrete  emits IR computing the value at run time
//	Dynamic   folds to a constant when the value is static
//	Annot     builds a symbolic expression over discriminants
//
// The domains share the expression walk and the constant folding of the
// ir package, so they always agree on what is constant.
package bounds
