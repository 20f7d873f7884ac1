// Package sem is the semantic model consulted by the representation layer:
// checked source types with their ranges, discriminants, array constraints
// and conventions, plus the read-only expression trees that bounds are
// written in.
//
// Identifiers are case-insensitive. Expression trees are shared and never
// mutated; StaticValue folds the ones that do not depend on discriminants
// or run-time objects.
package sem
