// Package wasmgen compiles straight-line IR functions to WebAssembly and
// runs them under wazero.
//
// It is a second execution engine next to ir.Interp: code produced by the
// gltype conversions and the arrays package can be run both ways and the
// results compared. Values are held in i64 locals, pointers are addresses
// in the module's exported memory, and stack slots are laid out statically
// from a frame base.
package wasmgen
