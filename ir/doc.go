// Package ir provides the value and addressing primitives the representation
// layer emits code with.
//
// A Func holds straight-line code: parameters, instructions in program order,
// and a result. The Builder folds any operation whose operands are constants,
// so whether a computed size or bound is known at compile time is simply
// v.IsConst().
//
// Pointers are typed: a pointer carries the type it designates, GEP steps
// through that type, and Bitcast changes only the designated type.
//
// Interp executes a Func over a flat byte Memory. It exists so that generated
// conversions and address computations can be checked directly:
//
//	fn := ir.NewFunc("widen", tb.Int(32), tb.Int(8))
//	b := ir.NewBuilder(tb, fn)
//	b.Ret(b.SExt(fn.Params[0], tb.Int(32)))
//	out, _ := ir.NewInterp(tb).Run(fn, []byte{0xff}) // -1 as i32
package ir
