package bounds

import (
	"fmt"

	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/shape"
	"github.com/Lucretia/gnat-llvm/target"
)

// Dyn is a value of the Dynamic domain: a constant when Known, otherwise
// something only known at run time.
type Dyn struct {
	T     *target.Type
	V     int64
	Known bool
}

func (d Dyn) String() string {
	if !d.Known {
		return "dynamic"
	}
	return fmt.Sprint(d.V)
}

// Dynamic answers whether a bound or size is a compile-time constant,
// and which one.
type Dynamic struct {
	tb *target.Builder
}

// NewDynamic returns the algebra over the Dynamic domain.
func NewDynamic(reg *gltype.Registry, shapes *shape.Table) *Algebra[Dyn, Dynamic] {
	return newAlgebra[Dyn](Dynamic{tb: reg.Target()}, reg, shapes)
}

func known(t *target.Type, v int64) Dyn { return Dyn{T: t, V: ir.Canon(v, t.Bits()), Known: true} }

func (d Dynamic) Const(t *target.Type, v int64) Dyn { return known(t, v) }
func (d Dynamic) SizeConst(v uint64) Dyn            { return known(d.tb.IntPtr(), int64(v)) }
func (d Dynamic) Undef(t *target.Type) Dyn          { return Dyn{T: t} }

func (d Dynamic) TypeSize(t *target.Type) Dyn {
	n, ok := d.tb.SizeOf(t)
	if !ok {
		return Dyn{T: d.tb.IntPtr()}
	}
	return d.SizeConst(n)
}

func (d Dynamic) Compare(p ir.Pred, x, y Dyn) Dyn {
	if !x.Known || !y.Known {
		return Dyn{T: d.tb.Bool()}
	}
	r := int64(0)
	if ir.FoldCompare(p, x.V, y.V, x.T.Bits()) {
		r = 1
	}
	return known(d.tb.Bool(), r)
}

func (d Dynamic) binary(op ir.Op, x, y Dyn) Dyn {
	if x.Known && y.Known {
		if r, ok := ir.FoldBinary(op, x.V, y.V, x.T.Bits()); ok {
			return known(x.T, r)
		}
		return Dyn{T: x.T}
	}
	// Multiplying by a known zero is zero whatever the other side.
	if op == ir.OpMul && ((x.Known && x.V == 0) || (y.Known && y.V == 0)) {
		return known(x.T, 0)
	}
	return Dyn{T: x.T}
}

func (d Dynamic) Add(x, y Dyn) Dyn  { return d.binary(ir.OpAdd, x, y) }
func (d Dynamic) Sub(x, y Dyn) Dyn  { return d.binary(ir.OpSub, x, y) }
func (d Dynamic) Mul(x, y Dyn) Dyn  { return d.binary(ir.OpMul, x, y) }
func (d Dynamic) UDiv(x, y Dyn) Dyn { return d.binary(ir.OpUDiv, x, y) }
func (d Dynamic) SDiv(x, y Dyn) Dyn { return d.binary(ir.OpSDiv, x, y) }

func (d Dynamic) Neg(x Dyn) Dyn {
	if !x.Known {
		return x
	}
	return known(x.T, -x.V)
}

func (d Dynamic) Select(cond, x, y Dyn) Dyn {
	if !cond.Known {
		if x.Known && y.Known && x.V == y.V {
			return x
		}
		return Dyn{T: x.T}
	}
	if cond.V != 0 {
		return x
	}
	return y
}

func (d Dynamic) minmax(op ir.Op, x, y Dyn, unsigned bool) Dyn {
	if !x.Known || !y.Known {
		return Dyn{T: x.T}
	}
	return known(x.T, ir.FoldMinMax(op, x.V, y.V, x.T.Bits(), unsigned))
}

func (d Dynamic) Min(x, y Dyn, unsigned bool) Dyn { return d.minmax(ir.OpMin, x, y, unsigned) }
func (d Dynamic) Max(x, y Dyn, unsigned bool) Dyn { return d.minmax(ir.OpMax, x, y, unsigned) }

func (d Dynamic) Convert(v Dyn, t *target.Type, signed bool) Dyn {
	if !v.Known {
		return Dyn{T: t}
	}
	from := v.T.Bits()
	if from < t.Bits() {
		return known(t, ir.Extend(v.V, from, signed))
	}
	return known(t, v.V)
}

// Bounds read from an object are never known.
func (d Dynamic) ExtractBound(_ Dyn, _ int, t *target.Type) Dyn { return Dyn{T: t} }

func (d Dynamic) Leaf(_ sem.Expr, t *target.Type) (Dyn, error) { return Dyn{T: t}, nil }

func (d Dynamic) IsConst(v Dyn) bool             { return v.Known }
func (d Dynamic) ConstValue(v Dyn) (int64, bool) { return v.V, v.Known }
func (d Dynamic) TypeOf(v Dyn) *target.Type      { return v.T }
