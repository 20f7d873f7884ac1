package bounds

import (
	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/shape"
	"github.com/Lucretia/gnat-llvm/target"
)

// Domain is the set of primitive operations a result domain supplies to
// the algebra. Every value of R carries an integer target type; binary
// operations require both operands to have the same one.
type Domain[R any] interface {
	// Const returns the integer constant v of type t.
	Const(t *target.Type, v int64) R
	// SizeConst returns a pointer-width constant.
	SizeConst(v uint64) R
	// TypeSize returns the allocation size in bytes of native type t as
	// a pointer-width value.
	TypeSize(t *target.Type) R
	Undef(t *target.Type) R

	Compare(p ir.Pred, x, y R) R
	Add(x, y R) R
	Sub(x, y R) R
	Mul(x, y R) R
	UDiv(x, y R) R
	SDiv(x, y R) R
	Neg(x R) R
	Select(cond, x, y R) R
	Min(x, y R, unsigned bool) R
	Max(x, y R, unsigned bool) R
	// Convert truncates or extends v to t.
	Convert(v R, t *target.Type, signed bool) R

	// ExtractBound reads field slot of the bounds record v refers to.
	ExtractBound(v R, slot int, t *target.Type) R
	// Leaf evaluates the expression leaves only a domain can interpret:
	// discriminant references, 'Pos calls, and object references. The
	// result has type t.
	Leaf(e sem.Expr, t *target.Type) (R, error)

	IsConst(v R) bool
	ConstValue(v R) (int64, bool)
	TypeOf(v R) *target.Type
}

// Types maps scalar source types onto the integer types bounds are
// computed in.
type Types struct {
	tb     *target.Builder
	shapes *shape.Table
}

// NewTypes returns the mapping used by shapes.
func NewTypes(tb *target.Builder, shapes *shape.Table) Types {
	return Types{tb: tb, shapes: shapes}
}

// Of returns the bound type of st. Universal expressions are computed at
// pointer width.
func (ty Types) Of(st *sem.Type) *target.Type {
	if st == nil {
		return ty.tb.IntPtr()
	}
	return ty.shapes.BoundType(st)
}

func signed(st *sem.Type) bool {
	return st == nil || !st.IsUnsigned()
}
