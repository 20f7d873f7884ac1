package shape

import (
	"go.uber.org/zap"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/target"
)

// Bound is one edge of one dimension: a constant, an expression, or
// neither for unconstrained arrays whose bounds live in each object.
type Bound struct {
	Expr    sem.Expr
	Value   int64
	IsConst bool
}

// Present reports whether the bound is known from the type.
func (b Bound) Present() bool { return b.IsConst || b.Expr != nil }

func boundOf(e sem.Expr) Bound {
	if e == nil {
		return Bound{}
	}
	if v, ok := sem.StaticValue(e); ok {
		return Bound{Value: v, IsConst: true}
	}
	return Bound{Expr: e}
}

// Dim describes one array dimension.
type Dim struct {
	Index *sem.Type
	// BoundType stores this dimension's bounds in a bounds record.
	BoundType *target.Type
	Low       Bound
	High      Bound
	// NotSuperflat means High >= Low - 1 is known statically.
	NotSuperflat bool
}

// Shape is the analyzed form of an array type.
type Shape struct {
	Array *sem.Type
	// BoundsType is the bounds record: one (low, high) pair per dimension,
	// reversed for column-major arrays.
	BoundsType  *target.Type
	Dims        []Dim
	ColumnMajor bool
}

// Slot returns the field of the bounds record holding the low or high
// bound of dimension dim.
func (s *Shape) Slot(dim int, high bool) int {
	d := dim
	if s.ColumnMajor {
		d = len(s.Dims) - 1 - dim
	}
	slot := 2 * d
	if high {
		slot++
	}
	return slot
}

// Table builds shapes on first use and caches them for the unit.
type Table struct {
	tb     *target.Builder
	shapes map[*sem.Type]*Shape
	log    *zap.Logger
}

// NewTable creates an empty shape table.
func NewTable(tb *target.Builder) *Table {
	return &Table{tb: tb, shapes: make(map[*sem.Type]*Shape), log: Logger()}
}

// Len returns the number of analyzed array types.
func (t *Table) Len() int { return len(t.shapes) }

// Shape returns the shape of array type arr, analyzing it on first call.
func (t *Table) Shape(arr *sem.Type) (*Shape, error) {
	if s, ok := t.shapes[arr]; ok {
		return s, nil
	}
	if !arr.IsArray() {
		return nil, errors.Internal(errors.PhaseBounds, "shape of non-array type %s", arr)
	}
	if arr.Constrained && len(arr.Bounds) != arr.Dims() {
		return nil, errors.Internal(errors.PhaseBounds, "%s has %d index types but %d ranges", arr, arr.Dims(), len(arr.Bounds))
	}

	s := &Shape{Array: arr, ColumnMajor: arr.ColumnMajor, Dims: make([]Dim, arr.Dims())}
	for i, idx := range arr.Index {
		d := Dim{Index: idx, BoundType: t.BoundType(idx)}
		if arr.Constrained {
			d.Low = boundOf(arr.Bounds[i].Low)
			d.High = boundOf(arr.Bounds[i].High)
			d.NotSuperflat = notSuperflat(arr.Bounds[i])
		}
		s.Dims[i] = d
	}

	types := make([]*target.Type, len(s.Dims))
	for i := range s.Dims {
		types[s.Slot(i, false)/2] = s.Dims[i].BoundType
	}
	s.BoundsType = t.tb.BoundsRecord(arr.Name+"_bounds", types)

	t.shapes[arr] = s
	t.log.Debug("array shape",
		zap.String("type", arr.Name),
		zap.Int("dims", len(s.Dims)),
		zap.Bool("column_major", s.ColumnMajor),
		zap.Stringer("bounds", s.BoundsType))
	return s, nil
}

// BoundType returns the integer type bounds of index subtype idx are
// stored in: its storage width, or pointer width for dynamic subtypes.
func (t *Table) BoundType(idx *sem.Type) *target.Type {
	if bits, ok := idx.StorageBits(); ok {
		return t.tb.Int(bits)
	}
	return t.tb.IntPtr()
}

func notSuperflat(r sem.Range) bool {
	lowMax, okLo := sem.StaticExtreme(r.Low, false)
	highMin, okHi := sem.StaticExtreme(r.High, true)
	return okLo && okHi && highMin >= lowMax-1
}
