package loader

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/sem"
)

func TestLoadFile(t *testing.T) {
	u, err := Load("testdata/buffers.cue")
	require.NoError(t, err)
	m := u.Model
	assert.Equal(t, "Buffers", m.Unit)
	assert.Len(t, m.Types(), 11)

	// Declaration order survives.
	names := make([]string, 0, len(m.Types()))
	for _, ty := range m.Types() {
		names = append(names, ty.Name)
	}
	assert.Equal(t, []string{"Count", "Index", "Byte", "Color", "Level", "Buf_Data",
		"Buffer", "Buffer_Ptr", "Grid", "Bytes", "Flags"}, names)

	idx, ok := m.Lookup("index")
	require.True(t, ok)
	lo, hi, ok := idx.StaticRange()
	require.True(t, ok)
	assert.Equal(t, [2]int64{1, 100}, [2]int64{lo, hi})

	buf, ok := m.Lookup("Buffer")
	require.True(t, ok)
	require.Len(t, buf.Discriminants, 1)
	disc := buf.Discriminants[0]
	assert.Same(t, buf, disc.Record)
	v, ok := sem.StaticValue(disc.Default)
	require.True(t, ok)
	assert.Equal(t, int64(10), v)

	data, _ := m.Lookup("Buf_Data")
	require.True(t, data.Constrained)
	ref, ok := data.Bounds[0].High.(*sem.DiscRef)
	require.True(t, ok, "high bound %s", data.Bounds[0].High)
	assert.Same(t, disc, ref.Disc)

	ptr, _ := m.Lookup("Buffer_Ptr")
	assert.Same(t, buf, ptr.Designated)

	grid, _ := m.Lookup("Grid")
	assert.True(t, grid.ColumnMajor)
	assert.Equal(t, int64(2), grid.Bounds[1].High.(*sem.EnumLit).Pos)

	bytes, _ := m.Lookup("Bytes")
	assert.True(t, bytes.IsUnconstrainedArray())

	flags, _ := m.Lookup("Flags")
	require.NotNil(t, flags.SizeClause)
	assert.Equal(t, uint64(8), flags.RMSize)
	assert.Equal(t, uint64(1), flags.Alignment)
	assert.Equal(t, "testdata/buffers.cue", flags.SizeClause.File)
	assert.True(t, flags.Decl.IsValid())
}

func TestRequests(t *testing.T) {
	u, err := Load("testdata/buffers.cue")
	require.NoError(t, err)
	require.Len(t, u.Requests, 3)

	comp := u.Requests[0]
	assert.True(t, comp.ForComponent)
	assert.Equal(t, uint64(5), comp.Size)
	assert.Equal(t, "Buffer.Lvl", comp.Entity.Name)
	assert.NotNil(t, comp.Entity.ComponentClause)

	biased := u.Requests[1]
	assert.True(t, biased.Biased)
	assert.Equal(t, "Level", biased.Source.Name)
	assert.True(t, biased.Entity.InUnit)

	ext := u.Requests[2]
	assert.Equal(t, "Flags_Obj", ext.Entity.Name)
	assert.False(t, ext.Entity.InUnit)
	assert.NotNil(t, ext.Entity.SizeClause)
	assert.Equal(t, uint64(16), ext.Size)
}

func TestLiterals(t *testing.T) {
	u, err := Load("testdata/buffers.cue")
	require.NoError(t, err)
	require.Len(t, u.Literals, 2)

	ones := u.Literals[0]
	assert.Equal(t, "Ones", ones.Name)
	assert.Equal(t, "Grid", ones.Value.Typ.Name)
	v, ok := sem.StaticValue(ones.Value.Others)
	require.True(t, ok)
	assert.Equal(t, int64(1), v)

	rows := u.Literals[1].Value
	require.Len(t, rows.Elems, 3)
	assert.True(t, sem.IsConstantAggregate(rows))
	last := rows.Elems[2].(*sem.Aggregate)
	v, _ = sem.StaticValue(last.Elems[2])
	assert.Equal(t, int64(9), v)
}

func TestBoundExpressions(t *testing.T) {
	src := `
unit: "Exprs"
types: {
	N: {kind: "signed", low: 0, high: 50}
	E: {kind: "enum", literals: ["A", "B", "C"]}
	R: {kind: "record", discriminants: [{name: "D", type: "N"}, {name: "K", type: "E"}]}
	Arr: {
		kind: "array"
		component: "N"
		index: ["N", "N"]
		bounds: [{low: "-(2 * 3) + 7", high: "max(R.D - 1, length(E))"}, {low: 0, high: "pos(R.K) + Count"}]
	}
}
`
	u, err := Parse("exprs.cue", []byte(src))
	require.NoError(t, err)
	arr, ok := u.Model.Lookup("Arr")
	require.True(t, ok)

	v, ok := sem.StaticValue(arr.Bounds[0].Low)
	require.True(t, ok)
	assert.Equal(t, int64(1), v)

	hi := arr.Bounds[0].High.(*sem.Attr)
	assert.Equal(t, sem.AttrMax, hi.Kind)
	require.Len(t, hi.Args, 2)
	assert.True(t, sem.HasDiscriminant(hi.Args[0]))
	n, ok := sem.StaticValue(hi.Args[1])
	require.True(t, ok)
	assert.Equal(t, int64(3), n)

	sum := arr.Bounds[1].High.(*sem.Binary)
	assert.IsType(t, &sem.PosCall{}, sum.X)
	obj, ok := sum.Y.(*sem.ObjRef)
	require.True(t, ok)
	assert.Equal(t, "Count", obj.Name)
}

func issues(t *testing.T, err error) []errors.LoadIssue {
	t.Helper()
	var li *errors.LoadIssuesError
	require.True(t, stderrors.As(err, &li), "got %v", err)
	return li.Issues
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		where string
	}{
		{"syntax", `unit: "X" types: {`, ""},
		{"unknown_field", `unit: "X", colour: 1`, "colour"},
		{"bad_kind", `unit: "X", types: T: {kind: "tagged"}`, "types.T"},
		{"unknown_type", `unit: "X", types: A: {kind: "array", component: "Missing", index: ["Missing"]}`,
			"types.A.component"},
		{"cycle", `unit: "X", types: {
			A: {kind: "record", components: [{name: "B", type: "B"}]}
			B: {kind: "record", components: [{name: "A", type: "A"}]}
		}`, "types.A"},
		{"duplicate_name", `unit: "X", types: {
			Foo: {kind: "signed", low: 0, high: 1}
			FOO: {kind: "signed", low: 0, high: 1}
		}`, "types.FOO"},
		{"bad_bound", `unit: "X", types: {
			N: {kind: "signed", low: 0, high: 9}
			A: {kind: "array", component: "N", index: ["N"], bounds: [{low: 0, high: "Nope.D"}]}
		}`, "types.A.bounds[0].high"},
		{"range_count", `unit: "X", types: {
			N: {kind: "signed", low: 0, high: 9}
			A: {kind: "array", component: "N", index: ["N", "N"], bounds: [{low: 0, high: 1}]}
		}`, "types.A.bounds"},
		{"alignment", `unit: "X", types: N: {kind: "signed", low: 0, high: 9, alignment: 3}`,
			"types.N.alignment"},
		{"biased_without_size", `unit: "X", types: N: {kind: "signed", low: 0, high: 9}
			requests: [{type: "N", biased: true}]`, "requests[0]"},
		{"literal_of_scalar", `unit: "X", types: N: {kind: "signed", low: 0, high: 9}
			literals: L: {type: "N", value: [1]}`, "literals.L.type"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("bad.cue", []byte(tc.src))
			require.Error(t, err)
			got := issues(t, err)
			require.NotEmpty(t, got)
			if tc.where == "" {
				return
			}
			var wheres []string
			for _, is := range got {
				if strings.HasPrefix(is.Where, tc.where) {
					return
				}
				wheres = append(wheres, is.Where)
			}
			t.Errorf("no issue at %s among %v", tc.where, wheres)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/absent.cue")
	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, errors.PhaseLoad, e.Phase)
}
