package lower

import (
	"testing"

	"github.com/Lucretia/gnat-llvm/diag"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/shape"
	"github.com/Lucretia/gnat-llvm/target"
)

type fixture struct {
	tb    *target.Builder
	reg   *gltype.Registry
	sink  *diag.Collector
	lower *Lowerer
}

func newFixture() *fixture {
	tb := target.NewBuilder(target.DefaultConfig())
	sink := &diag.Collector{}
	reg := gltype.NewRegistry(tb, gltype.WithSink(sink))
	return &fixture{tb: tb, reg: reg, sink: sink, lower: New(reg, shape.NewTable(tb))}
}

func (f *fixture) physical(t *testing.T, st *sem.Type) *target.Type {
	t.Helper()
	phys, err := f.lower.Physical(st)
	if err != nil {
		t.Fatalf("%s: %v", st.Name, err)
	}
	return phys
}

func TestNaturalTypes(t *testing.T) {
	f := newFixture()
	idx := sem.NewSigned("Idx", 1, 3)
	byteT := sem.NewModular("Byte", 256)
	grid := sem.NewConstrainedArray("Grid", byteT, []*sem.Type{idx, sem.NewSigned("Col", 0, 1)},
		sem.Range{Low: sem.Int(idx, 1), High: sem.Int(idx, 3)},
		sem.Range{Low: sem.Int(idx, 0), High: sem.Int(idx, 1)})
	colGrid := sem.NewConstrainedArray("Col_Grid", byteT, grid.Index, grid.Bounds...)
	colGrid.ColumnMajor = true
	vec := sem.NewArray("Vec", sem.NewFloat("Real", 32), idx)

	tests := []struct {
		typ  *sem.Type
		want string
	}{
		{sem.NewSigned("Small", 1, 100), "i8"},
		{sem.NewSigned("Natural_Byte", 0, 255), "i16"},
		{byteT, "i8"},
		{sem.NewEnum("Color", "Red", "Green"), "i8"},
		{sem.NewFloat("Long_Float", 0), "double"},
		{grid, "[3 x [2 x i8]]"},
		{colGrid, "[2 x [3 x i8]]"},
		{sem.NewRecord("Pair", nil, &sem.Component{Type: byteT}, &sem.Component{Type: idx}), "%Pair"},
		{sem.NewAccess("Vec_Ptr", vec), "{ float*, %Vec_bounds* }"},
	}
	for _, tc := range tests {
		t.Run(tc.typ.Name, func(t *testing.T) {
			if got := f.physical(t, tc.typ).String(); got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}

	if f.tb.IsNative(f.physical(t, vec)) {
		t.Error("unconstrained array has a fixed layout")
	}
}

func TestPrimitiveRecorded(t *testing.T) {
	f := newFixture()
	small := sem.NewSigned("Small", 0, 7)
	gt, err := f.lower.Type(small)
	if err != nil {
		t.Fatal(err)
	}
	if !f.reg.IsPrimitive(gt) || f.reg.Primitive(small) != gt || f.reg.Default(small) != gt {
		t.Errorf("primitive %d not recorded as default", gt)
	}
	again, _ := f.lower.Type(small)
	if again != gt || f.reg.Len() != 1 {
		t.Errorf("second elaboration created an alternate: %d entries", f.reg.Len())
	}
}

func TestRecursiveAccess(t *testing.T) {
	f := newFixture()
	m := sem.NewModel("lists")
	node := sem.NewRecord("Node", nil)
	ptr := m.MustAdd(sem.NewAccess("Node_Ptr", node))
	node.Components = []*sem.Component{
		{Type: sem.NewSigned("Value", 0, 1000)},
		{Type: ptr},
	}
	m.MustAdd(node)

	if err := f.lower.Model(m); err != nil {
		t.Fatal(err)
	}
	prim := f.reg.Primitive(ptr)
	if prim == gltype.None {
		t.Fatal("access type never completed")
	}
	if got := f.reg.Physical(prim).String(); got != "%Node*" {
		t.Errorf("completed pointer: %s", got)
	}
	if f.reg.Default(ptr) != prim {
		t.Error("completed pointer is not the default")
	}
	dummies := 0
	for gt := range f.reg.Alternates(ptr) {
		if f.reg.IsDummy(gt) {
			dummies++
		}
	}
	if dummies != 1 {
		t.Errorf("got %d dummy alternates, want 1", dummies)
	}
}

func TestIncompleteAccessStaysDummy(t *testing.T) {
	f := newFixture()
	opaque := sem.NewAccess("Handle", nil)
	gt, err := f.lower.Type(opaque)
	if err != nil {
		t.Fatal(err)
	}
	if !f.reg.IsDummy(gt) {
		t.Errorf("got kind %s", f.reg.Kind(gt))
	}
	if err := f.lower.Complete(); err != nil || f.reg.Primitive(opaque) != gltype.None {
		t.Errorf("incomplete access completed: %v", err)
	}
}

func TestSizeClause(t *testing.T) {
	f := newFixture()
	word := sem.NewSigned("Word", -1<<31, 1<<31-1)
	rec := sem.NewRecord("Header", nil, &sem.Component{Type: word})
	rec.SizeClause = &sem.Pos{File: "hdr.ads", Line: 12, Col: 4}
	rec.RMSize = 128

	gt, err := f.lower.Type(rec)
	if err != nil {
		t.Fatal(err)
	}
	if f.reg.Kind(gt) != gltype.KindPadded || f.reg.Default(rec) != gt {
		t.Errorf("got %s, default %d", f.reg.Kind(gt), f.reg.Default(rec))
	}
	if f.sink.Len() != 1 {
		t.Fatalf("got %d diagnostics", f.sink.Len())
	}
	if d := f.sink.Diags[0]; d.Bits != 96 || d.Pos.Line != 12 {
		t.Errorf("diagnostic: %s", d)
	}
}

func TestComponentSize(t *testing.T) {
	f := newFixture()
	small := sem.NewSigned("Small", 0, 7)
	ent := &sem.Entity{Name: "Flags", Kind: sem.EntityComponent}
	gt, err := f.lower.Component(small, ent, 3)
	if err != nil {
		t.Fatal(err)
	}
	if f.reg.Kind(gt) != gltype.KindIntAlt || f.reg.Physical(gt).Bits() != 3 {
		t.Errorf("got %s %s", f.reg.Kind(gt), f.reg.Physical(gt))
	}
	if f.reg.Default(small) == gt {
		t.Error("component alternate became the type's default")
	}
}
