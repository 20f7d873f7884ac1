package ir

import (
	"strings"
	"testing"

	"github.com/Lucretia/gnat-llvm/target"
)

func newTestBuilder(ret *target.Type, params ...*target.Type) (*target.Builder, *Builder) {
	tb := target.NewBuilder(target.DefaultConfig())
	if ret == nil {
		ret = tb.Void()
	}
	fn := NewFunc("test", ret, params...)
	return tb, NewBuilder(tb, fn)
}

func TestConstFolding(t *testing.T) {
	tb, b := newTestBuilder(nil)
	i8 := tb.Int(8)
	i32 := tb.Int(32)

	tests := []struct {
		name string
		got  *Value
		want int64
	}{
		{"add", b.Add(b.Const(i32, 2), b.Const(i32, 3)), 5},
		{"add_wraps", b.Add(b.Const(i8, 127), b.Const(i8, 1)), -128},
		{"sub", b.Sub(b.Const(i32, 2), b.Const(i32, 7)), -5},
		{"mul", b.Mul(b.Const(i32, 6), b.Const(i32, 7)), 42},
		{"sdiv", b.SDiv(b.Const(i32, -7), b.Const(i32, 2)), -3},
		{"udiv", b.UDiv(b.Const(i8, -2), b.Const(i8, 2)), 127},
		{"neg", b.Neg(b.Const(i32, 9)), -9},
		{"min_signed", b.Min(b.Const(i8, -1), b.Const(i8, 1), false), -1},
		{"min_unsigned", b.Min(b.Const(i8, -1), b.Const(i8, 1), true), 1},
		{"max", b.Max(b.Const(i32, 3), b.Const(i32, 0), false), 3},
		{"trunc", b.Trunc(b.Const(i32, 0x1ff), i8), -1},
		{"sext", b.SExt(b.Const(i8, -3), i32), -3},
		{"zext", b.ZExt(b.Const(i8, -3), i32), 253},
		{"select", b.Select(b.ICmp(PredSGT, b.Const(i32, 5), b.Const(i32, 3)), b.Const(i32, 0), b.Const(i32, 1)), 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, ok := tc.got.ConstInt()
			if !ok {
				t.Fatalf("not folded: %s", tc.got.Format())
			}
			if c != tc.want {
				t.Errorf("got %d, want %d", c, tc.want)
			}
		})
	}

	if n := len(b.Func().Body); n != 0 {
		t.Errorf("folded operations emitted %d instructions", n)
	}
}

func TestIdentities(t *testing.T) {
	tb := target.NewBuilder(target.DefaultConfig())
	i32 := tb.Int(32)
	b := NewBuilder(tb, NewFunc("id", tb.Void(), i32))
	x := b.Func().Params[0]

	if b.Add(x, b.Const(i32, 0)) != x {
		t.Error("x+0 not simplified")
	}
	if b.Mul(b.Const(i32, 1), x) != x {
		t.Error("1*x not simplified")
	}
	if c, ok := b.Mul(x, b.Const(i32, 0)).ConstInt(); !ok || c != 0 {
		t.Error("x*0 not simplified")
	}
	if len(b.Func().Body) != 0 {
		t.Error("identities emitted code")
	}
	sum := b.Add(x, x)
	if sum.IsConst() || len(b.Func().Body) != 1 {
		t.Error("x+x should emit one instruction")
	}
}

func TestUnsignedConst(t *testing.T) {
	tb, b := newTestBuilder(nil)
	c := b.Const(tb.Int(8), 200)
	s, _ := c.ConstInt()
	u, _ := c.ConstUint()
	if s != -56 || u != 200 {
		t.Errorf("got signed %d unsigned %d", s, u)
	}
	if one, _ := b.Bool(true).ConstInt(); one != 1 {
		t.Errorf("true = %d", one)
	}
}

func TestAggregateFolding(t *testing.T) {
	tb, b := newTestBuilder(nil)
	i16 := tb.Int(16)
	arr := tb.Array(i16, 3)

	agg := b.Insert(b.Undef(arr), b.Const(i16, 7), 1)
	if agg.Op() != OpAgg {
		t.Fatalf("insert into undef not folded: %s", agg.Format())
	}
	if c, _ := b.Extract(agg, 1).ConstInt(); c != 7 {
		t.Errorf("extract: got %d", c)
	}
	if b.Extract(agg, 0).Op() != OpUndef {
		t.Error("untouched element should stay undef")
	}
	if c, ok := b.Extract(b.Zero(arr), 2).ConstInt(); !ok || c != 0 {
		t.Error("zeroinitializer element not zero")
	}
}

func TestFuncString(t *testing.T) {
	tb := target.NewBuilder(target.DefaultConfig())
	i32 := tb.Int(32)
	fn := NewFunc("inc", i32, i32)
	b := NewBuilder(tb, fn)
	b.Ret(b.Add(fn.Params[0], b.Const(i32, 1)))

	s := fn.String()
	for _, want := range []string{"define i32 @inc(i32 %arg0)", "%0 = add i32 %arg0, i32 1", "ret i32 %0"} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %q in:\n%s", want, s)
		}
	}
}

func TestBuilderPanicsOnMismatch(t *testing.T) {
	tb, b := newTestBuilder(nil)
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	b.Add(b.Const(tb.Int(8), 1), b.Const(tb.Int(16), 1))
}
