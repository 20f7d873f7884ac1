package ir

import (
	stderrors "errors"
	"testing"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/target"
)

func TestInterpArithmetic(t *testing.T) {
	tb := target.NewBuilder(target.DefaultConfig())
	i8, i32 := tb.Int(8), tb.Int(32)

	fn := NewFunc("f", i32, i8, i32)
	b := NewBuilder(tb, fn)
	wide := b.SExt(fn.Params[0], i32)
	sum := b.Add(wide, fn.Params[1])
	lt := b.ICmp(PredSLT, sum, b.Const(i32, 0))
	b.Ret(b.Select(lt, b.Const(i32, 0), sum))

	in := NewInterp(tb)
	tests := []struct {
		a    int64
		c    int64
		want int64
	}{
		{-5, 3, 0},
		{-5, 10, 5},
		{100, 27, 127},
	}
	for _, tc := range tests {
		out, err := in.Run(fn, in.EncodeInt(i8, tc.a), in.EncodeInt(i32, tc.c))
		if err != nil {
			t.Fatal(err)
		}
		if got := in.DecodeInt(i32, out); got != tc.want {
			t.Errorf("f(%d, %d): got %d, want %d", tc.a, tc.c, got, tc.want)
		}
	}
}

func TestInterpMemory(t *testing.T) {
	tb := target.NewBuilder(target.DefaultConfig())
	i16 := tb.Int(16)
	arr := tb.Array(i16, 4)
	i64 := tb.Int(64)

	fn := NewFunc("g", i16, i64)
	b := NewBuilder(tb, fn)
	slot := b.Alloca(arr, "a")
	b.Memset(slot, b.Const(tb.Int(8), 0), b.Const(i64, 8), false)
	p := b.GEP(arr, slot, b.Const(tb.Int(32), 0), fn.Params[0])
	b.Store(b.Const(i16, 513), p, false)
	whole := b.Load(slot, false)
	b.Ret(b.Extract(whole, 2))

	in := NewInterp(tb)
	out, err := in.Run(fn, in.EncodeInt(i64, 2))
	if err != nil {
		t.Fatal(err)
	}
	if got := in.DecodeInt(i16, out); got != 513 {
		t.Errorf("got %d, want 513", got)
	}

	out, err = in.Run(fn, in.EncodeInt(i64, 1))
	if err != nil {
		t.Fatal(err)
	}
	if got := in.DecodeInt(i16, out); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestInterpStructGEP(t *testing.T) {
	tb := target.NewBuilder(target.DefaultConfig())
	i8, i32 := tb.Int(8), tb.Int(32)
	st := tb.Struct("", i8, i32)

	fn := NewFunc("h", tb.Int(64))
	b := NewBuilder(tb, fn)
	base := b.Alloca(st, "s")
	f1 := b.StructGEP(base, 1)
	b.Store(b.Const(i32, -9), f1, false)
	b.Ret(b.SExt(b.Extract(b.Load(base, false), 1), tb.Int(64)))

	in := NewInterp(tb)
	out, err := in.Run(fn)
	if err != nil {
		t.Fatal(err)
	}
	if got := in.DecodeInt(tb.Int(64), out); got != -9 {
		t.Errorf("got %d, want -9", got)
	}
}

func TestInterpErrors(t *testing.T) {
	tb := target.NewBuilder(target.DefaultConfig())
	i32 := tb.Int(32)

	fn := NewFunc("d", i32, i32)
	b := NewBuilder(tb, fn)
	b.Ret(b.SDiv(b.Const(i32, 1), fn.Params[0]))

	in := NewInterp(tb)
	_, err := in.Run(fn, in.EncodeInt(i32, 0))
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindInvalidData || e.Phase != errors.PhaseBackend {
		t.Errorf("division by zero: got %v", err)
	}
	if _, err := in.Run(fn); err == nil {
		t.Error("expected arity error")
	}
	if _, err := in.Mem.Read(0, 4); err == nil {
		t.Error("expected null access error")
	}
}
