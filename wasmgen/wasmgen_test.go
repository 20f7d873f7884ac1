package wasmgen

import (
	"bytes"
	"context"
	"testing"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/lower"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/shape"
	"github.com/Lucretia/gnat-llvm/target"
)

// interpret runs fn in the interpreter and returns its canonical result.
func interpret(t *testing.T, tb *target.Builder, fn *ir.Func, args ...int64) int64 {
	t.Helper()
	in := ir.NewInterp(tb)
	imgs := make([][]byte, len(args))
	for i, a := range args {
		imgs[i] = in.EncodeInt(fn.Params[i].Type(), a)
	}
	out, err := in.Run(fn, imgs...)
	if err != nil {
		t.Fatalf("interp: %v\n%s", err, fn)
	}
	return ir.Canon(in.DecodeInt(fn.Ret, out), fn.Ret.Bits())
}

func newFunc(tb *target.Builder, ret *target.Type, params ...*target.Type) (*ir.Builder, *ir.Func) {
	fn := ir.NewFunc("f", ret, params...)
	return ir.NewBuilder(tb, fn), fn
}

func TestMatchesInterpreter(t *testing.T) {
	tb := target.NewBuilder(target.DefaultConfig())
	i1, i8, i16, i32 := tb.Bool(), tb.Int(8), tb.Int(16), tb.Int(32)

	tests := []struct {
		name    string
		build   func() *ir.Func
		samples [][]int64
	}{
		{"add_wraps", func() *ir.Func {
			b, fn := newFunc(tb, i8, i8, i8)
			b.Ret(b.Add(fn.Params[0], fn.Params[1]))
			return fn
		}, [][]int64{{100, 100}, {-128, -1}, {5, 7}}},
		{"udiv", func() *ir.Func {
			b, fn := newFunc(tb, i16, i16, i16)
			b.Ret(b.UDiv(fn.Params[0], fn.Params[1]))
			return fn
		}, [][]int64{{-2, 2}, {1000, 7}, {-1, -1}}},
		{"sdiv_neg", func() *ir.Func {
			b, fn := newFunc(tb, i32, i32, i32)
			b.Ret(b.Neg(b.SDiv(fn.Params[0], fn.Params[1])))
			return fn
		}, [][]int64{{-7, 2}, {7, -2}, {1 << 30, 3}}},
		{"compare_select", func() *ir.Func {
			b, fn := newFunc(tb, i8, i8, i8)
			x, y := fn.Params[0], fn.Params[1]
			b.Ret(b.Select(b.ICmp(ir.PredULT, x, y), x, y))
			return fn
		}, [][]int64{{-1, 1}, {1, -1}, {3, 3}}},
		{"signed_compare", func() *ir.Func {
			b, fn := newFunc(tb, i1, i16, i16)
			b.Ret(b.ICmp(ir.PredSGT, fn.Params[0], fn.Params[1]))
			return fn
		}, [][]int64{{-1, 1}, {1, -1}, {0, 0}}},
		{"min_max", func() *ir.Func {
			b, fn := newFunc(tb, i8, i8, i8)
			x, y := fn.Params[0], fn.Params[1]
			b.Ret(b.Sub(b.Max(x, y, true), b.Min(x, y, false)))
			return fn
		}, [][]int64{{-1, 1}, {100, -100}, {0, 0}}},
		{"extensions", func() *ir.Func {
			b, fn := newFunc(tb, i32, i8)
			x := fn.Params[0]
			z := b.ZExt(b.Trunc(x, tb.Int(3)), i16)
			s := b.SExt(b.Trunc(x, tb.Int(5)), i32)
			b.Ret(b.Add(b.ZExt(z, i32), b.Mul(s, b.Const(i32, 1000))))
			return fn
		}, [][]int64{{-1}, {0x15}, {0x7f}}},
		{"bool_extension", func() *ir.Func {
			b, fn := newFunc(tb, i8, i8, i8)
			c := b.ICmp(ir.PredEQ, fn.Params[0], fn.Params[1])
			b.Ret(b.Add(b.SExt(c, i8), b.Mul(b.ZExt(c, i8), b.Const(i8, 10))))
			return fn
		}, [][]int64{{4, 4}, {4, 5}}},
	}
	ctx := context.Background()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fn := tc.build()
			for _, args := range tc.samples {
				want := interpret(t, tb, fn, args...)
				got, err := Run(ctx, tb, fn, args...)
				if err != nil {
					t.Fatalf("%v\n%s", err, fn)
				}
				if got != want {
					t.Errorf("%v: wasm %d, interpreter %d", args, got, want)
				}
			}
		})
	}
}

func TestMemory(t *testing.T) {
	tb := target.NewBuilder(target.DefaultConfig())
	i16, i32, iptr := tb.Int(16), tb.Int(32), tb.IntPtr()
	arr := tb.Array(i16, 4)

	// Fill a stack array with 0x0101 per element, overwrite element k with
	// x, and sum elements k and 3.
	b, fn := newFunc(tb, i16, i32, i16)
	k, x := fn.Params[0], fn.Params[1]
	slot := b.Alloca(arr, "a")
	b.Memset(b.Bitcast(slot, tb.PointerTo(tb.Int(8))), b.Const(tb.Int(8), 1), b.Const(iptr, 8), false)
	zero := b.Const(i32, 0)
	b.Store(x, b.GEP(arr, slot, zero, k), false)
	e3 := b.Load(b.GEP(arr, slot, zero, b.Const(i32, 3)), false)
	ek := b.Load(b.GEP(arr, slot, zero, k), false)
	b.Ret(b.Add(ek, e3))

	ctx := context.Background()
	for _, args := range [][]int64{{0, 5}, {3, 5}, {2, -300}} {
		want := interpret(t, tb, fn, args...)
		got, err := Run(ctx, tb, fn, args...)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("%v: wasm %d, interpreter %d", args, got, want)
		}
	}

	p, err := Compile(tb, fn)
	if err != nil {
		t.Fatal(err)
	}
	if p.FrameBase != 16 || p.FrameSize != 8 {
		t.Errorf("frame [%d, +%d), want [16, +8)", p.FrameBase, p.FrameSize)
	}
}

func TestInstanceMemory(t *testing.T) {
	tb := target.NewBuilder(target.DefaultConfig())
	i32 := tb.Int(32)
	b, fn := newFunc(tb, tb.Void(), tb.PointerTo(i32))
	p := fn.Params[0]
	v := b.Load(p, false)
	b.Store(b.Add(v, v), p, false)

	ctx := context.Background()
	prog, err := Compile(tb, fn, WithMemoryPages(2))
	if err != nil {
		t.Fatal(err)
	}
	r := NewRuntime(ctx)
	defer r.Close(ctx)
	inst, err := r.Instantiate(ctx, prog)
	if err != nil {
		t.Fatal(err)
	}
	if inst.MemorySize() != 2*PageSize {
		t.Errorf("memory size %d", inst.MemorySize())
	}
	const addr = 1024
	if err := inst.Write(addr, []byte{21, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if _, err := inst.Call(ctx, addr); err != nil {
		t.Fatal(err)
	}
	got, err := inst.Read(addr, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{42, 0, 0, 0}) {
		t.Errorf("memory % x", got)
	}
	if _, err := inst.Read(3*PageSize, 4); err == nil {
		t.Error("read beyond memory succeeded")
	}
	if _, err := inst.Call(ctx); err == nil {
		t.Error("call with missing argument succeeded")
	}
}

// The conversions of biased and narrow integer alternates must agree
// between the two engines over the whole range.
func TestConversions(t *testing.T) {
	tb := target.NewBuilder(target.DefaultConfig())
	reg := gltype.NewRegistry(tb)
	lw := lower.New(reg, shape.NewTable(tb))
	biasedT := sem.NewSigned("Biased_Range", 100, 131)
	narrowT := sem.NewSigned("Narrow", -4, 3)

	tests := []struct {
		name string
		src  *sem.Type
		req  gltype.Request
	}{
		{"biased", biasedT, gltype.Request{Source: biasedT, Size: 5, Biased: true}},
		{"int_alt", narrowT, gltype.Request{Source: narrowT, Size: 3, ForComponent: true}},
	}
	ctx := context.Background()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prim, err := lw.Type(tc.src)
			if err != nil {
				t.Fatal(err)
			}
			alt, err := reg.FindOrCreate(tc.req)
			if err != nil {
				t.Fatal(err)
			}
			pt := reg.Physical(prim)
			b, fn := newFunc(tb, pt, pt)
			a, err := reg.FromPrimitive(b, gltype.Value{IR: fn.Params[0], GT: prim, Rel: gltype.Data}, alt)
			if err != nil {
				t.Fatal(err)
			}
			back, err := reg.ToPrimitive(b, a)
			if err != nil {
				t.Fatal(err)
			}
			b.Ret(back.IR)

			prog, err := Compile(tb, fn)
			if err != nil {
				t.Fatal(err)
			}
			r := NewRuntime(ctx)
			defer r.Close(ctx)
			inst, err := r.Instantiate(ctx, prog)
			if err != nil {
				t.Fatal(err)
			}
			lo, hi, _ := tc.src.StaticRange()
			for x := lo; x <= hi; x++ {
				got, err := inst.Call(ctx, x)
				if err != nil {
					t.Fatal(err)
				}
				if want := interpret(t, tb, fn, x); got != want || got != ir.Canon(x, pt.Bits()) {
					t.Errorf("x=%d: wasm %d, interpreter %d", x, got, want)
				}
			}
		})
	}
}

func TestUnsupported(t *testing.T) {
	tb := target.NewBuilder(target.DefaultConfig())
	pair := tb.Struct("", tb.Int(32), tb.Int(32))
	b, fn := newFunc(tb, tb.Int(32), pair)
	b.Ret(b.Extract(fn.Params[0], 1))
	_, err := Compile(tb, fn)
	if e, ok := err.(*errors.Error); !ok || e.Kind != errors.KindUnsupported {
		t.Errorf("got %v", err)
	}
}
