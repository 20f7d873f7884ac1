package gltype

import (
	"bytes"
	"testing"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/target"
)

// run builds a function of one parameter of type in whose result is body's,
// and executes it on arg.
func (f *fixture) run(t *testing.T, in *target.Type, arg []byte, body func(b *ir.Builder, p *ir.Value) *ir.Value) []byte {
	t.Helper()
	fn := ir.NewFunc("conv", f.tb.Void(), in)
	b := ir.NewBuilder(f.tb, fn)
	res := body(b, fn.Params[0])
	fn.Ret = res.Type()
	b.Ret(res)
	out, err := ir.NewInterp(f.tb).Run(fn, arg)
	if err != nil {
		t.Fatalf("%v\n%s", err, fn)
	}
	return out
}

// roundTrip converts v from alt to the primitive and back.
func (f *fixture) roundTrip(t *testing.T, b *ir.Builder, v Value) Value {
	t.Helper()
	p, err := f.r.ToPrimitive(b, v)
	if err != nil {
		t.Fatal(err)
	}
	if !f.r.IsPrimitive(p.GT) {
		t.Fatalf("to_primitive produced a %s alternate", f.r.Kind(p.GT))
	}
	back, err := f.r.FromPrimitive(b, p, v.GT)
	if err != nil {
		t.Fatal(err)
	}
	return back
}

// primRoundTrip converts p from the primitive to alt and back.
func (f *fixture) primRoundTrip(t *testing.T, b *ir.Builder, p Value, alt GLType) Value {
	t.Helper()
	a, err := f.r.FromPrimitive(b, p, alt)
	if err != nil {
		t.Fatal(err)
	}
	back, err := f.r.ToPrimitive(b, a)
	if err != nil {
		t.Fatal(err)
	}
	return back
}

// must returns a function that fails t on a conversion error and yields the
// converted value otherwise.
func must(t *testing.T) func(Value, error) Value {
	return func(v Value, err error) Value {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		return v
	}
}

func TestIntAltRoundTrip(t *testing.T) {
	f := newFixture()
	src := sem.NewSigned("S", -100, 100)
	prim := f.primitive(t, src, f.tb.Int(8))
	alt := f.alt(t, Request{Source: src, Size: 16})
	in := ir.NewInterp(f.tb)
	i8, i16 := f.tb.Int(8), f.tb.Int(16)

	for _, x := range []int64{-100, -1, 0, 1, 100} {
		out := f.run(t, i16, in.EncodeInt(i16, x), func(b *ir.Builder, p *ir.Value) *ir.Value {
			return f.roundTrip(t, b, Value{IR: p, GT: alt}).IR
		})
		if got := in.DecodeInt(i16, out); got != x {
			t.Errorf("alt %d: got %d", x, got)
		}
		out = f.run(t, i8, in.EncodeInt(i8, x), func(b *ir.Builder, p *ir.Value) *ir.Value {
			return f.primRoundTrip(t, b, Value{IR: p, GT: prim}, alt).IR
		})
		if got := in.DecodeInt(i8, out); got != x {
			t.Errorf("primitive %d: got %d", x, got)
		}
	}
}

func TestIntAltWidensBySignedness(t *testing.T) {
	tests := []struct {
		name string
		src  *sem.Type
		want int64
	}{
		{"signed", sem.NewSigned("S", -128, 127), -1},
		{"natural", sem.NewSigned("N", 0, 255), 255},
		{"modular", sem.NewModular("M", 256), 255},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			prim := f.primitive(t, tc.src, f.tb.Int(8))
			alt := f.alt(t, Request{Source: tc.src, Size: 32})
			in := ir.NewInterp(f.tb)
			out := f.run(t, f.tb.Int(8), []byte{0xff}, func(b *ir.Builder, p *ir.Value) *ir.Value {
				return must(t)(f.r.FromPrimitive(b, Value{IR: p, GT: prim}, alt)).IR
			})
			if got := in.DecodeInt(f.tb.Int(32), out); got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestBiasedRoundTrip(t *testing.T) {
	const bias, n = 100, 5
	f := newFixture()
	src := sem.NewSigned("B", bias, bias+1<<n-1)
	prim := f.primitive(t, src, f.tb.Int(8))
	alt := f.alt(t, Request{Source: src, Size: n, Biased: true})
	in := ir.NewInterp(f.tb)
	i8 := f.tb.Int(8)

	for x := int64(bias); x <= bias+1<<n-1; x++ {
		out := f.run(t, i8, in.EncodeInt(i8, x), func(b *ir.Builder, p *ir.Value) *ir.Value {
			return f.primRoundTrip(t, b, Value{IR: p, GT: prim}, alt).IR
		})
		if got := int64(in.DecodeUint(i8, out)); got != x {
			t.Errorf("x=%d: got %d", x, got)
		}
	}

	// The stored form is x - bias.
	out := f.run(t, i8, in.EncodeInt(i8, bias+7), func(b *ir.Builder, p *ir.Value) *ir.Value {
		return must(t)(f.r.FromPrimitive(b, Value{IR: p, GT: prim}, alt)).IR
	})
	if got := in.DecodeUint(f.tb.Int(n), out); got != 7 {
		t.Errorf("stored form: got %d, want 7", got)
	}
}

func TestPaddedRoundTrip(t *testing.T) {
	f := newFixture()
	src, prim := f.record(t, "R", f.tb.Int(32))
	alt := f.alt(t, Request{Source: src, Size: 64})
	primPhys := f.r.Physical(prim)
	altPhys := f.r.Physical(alt)
	in := ir.NewInterp(f.tb)
	img := in.EncodeInt(f.tb.Int(32), 0x12345678)

	t.Run("data", func(t *testing.T) {
		out := f.run(t, primPhys, img, func(b *ir.Builder, p *ir.Value) *ir.Value {
			return f.primRoundTrip(t, b, Value{IR: p, GT: prim}, alt).IR
		})
		if !bytes.Equal(out, img) {
			t.Errorf("got % x", out)
		}
	})

	t.Run("reference", func(t *testing.T) {
		out := f.run(t, primPhys, img, func(b *ir.Builder, p *ir.Value) *ir.Value {
			slot := b.Alloca(altPhys, "padded")
			b.Store(p, b.StructGEP(slot, 0), false)
			back := f.roundTrip(t, b, Value{IR: slot, GT: alt, Rel: Reference})
			if back.Rel != Reference {
				t.Fatalf("relationship changed to %s", back.Rel)
			}
			return b.Load(b.StructGEP(back.IR, 0), false)
		})
		if !bytes.Equal(out, img) {
			t.Errorf("got % x", out)
		}
	})

	t.Run("gep_to_field_zero", func(t *testing.T) {
		fn := ir.NewFunc("f", f.tb.Void(), f.tb.PointerTo(altPhys))
		b := ir.NewBuilder(f.tb, fn)
		p := must(t)(f.r.ToPrimitive(b, Value{IR: fn.Params[0], GT: alt, Rel: Reference}))
		if p.IR.Op() != ir.OpGEP || !target.Equal(p.IR.Type(), f.tb.PointerTo(primPhys)) {
			t.Errorf("got %s", p.IR.Format())
		}
	})
}

func TestByteArrayRoundTrip(t *testing.T) {
	f := newFixture()
	src, _ := f.dynamic(t, "D")
	alt := f.alt(t, Request{Source: src, Size: 64})
	altPhys := f.r.Physical(alt)
	img := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	out := f.run(t, altPhys, img, func(b *ir.Builder, p *ir.Value) *ir.Value {
		back := f.roundTrip(t, b, Value{IR: p, GT: alt, Rel: Data})
		if back.Rel != Reference {
			t.Fatalf("got %s, want a materialized reference", back.Rel)
		}
		return b.Load(back.IR, false)
	})
	if !bytes.Equal(out, img) {
		t.Errorf("got % x", out)
	}

	t.Run("primitive_data_rejected", func(t *testing.T) {
		b := ir.NewBuilder(f.tb, ir.NewFunc("g", f.tb.Void()))
		_, err := f.r.FromPrimitive(b, Value{IR: b.Undef(f.r.Physical(f.r.Primitive(src))), GT: f.r.Primitive(src)}, alt)
		if !errors.IsInternal(err) {
			t.Errorf("got %v", err)
		}
	})
}

func TestMarkersRetag(t *testing.T) {
	f := newFixture()
	dyn, prim := f.dynamic(t, "D")
	ms := f.alt(t, Request{Source: dyn, MaxSize: true})
	al := f.alt(t, Request{Source: dyn, Align: 16})
	ptr := f.tb.PointerTo(f.r.Physical(prim))

	for _, alt := range []GLType{ms, al} {
		fn := ir.NewFunc("m", f.tb.Void(), ptr)
		b := ir.NewBuilder(f.tb, fn)
		v := Value{IR: fn.Params[0], GT: alt, Rel: Reference}
		back := f.roundTrip(t, b, v)
		if back != v {
			t.Errorf("%s: got %v, want %v", f.r.Kind(alt), back, v)
		}
		p := must(t)(f.r.ToPrimitive(b, v))
		if p.GT != prim || p.IR != v.IR {
			t.Errorf("%s: not a re-tag: %v", f.r.Kind(alt), p)
		}
		if len(fn.Body) != 0 {
			t.Errorf("%s: re-tag emitted code:\n%s", f.r.Kind(alt), fn)
		}
	}
}

func TestDummyRoundTrip(t *testing.T) {
	f := newFixture()
	acc := sem.NewAccess("Ptr", nil)
	dummy := f.r.NewUnset(acc)
	if err := f.r.SetPrimitive(dummy, f.tb.PointerTo(f.tb.Opaque("incomplete", 1)), true); err != nil {
		t.Fatal(err)
	}
	prim := f.primitive(t, acc, f.tb.PointerTo(f.tb.Int(32)))
	in := ir.NewInterp(f.tb)
	dPhys := f.r.Physical(dummy)

	out := f.run(t, dPhys, in.EncodeInt(dPhys, 0x1000), func(b *ir.Builder, p *ir.Value) *ir.Value {
		back := f.roundTrip(t, b, Value{IR: p, GT: dummy})
		if !target.Equal(back.IR.Type(), dPhys) {
			t.Fatalf("type: %s", back.IR.Type())
		}
		return back.IR
	})
	if got := in.DecodeUint(dPhys, out); got != 0x1000 {
		t.Errorf("got %#x", got)
	}

	b := ir.NewBuilder(f.tb, ir.NewFunc("d", f.tb.Void()))
	p := must(t)(f.r.ToPrimitive(b, Value{IR: b.Const(dPhys, 0), GT: dummy}))
	if p.GT != prim || !target.Equal(p.IR.Type(), f.r.Physical(prim)) {
		t.Errorf("got %v", p)
	}

	_, err := f.r.ToPrimitive(b, Value{IR: b.Const(f.tb.Int(64), 0x1000), GT: dummy})
	if !errors.IsInternal(err) {
		t.Fatalf("non-pointer value: got %v", err)
	}
	if cause, ok := err.(*errors.Error).Cause.(*errors.Error); !ok || cause.Kind != errors.KindTypeMismatch {
		t.Errorf("cause: got %v", err.(*errors.Error).Cause)
	}
}

func TestReferenceToReferenceCollapses(t *testing.T) {
	f := newFixture()
	src := sem.NewSigned("S", -100, 100)
	f.primitive(t, src, f.tb.Int(8))
	alt := f.alt(t, Request{Source: src, Size: 16})
	in := ir.NewInterp(f.tb)
	i16 := f.tb.Int(16)

	out := f.run(t, i16, in.EncodeInt(i16, -42), func(b *ir.Builder, p *ir.Value) *ir.Value {
		obj := b.Alloca(i16, "obj")
		b.Store(p, obj, false)
		ref := b.Alloca(f.tb.PointerTo(i16), "ref")
		b.Store(obj, ref, false)
		prim := must(t)(f.r.ToPrimitive(b, Value{IR: ref, GT: alt, Rel: ReferenceToReference}))
		return b.SExt(prim.IR, f.tb.Int(32))
	})
	if got := in.DecodeInt(f.tb.Int(32), out); got != -42 {
		t.Errorf("got %d", got)
	}
}

func TestBoundsAndDataRefTakesPointerPath(t *testing.T) {
	f := newFixture()
	dyn, prim := f.dynamic(t, "D")
	ms := f.alt(t, Request{Source: dyn, MaxSize: true})
	ba := f.alt(t, Request{Source: dyn, Size: 128})

	fn := ir.NewFunc("b", f.tb.Void(), f.tb.PointerTo(f.r.Physical(ba)))
	b := ir.NewBuilder(f.tb, fn)
	p := must(t)(f.r.ToPrimitive(b, Value{IR: fn.Params[0], GT: ba, Rel: BoundsAndDataRef}))
	if p.Rel != BoundsAndDataRef || p.GT != prim || p.IR.Op() != ir.OpBitcast {
		t.Errorf("byte array: got %v", p)
	}
	m := must(t)(f.r.FromPrimitive(b, p, ms))
	if m.Rel != BoundsAndDataRef || m.GT != ms {
		t.Errorf("marker: got %v", m)
	}
}

func TestFatPointerRepoint(t *testing.T) {
	f := newFixture()
	dyn, prim := f.dynamic(t, "D")
	ba := f.alt(t, Request{Source: dyn, Size: 64})
	bounds := f.tb.BoundsRecord("B", []*target.Type{f.tb.Int(32)})
	fat := f.r.IRType(ba, FatPointer, bounds)

	fn := ir.NewFunc("fp", f.tb.Void(), fat)
	b := ir.NewBuilder(f.tb, fn)
	p := must(t)(f.r.ToPrimitive(b, Value{IR: fn.Params[0], GT: ba, Rel: FatPointer}))
	want := f.r.IRType(prim, FatPointer, bounds)
	if p.Rel != FatPointer || !target.Equal(p.IR.Type(), want) {
		t.Errorf("got %s, want %s", p.IR.Type(), want)
	}
}

func TestConvertAcrossAlternates(t *testing.T) {
	f := newFixture()
	src := sem.NewSigned("S", 10, 40)
	f.primitive(t, src, f.tb.Int(8))
	biased := f.alt(t, Request{Source: src, Size: 5, Biased: true})
	wide := f.alt(t, Request{Source: src, Size: 32})
	in := ir.NewInterp(f.tb)
	i5 := f.r.Physical(biased)

	out := f.run(t, i5, in.EncodeInt(i5, 30), func(b *ir.Builder, p *ir.Value) *ir.Value {
		return must(t)(f.r.Convert(b, Value{IR: p, GT: biased}, wide)).IR
	})
	if got := in.DecodeInt(f.tb.Int(32), out); got != 40 {
		t.Errorf("got %d, want 40", got)
	}
}

func TestConvertErrors(t *testing.T) {
	f := newFixture()
	a := sem.NewSigned("A", 0, 10)
	c := sem.NewSigned("C", 0, 10)
	pa := f.primitive(t, a, f.tb.Int(8))
	pc := f.primitive(t, c, f.tb.Int(8))
	alt := f.alt(t, Request{Source: a, Size: 16})
	b := ir.NewBuilder(f.tb, ir.NewFunc("e", f.tb.Void()))

	if _, err := f.r.FromPrimitive(b, Value{IR: b.Const(f.tb.Int(16), 1), GT: alt}, pa); !errors.IsInternal(err) {
		t.Errorf("non-primitive input: got %v", err)
	}
	if _, err := f.r.FromPrimitive(b, Value{IR: b.Const(f.tb.Int(8), 1), GT: pc}, alt); !errors.IsInternal(err) {
		t.Errorf("cross-type conversion: got %v", err)
	}
	if _, err := f.r.ToPrimitive(b, Value{IR: b.Const(f.tb.Int(16), 1), GT: alt, Rel: FatPointer}); !errors.IsInternal(err) {
		t.Errorf("fat pointer int: got %v", err)
	}
}

func TestEveryKindHasConverter(t *testing.T) {
	for k := KindPrimitive; k < numKinds; k++ {
		if converters[k] == nil {
			t.Errorf("no converter for %s", k)
		}
	}
}
