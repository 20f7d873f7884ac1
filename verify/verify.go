// Package verify checks the conversions of a unit's integer alternates:
// every IntAlt and Biased alternate must carry each value it can hold from
// the primitive and back unchanged, in the interpreter and in wasm.
package verify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/unit"
	"github.com/Lucretia/gnat-llvm/wasmgen"
)

// Engine selects where round trips are executed.
type Engine string

const (
	Interp Engine = "interp"
	Wasm   Engine = "wasm"
	Both   Engine = "both"
)

func (e Engine) interp() bool { return e == Interp || e == Both }
func (e Engine) wasm() bool   { return e == Wasm || e == Both }

// Options bound a run.
type Options struct {
	Engine Engine
	// MaxSamples is the most values tried per alternate; larger ranges are
	// sampled evenly, both ends included.
	MaxSamples int
}

// Failure is a value that did not survive the round trip.
type Failure struct {
	Engine Engine
	Value  int64
	Got    int64
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %d came back as %d", f.Engine, f.Value, f.Got)
}

// Check is the outcome for one alternate.
type Check struct {
	Type     string
	Kind     string
	Physical string
	// Skipped explains why no value was tried.
	Skipped  string
	Failures []Failure
	Low      int64
	High     int64
	Samples  int
}

// OK reports a check that ran without failures.
func (c Check) OK() bool { return c.Skipped == "" && len(c.Failures) == 0 }

// Result lists the checks in type declaration order.
type Result struct {
	Checks []Check
}

// Failed counts the checks with failures.
func (r *Result) Failed() int {
	n := 0
	for _, c := range r.Checks {
		if len(c.Failures) > 0 {
			n++
		}
	}
	return n
}

// Run verifies every IntAlt and Biased alternate of the unit in c.
func Run(ctx context.Context, c *unit.Context, opts Options) (*Result, error) {
	if c.Model == nil {
		return nil, errors.InvalidInput(errors.PhaseConvert, "unit "+c.ID.String()+" holds no model")
	}
	if opts.Engine == "" {
		opts.Engine = Both
	}
	if !opts.Engine.interp() && !opts.Engine.wasm() {
		return nil, errors.InvalidInput(errors.PhaseConvert, "unknown engine "+string(opts.Engine))
	}
	if opts.MaxSamples < 2 {
		opts.MaxSamples = 2
	}
	v := &verifier{c: c, opts: opts, log: Logger().With(zap.String("unit", c.Model.Unit))}
	if opts.Engine.wasm() {
		v.rt = wasmgen.NewRuntime(ctx)
		defer v.rt.Close(ctx)
	}

	res := &Result{}
	for _, t := range c.Model.Types() {
		if !t.IsScalarInteger() {
			continue
		}
		for gt := range c.Registry.Alternates(t) {
			k := c.Registry.Kind(gt)
			if k != gltype.KindIntAlt && k != gltype.KindBiased {
				continue
			}
			chk, err := v.check(ctx, t, gt)
			if err != nil {
				return nil, err
			}
			res.Checks = append(res.Checks, chk)
		}
	}
	v.log.Info("verified",
		zap.Int("alternates", len(res.Checks)),
		zap.Int("failed", res.Failed()))
	return res, nil
}

type verifier struct {
	c    *unit.Context
	rt   *wasmgen.Runtime
	log  *zap.Logger
	opts Options
}

func (v *verifier) check(ctx context.Context, t *sem.Type, alt gltype.GLType) (Check, error) {
	reg := v.c.Registry
	chk := Check{
		Type:     t.Name,
		Kind:     reg.Kind(alt).String(),
		Physical: reg.Physical(alt).String(),
	}
	lo, hi, ok := t.StaticRange()
	if !ok {
		chk.Skipped = "range is not static"
		return chk, nil
	}
	lo, hi, ok = window(reg, t, alt, lo, hi)
	if !ok {
		chk.Skipped = "no value of the range fits"
		return chk, nil
	}
	chk.Low, chk.High = lo, hi

	fn, err := roundTrip(reg, t, alt)
	if err != nil {
		return chk, err
	}
	var inst *wasmgen.Instance
	if v.opts.Engine.wasm() {
		p, err := wasmgen.Compile(v.c.Target, fn)
		if err != nil {
			return chk, err
		}
		inst, err = v.rt.Instantiate(ctx, p)
		if err != nil {
			return chk, err
		}
		defer inst.Close(ctx)
	}

	bits := fn.Ret.Bits()
	in := ir.NewInterp(v.c.Target)
	for _, x := range samples(lo, hi, v.opts.MaxSamples) {
		want := ir.Canon(x, bits)
		chk.Samples++
		if v.opts.Engine.interp() {
			out, err := in.Run(fn, in.EncodeInt(fn.Ret, x))
			if err != nil {
				return chk, err
			}
			if got := ir.Canon(in.DecodeInt(fn.Ret, out), bits); got != want {
				chk.Failures = append(chk.Failures, Failure{Engine: Interp, Value: x, Got: got})
			}
		}
		if inst != nil {
			got, err := inst.Call(ctx, x)
			if err != nil {
				return chk, err
			}
			if got != want {
				chk.Failures = append(chk.Failures, Failure{Engine: Wasm, Value: x, Got: got})
			}
		}
	}
	v.log.Debug("alternate checked",
		zap.String("type", chk.Type),
		zap.String("kind", chk.Kind),
		zap.Int("samples", chk.Samples),
		zap.Int("failures", len(chk.Failures)))
	return chk, nil
}

// roundTrip builds prim -> alt -> prim for alt of t.
func roundTrip(reg *gltype.Registry, t *sem.Type, alt gltype.GLType) (*ir.Func, error) {
	prim := reg.Primitive(t)
	phys := reg.Physical(prim)
	fn := ir.NewFunc("round_trip", phys, phys)
	b := ir.NewBuilder(reg.Target(), fn)
	a, err := reg.FromPrimitive(b, gltype.Value{IR: fn.Params[0], GT: prim}, alt)
	if err != nil {
		return nil, err
	}
	back, err := reg.ToPrimitive(b, a)
	if err != nil {
		return nil, err
	}
	b.Ret(back.IR)
	return fn, nil
}

// window narrows lo .. hi to the values alt can hold.
func window(reg *gltype.Registry, t *sem.Type, alt gltype.GLType, lo, hi int64) (int64, int64, bool) {
	w := reg.Physical(alt).Bits()
	if w >= 63 {
		return lo, hi, lo <= hi
	}
	var least, most int64
	switch {
	case reg.Kind(alt) == gltype.KindBiased:
		least, most = lo, lo+(1<<w-1)
	case t.HasSignedRange():
		least, most = -1<<(w-1), 1<<(w-1)-1
	default:
		least, most = 0, 1<<w-1
	}
	lo, hi = max(lo, least), min(hi, most)
	return lo, hi, lo <= hi
}

// samples spreads at most n values over lo .. hi.
func samples(lo, hi int64, n int) []int64 {
	span := uint64(hi - lo)
	if span < uint64(n) {
		out := make([]int64, 0, span+1)
		for x := lo; ; x++ {
			out = append(out, x)
			if x == hi {
				return out
			}
		}
	}
	step := span / uint64(n-1)
	out := make([]int64, 0, n)
	for i := range n - 1 {
		out = append(out, lo+int64(uint64(i)*step))
	}
	return append(out, hi)
}
