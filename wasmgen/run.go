package wasmgen

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/target"
	"github.com/Lucretia/gnat-llvm/wasmgen/internal/wasm"
)

// Runtime executes compiled programs under wazero.
type Runtime struct {
	rt wazero.Runtime
}

// NewRuntime creates a runtime. Bulk memory operations are required for
// memset.
func NewRuntime(ctx context.Context) *Runtime {
	cfg := wazero.NewRuntimeConfig().WithCoreFeatures(api.CoreFeaturesV2)
	return &Runtime{rt: wazero.NewRuntimeWithConfig(ctx, cfg)}
}

// Close releases the runtime and every instance created from it.
func (r *Runtime) Close(ctx context.Context) error {
	return r.rt.Close(ctx)
}

// Instance is an instantiated program with its own memory.
type Instance struct {
	prog *Program
	mod  api.Module
	fn   api.Function
}

// Instantiate compiles and instantiates p. Every instance gets a unique
// module name so one runtime can hold many.
func (r *Runtime) Instantiate(ctx context.Context, p *Program) (*Instance, error) {
	compiled, err := r.rt.CompileModule(ctx, p.Binary)
	if err != nil {
		return nil, errors.Backend("compile "+p.Name, err)
	}
	name := p.Name + "-" + uuid.NewString()
	mod, err := r.rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, errors.Backend("instantiate "+p.Name, err)
	}
	fn := mod.ExportedFunction(p.Name)
	if fn == nil {
		return nil, errors.Internal(errors.PhaseBackend, "module %s does not export %s", name, p.Name)
	}
	Logger().Debug("instantiated", zap.String("module", name), zap.Uint32("pages", p.Pages))
	return &Instance{prog: p, mod: mod, fn: fn}, nil
}

// Call runs the function with integer or pointer arguments and returns
// its result reduced to the canonical form of the return type, or 0 for
// functions without a result.
func (i *Instance) Call(ctx context.Context, args ...int64) (int64, error) {
	if len(args) != len(i.prog.Params) {
		return 0, errors.InvalidInput(errors.PhaseBackend,
			fmt.Sprintf("%s takes %d arguments, got %d", i.prog.Name, len(i.prog.Params), len(args)))
	}
	raw := make([]uint64, len(args))
	for k, a := range args {
		raw[k] = uint64(canonical(i.prog.Params[k], a))
	}
	res, err := i.fn.Call(ctx, raw...)
	if err != nil {
		return 0, errors.Backend("call "+i.prog.Name, err)
	}
	if len(res) == 0 {
		return 0, nil
	}
	return int64(res[0]), nil
}

func canonical(t *target.Type, v int64) int64 {
	if t.IsInt() {
		return ir.Canon(v, t.Bits())
	}
	return v
}

// Write copies b into the instance memory at addr.
func (i *Instance) Write(addr uint64, b []byte) error {
	if addr > 1<<32-1 || !i.mod.Memory().Write(uint32(addr), b) {
		return errors.New(errors.PhaseBackend, errors.KindOutOfBounds).
			Value(addr).Detail("write of %d bytes at %#x", len(b), addr).Build()
	}
	return nil
}

// Read returns a copy of n bytes at addr.
func (i *Instance) Read(addr, n uint64) ([]byte, error) {
	if addr > 1<<32-1 || n > 1<<32-1 {
		return nil, errors.New(errors.PhaseBackend, errors.KindOutOfBounds).Value(addr).Build()
	}
	b, ok := i.mod.Memory().Read(uint32(addr), uint32(n))
	if !ok {
		return nil, errors.New(errors.PhaseBackend, errors.KindOutOfBounds).
			Value(addr).Detail("read of %d bytes at %#x", n, addr).Build()
	}
	return append([]byte(nil), b...), nil
}

// MemorySize returns the size of the instance memory in bytes.
func (i *Instance) MemorySize() uint64 {
	return uint64(i.mod.Memory().Size())
}

// Close releases the instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.mod.Close(ctx)
}

// Run compiles fn, calls it once in a fresh runtime, and returns the
// result.
func Run(ctx context.Context, tb *target.Builder, fn *ir.Func, args ...int64) (int64, error) {
	p, err := Compile(tb, fn)
	if err != nil {
		return 0, err
	}
	r := NewRuntime(ctx)
	defer r.Close(ctx)
	inst, err := r.Instantiate(ctx, p)
	if err != nil {
		return 0, err
	}
	return inst.Call(ctx, args...)
}

// PageSize is the size of a memory page in bytes.
const PageSize = wasm.PageSize
