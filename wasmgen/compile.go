package wasmgen

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/target"
	"github.com/Lucretia/gnat-llvm/wasmgen/internal/wasm"
)

// Program is a compiled function.
type Program struct {
	Name   string
	Binary []byte
	Params []*target.Type
	Ret    *target.Type
	// Stack slots live in [FrameBase, FrameBase+FrameSize).
	FrameBase uint64
	FrameSize uint64
	Pages     uint32
}

// Option configures Compile.
type Option func(*options)

type options struct {
	frameBase uint64
	pages     uint32
}

// WithFrameBase places stack slots from addr on. The default is 16, the
// first address the interpreter's memory hands out.
func WithFrameBase(addr uint64) Option {
	return func(o *options) { o.frameBase = addr }
}

// WithMemoryPages sets the minimum memory size in 64 KiB pages.
func WithMemoryPages(n uint32) Option {
	return func(o *options) { o.pages = n }
}

// Compile lowers fn to a module exporting it under its name. Every value
// lives in an i64 local holding the canonical form of the IR constant:
// sign-extended from its width, or 0/1 for booleans. Only integers,
// pointers, and memory operations on them are supported.
func Compile(tb *target.Builder, fn *ir.Func, opts ...Option) (*Program, error) {
	o := options{frameBase: 16}
	for _, opt := range opts {
		opt(&o)
	}
	c := &compiler{
		tb:     tb,
		fn:     fn,
		w:      wasm.NewWriter(),
		locals: make(map[*ir.Value]uint32),
		base:   o.frameBase,
	}
	m := &wasm.Module{Name: fn.Name}
	for i, p := range fn.Params {
		if !c.scalar(p.Type()) {
			return nil, errors.Unsupported(errors.PhaseBackend, fmt.Sprintf("parameter %d of type %s", i, p.Type()))
		}
		c.locals[p] = uint32(i)
		m.Params = append(m.Params, wasm.ValI64)
	}
	c.next = uint32(len(fn.Params))

	for _, v := range fn.Body {
		if err := c.instr(v); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", fn.Name, v.Format(), err)
		}
	}
	if fn.Result != nil {
		if err := c.push(fn.Result); err != nil {
			return nil, err
		}
		m.Results = []wasm.ValType{wasm.ValI64}
	}
	for range c.next - uint32(len(fn.Params)) {
		m.Locals = append(m.Locals, wasm.ValI64)
	}
	m.Body = c.w.Bytes()

	end := c.base + c.frame
	m.MemoryPages = max(o.pages, uint32((end+wasm.PageSize-1)/wasm.PageSize))
	bin := m.Encode()
	Logger().Debug("compiled",
		zap.String("func", fn.Name),
		zap.Int("instructions", len(fn.Body)),
		zap.Int("locals", len(m.Locals)),
		zap.Int("bytes", len(bin)))
	return &Program{
		Name:      fn.Name,
		Binary:    bin,
		Params:    paramTypes(fn),
		Ret:       fn.Ret,
		FrameBase: c.base,
		FrameSize: c.frame,
		Pages:     m.MemoryPages,
	}, nil
}

func paramTypes(fn *ir.Func) []*target.Type {
	out := make([]*target.Type, len(fn.Params))
	for i, p := range fn.Params {
		out[i] = p.Type()
	}
	return out
}

type compiler struct {
	tb     *target.Builder
	fn     *ir.Func
	w      *wasm.Writer
	locals map[*ir.Value]uint32
	next   uint32
	base   uint64
	frame  uint64
}

func (c *compiler) scalar(t *target.Type) bool {
	return (t.IsInt() && t.Bits() <= 64) || t.IsPointer()
}

func (c *compiler) bits(t *target.Type) uint32 {
	if t.IsPointer() {
		return c.tb.Config().PointerBits
	}
	return t.Bits()
}

func (c *compiler) i64(v int64) {
	c.w.Byte(wasm.OpI64Const)
	c.w.WriteS64(v)
}

// push loads v onto the operand stack.
func (c *compiler) push(v *ir.Value) error {
	if l, ok := c.locals[v]; ok {
		c.w.Byte(wasm.OpLocalGet)
		c.w.WriteU32(l)
		return nil
	}
	if !c.scalar(v.Type()) {
		return errors.Unsupported(errors.PhaseBackend, "operand of type "+v.Type().String())
	}
	switch v.Op() {
	case ir.OpConst:
		x, _ := v.ConstInt()
		c.i64(x)
		return nil
	case ir.OpUndef, ir.OpZero:
		c.i64(0)
		return nil
	}
	return errors.Internal(errors.PhaseBackend, "%s used before it is defined", v)
}

// canon reduces the i64 on the stack to the canonical form of bits.
func (c *compiler) canon(bits uint32) {
	switch {
	case bits == 1:
		c.i64(1)
		c.w.Byte(wasm.OpI64And)
	case bits < 64:
		c.i64(int64(64 - bits))
		c.w.Byte(wasm.OpI64Shl)
		c.i64(int64(64 - bits))
		c.w.Byte(wasm.OpI64ShrS)
	}
}

// zext reinterprets the canonical value on the stack as unsigned.
func (c *compiler) zext(bits uint32) {
	if bits < 64 {
		c.i64(int64(1)<<bits - 1)
		c.w.Byte(wasm.OpI64And)
	}
}

// operand pushes v in the form a comparison of the given signedness
// expects.
func (c *compiler) operand(v *ir.Value, unsigned bool) error {
	if err := c.push(v); err != nil {
		return err
	}
	bits := c.bits(v.Type())
	switch {
	case unsigned:
		c.zext(bits)
	case bits == 1:
		c.i64(63)
		c.w.Byte(wasm.OpI64Shl)
		c.i64(63)
		c.w.Byte(wasm.OpI64ShrS)
	}
	return nil
}

func (c *compiler) set(v *ir.Value) {
	c.locals[v] = c.next
	c.w.Byte(wasm.OpLocalSet)
	c.w.WriteU32(c.next)
	c.next++
}

var binaryOps = map[ir.Op]byte{
	ir.OpAdd:  wasm.OpI64Add,
	ir.OpSub:  wasm.OpI64Sub,
	ir.OpMul:  wasm.OpI64Mul,
	ir.OpSDiv: wasm.OpI64DivS,
}

var compareOps = map[ir.Pred]byte{
	ir.PredEQ:  wasm.OpI64Eq,
	ir.PredNE:  wasm.OpI64Ne,
	ir.PredULT: wasm.OpI64LtU,
	ir.PredULE: wasm.OpI64LeU,
	ir.PredUGT: wasm.OpI64GtU,
	ir.PredUGE: wasm.OpI64GeU,
	ir.PredSLT: wasm.OpI64LtS,
	ir.PredSLE: wasm.OpI64LeS,
	ir.PredSGT: wasm.OpI64GtS,
	ir.PredSGE: wasm.OpI64GeS,
}

func unsignedPred(p ir.Pred) bool {
	return p >= ir.PredULT && p <= ir.PredUGE
}

func (c *compiler) instr(v *ir.Value) error {
	args := v.Args()
	if v.Type().Kind() != target.KindVoid && !c.scalar(v.Type()) {
		return errors.Unsupported(errors.PhaseBackend, "value of type "+v.Type().String())
	}
	switch op := v.Op(); op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv:
		if err := c.pushAll(args...); err != nil {
			return err
		}
		c.w.Byte(binaryOps[op])
		c.canon(c.bits(v.Type()))
	case ir.OpUDiv:
		bits := c.bits(v.Type())
		for _, a := range args {
			if err := c.operand(a, true); err != nil {
				return err
			}
		}
		c.w.Byte(wasm.OpI64DivU)
		c.canon(bits)
	case ir.OpNeg:
		c.i64(0)
		if err := c.push(args[0]); err != nil {
			return err
		}
		c.w.Byte(wasm.OpI64Sub)
		c.canon(c.bits(v.Type()))
	case ir.OpICmp:
		p := ir.Pred(v.Aux())
		for _, a := range args {
			if err := c.operand(a, unsignedPred(p)); err != nil {
				return err
			}
		}
		c.w.Byte(compareOps[p], wasm.OpI64ExtendI32U)
	case ir.OpSelect:
		if err := c.pushAll(args[1], args[2], args[0]); err != nil {
			return err
		}
		c.w.Byte(wasm.OpI32WrapI64, wasm.OpSelect)
	case ir.OpMin, ir.OpMax:
		unsigned := v.Aux() != 0
		if err := c.pushAll(args[0], args[1]); err != nil {
			return err
		}
		for _, a := range args {
			if err := c.operand(a, unsigned); err != nil {
				return err
			}
		}
		cmp := map[bool]byte{false: wasm.OpI64LtS, true: wasm.OpI64LtU}[unsigned]
		if op == ir.OpMax {
			cmp = map[bool]byte{false: wasm.OpI64GtS, true: wasm.OpI64GtU}[unsigned]
		}
		c.w.Byte(cmp, wasm.OpSelect)
	case ir.OpTrunc:
		if err := c.push(args[0]); err != nil {
			return err
		}
		c.canon(c.bits(v.Type()))
	case ir.OpSExt:
		if err := c.operand(args[0], false); err != nil {
			return err
		}
	case ir.OpZExt:
		if err := c.operand(args[0], true); err != nil {
			return err
		}
	case ir.OpBitcast:
		if err := c.push(args[0]); err != nil {
			return err
		}
	case ir.OpGEP:
		if err := c.gep(v); err != nil {
			return err
		}
	case ir.OpLoad:
		return c.load(v)
	case ir.OpStore:
		return c.store(args[0], args[1])
	case ir.OpAlloca:
		t := v.SourceElem()
		size, ok := c.tb.SizeOf(t)
		if !ok {
			return errors.Unsupported(errors.PhaseBackend, "stack slot of variable-size type "+t.String())
		}
		off := target.AlignTo(c.base+c.frame, c.tb.AlignOf(t))
		c.frame = off + size - c.base
		c.i64(int64(off))
	case ir.OpMemset:
		for _, a := range args {
			if err := c.push(a); err != nil {
				return err
			}
			c.w.Byte(wasm.OpI32WrapI64)
		}
		c.w.Byte(wasm.OpPrefixMisc)
		c.w.WriteU32(wasm.MiscMemoryFill)
		c.w.Byte(0x00)
		return nil
	default:
		return errors.Unsupported(errors.PhaseBackend, "instruction "+op.String())
	}
	c.set(v)
	return nil
}

func (c *compiler) pushAll(vs ...*ir.Value) error {
	for _, v := range vs {
		if err := c.push(v); err != nil {
			return err
		}
	}
	return nil
}

// gep computes the address as base plus the scaled indexes.
func (c *compiler) gep(v *ir.Value) error {
	args := v.Args()
	if err := c.push(args[0]); err != nil {
		return err
	}
	cur := v.SourceElem()
	for i, ix := range args[1:] {
		if i > 0 {
			switch cur.Kind() {
			case target.KindStruct:
				n, _ := ix.ConstInt()
				c.i64(int64(c.tb.FieldOffset(cur, int(n))))
				c.w.Byte(wasm.OpI64Add)
				cur = cur.Field(int(n))
				continue
			case target.KindArray:
				cur = cur.Elem()
			}
		}
		size, ok := c.tb.SizeOf(cur)
		if !ok {
			return errors.Unsupported(errors.PhaseBackend, "address arithmetic over "+cur.String())
		}
		if err := c.push(ix); err != nil {
			return err
		}
		c.i64(int64(size))
		c.w.Byte(wasm.OpI64Mul, wasm.OpI64Add)
	}
	return nil
}

func (c *compiler) access(t *target.Type) (uint64, error) {
	size, ok := c.tb.SizeOf(t)
	if !ok || !c.scalar(t) || (size != 1 && size != 2 && size != 4 && size != 8) {
		return 0, errors.Unsupported(errors.PhaseBackend, "memory access of type "+t.String())
	}
	return size, nil
}

func (c *compiler) address(ptr *ir.Value) error {
	if err := c.push(ptr); err != nil {
		return err
	}
	c.w.Byte(wasm.OpI32WrapI64)
	return nil
}

func (c *compiler) memarg(op byte) {
	c.w.Byte(op)
	c.w.WriteU32(0) // alignment hint
	c.w.WriteU32(0) // offset
}

var loadOps = map[uint64]byte{1: wasm.OpI64Load8S, 2: wasm.OpI64Load16S, 4: wasm.OpI64Load32S, 8: wasm.OpI64Load}

var storeOps = map[uint64]byte{1: wasm.OpI64Store8, 2: wasm.OpI64Store16, 4: wasm.OpI64Store32, 8: wasm.OpI64Store}

func (c *compiler) load(v *ir.Value) error {
	size, err := c.access(v.Type())
	if err != nil {
		return err
	}
	if err := c.address(v.Args()[0]); err != nil {
		return err
	}
	c.memarg(loadOps[size])
	c.canon(c.bits(v.Type()))
	c.set(v)
	return nil
}

func (c *compiler) store(x, ptr *ir.Value) error {
	size, err := c.access(x.Type())
	if err != nil {
		return err
	}
	if err := c.address(ptr); err != nil {
		return err
	}
	if err := c.push(x); err != nil {
		return err
	}
	c.memarg(storeOps[size])
	return nil
}
