package bounds

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/go-set/v3"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/shape"
	"github.com/Lucretia/gnat-llvm/target"
)

// NodeOp is the operator of an annotation node.
type NodeOp uint8

const (
	NConst NodeOp = iota
	NDisc
	NObject
	NBound
	NSize
	NUndef
	NAdd
	NSub
	NMul
	NUDiv
	NSDiv
	NNeg
	NCmp
	NSelect
	NMin
	NMax
	NConvert
)

var binaryOps = map[NodeOp]ir.Op{
	NAdd:  ir.OpAdd,
	NSub:  ir.OpSub,
	NMul:  ir.OpMul,
	NUDiv: ir.OpUDiv,
	NSDiv: ir.OpSDiv,
}

var opSymbols = map[NodeOp]string{
	NAdd:  "+",
	NSub:  "-",
	NMul:  "*",
	NUDiv: "/",
	NSDiv: "/",
}

var predSymbols = [...]string{
	ir.PredEQ:  "=",
	ir.PredNE:  "/=",
	ir.PredULT: "<",
	ir.PredULE: "<=",
	ir.PredUGT: ">",
	ir.PredUGE: ">=",
	ir.PredSLT: "<",
	ir.PredSLE: "<=",
	ir.PredSGT: ">",
	ir.PredSGE: ">=",
}

// Node is a symbolic size or bound expression in terms of discriminants.
// Nodes are immutable and constant subtrees are always folded.
type Node struct {
	Type     *target.Type
	Disc     *sem.Discriminant
	Size     *target.Type
	Name     string
	Args     []*Node
	Val      int64
	Slot     int
	Op       NodeOp
	Pred     ir.Pred
	Unsigned bool
	Signed   bool
}

// IsConst reports whether n folded to a constant.
func (n *Node) IsConst() bool { return n.Op == NConst }

func (n *Node) String() string {
	switch n.Op {
	case NConst:
		return strconv.FormatInt(n.Val, 10)
	case NDisc:
		return "#" + n.Disc.Name
	case NObject:
		return n.Name
	case NBound:
		return fmt.Sprintf("bound(%d)", n.Slot)
	case NSize:
		return fmt.Sprintf("size(%s)", n.Size)
	case NUndef:
		return "undef"
	case NNeg:
		return "-" + n.Args[0].String()
	case NCmp:
		return fmt.Sprintf("(%s %s %s)", n.Args[0], predSymbols[n.Pred], n.Args[1])
	case NSelect:
		return fmt.Sprintf("(if %s then %s else %s)", n.Args[0], n.Args[1], n.Args[2])
	case NMin:
		return fmt.Sprintf("min(%s, %s)", n.Args[0], n.Args[1])
	case NMax:
		return fmt.Sprintf("max(%s, %s)", n.Args[0], n.Args[1])
	case NConvert:
		return n.Args[0].String()
	}
	return fmt.Sprintf("(%s %s %s)", n.Args[0], opSymbols[n.Op], n.Args[1])
}

// Discriminants returns the discriminants n depends on.
func (n *Node) Discriminants() *set.Set[*sem.Discriminant] {
	s := set.New[*sem.Discriminant](0)
	var walk func(*Node)
	walk = func(n *Node) {
		if n.Op == NDisc {
			s.Insert(n.Disc)
		}
		for _, a := range n.Args {
			walk(a)
		}
	}
	walk(n)
	return s
}

// Eval computes n for the given discriminant values.
func (n *Node) Eval(discs map[*sem.Discriminant]int64) (int64, error) {
	bits := n.Type.Bits()
	switch n.Op {
	case NConst:
		return n.Val, nil
	case NDisc:
		v, ok := discs[n.Disc]
		if !ok {
			rec := ""
			if n.Disc.Record != nil {
				rec = n.Disc.Record.Name
			}
			return 0, errors.MissingDiscriminant(errors.PhaseBounds, rec, n.Disc.Name)
		}
		return ir.Canon(v, bits), nil
	case NObject, NBound, NSize, NUndef:
		return 0, errors.Unsupported(errors.PhaseBounds, "evaluating "+n.String())
	}

	args := make([]int64, len(n.Args))
	for i, a := range n.Args {
		v, err := a.Eval(discs)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	switch n.Op {
	case NNeg:
		return ir.Canon(-args[0], bits), nil
	case NCmp:
		if ir.FoldCompare(n.Pred, args[0], args[1], n.Args[0].Type.Bits()) {
			return 1, nil
		}
		return 0, nil
	case NSelect:
		if args[0] != 0 {
			return args[1], nil
		}
		return args[2], nil
	case NMin:
		return ir.FoldMinMax(ir.OpMin, args[0], args[1], bits, n.Unsigned), nil
	case NMax:
		return ir.FoldMinMax(ir.OpMax, args[0], args[1], bits, n.Unsigned), nil
	case NConvert:
		return convertConst(args[0], n.Args[0].Type.Bits(), bits, n.Signed), nil
	}
	r, ok := ir.FoldBinary(binaryOps[n.Op], args[0], args[1], bits)
	if !ok {
		return 0, errors.Overflow(errors.PhaseBounds, nil, n, n.Type.String())
	}
	return r, nil
}

func convertConst(v int64, from, to uint32, signed bool) int64 {
	if from < to {
		v = ir.Extend(v, from, signed)
	}
	return ir.Canon(v, to)
}

// Annot builds symbolic expressions for back-annotation of sizes and
// bounds that depend on discriminants.
type Annot struct {
	tb *target.Builder
}

// NewAnnot returns the algebra over the symbolic domain.
func NewAnnot(reg *gltype.Registry, shapes *shape.Table) *Algebra[*Node, Annot] {
	return newAlgebra[*Node](Annot{tb: reg.Target()}, reg, shapes)
}

func (an Annot) Const(t *target.Type, v int64) *Node {
	return &Node{Op: NConst, Type: t, Val: ir.Canon(v, t.Bits())}
}

func (an Annot) SizeConst(v uint64) *Node   { return an.Const(an.tb.IntPtr(), int64(v)) }
func (an Annot) Undef(t *target.Type) *Node { return &Node{Op: NUndef, Type: t} }

func (an Annot) TypeSize(t *target.Type) *Node {
	if n, ok := an.tb.SizeOf(t); ok {
		return an.SizeConst(n)
	}
	return &Node{Op: NSize, Type: an.tb.IntPtr(), Size: t}
}

func (an Annot) Compare(p ir.Pred, x, y *Node) *Node {
	if x.IsConst() && y.IsConst() {
		r := int64(0)
		if ir.FoldCompare(p, x.Val, y.Val, x.Type.Bits()) {
			r = 1
		}
		return an.Const(an.tb.Bool(), r)
	}
	return &Node{Op: NCmp, Type: an.tb.Bool(), Pred: p, Args: []*Node{x, y}}
}

func (an Annot) binary(op NodeOp, x, y *Node) *Node {
	if x.IsConst() && y.IsConst() {
		if r, ok := ir.FoldBinary(binaryOps[op], x.Val, y.Val, x.Type.Bits()); ok {
			return an.Const(x.Type, r)
		}
	}
	isConst := func(n *Node, v int64) bool { return n.IsConst() && n.Val == v }
	switch {
	case (op == NAdd || op == NSub) && isConst(y, 0):
		return x
	case op == NAdd && isConst(x, 0):
		return y
	case (op == NMul || op == NUDiv || op == NSDiv) && isConst(y, 1):
		return x
	case op == NMul && isConst(x, 1):
		return y
	case op == NMul && (isConst(x, 0) || isConst(y, 0)):
		return an.Const(x.Type, 0)
	}
	return &Node{Op: op, Type: x.Type, Args: []*Node{x, y}}
}

func (an Annot) Add(x, y *Node) *Node  { return an.binary(NAdd, x, y) }
func (an Annot) Sub(x, y *Node) *Node  { return an.binary(NSub, x, y) }
func (an Annot) Mul(x, y *Node) *Node  { return an.binary(NMul, x, y) }
func (an Annot) UDiv(x, y *Node) *Node { return an.binary(NUDiv, x, y) }
func (an Annot) SDiv(x, y *Node) *Node { return an.binary(NSDiv, x, y) }

func (an Annot) Neg(x *Node) *Node {
	if x.IsConst() {
		return an.Const(x.Type, -x.Val)
	}
	return &Node{Op: NNeg, Type: x.Type, Args: []*Node{x}}
}

func (an Annot) Select(cond, x, y *Node) *Node {
	if cond.IsConst() {
		if cond.Val != 0 {
			return x
		}
		return y
	}
	if x.IsConst() && y.IsConst() && x.Val == y.Val {
		return x
	}
	return &Node{Op: NSelect, Type: x.Type, Args: []*Node{cond, x, y}}
}

func (an Annot) minmax(op NodeOp, x, y *Node, unsigned bool) *Node {
	if x.IsConst() && y.IsConst() {
		irop := ir.OpMin
		if op == NMax {
			irop = ir.OpMax
		}
		return an.Const(x.Type, ir.FoldMinMax(irop, x.Val, y.Val, x.Type.Bits(), unsigned))
	}
	return &Node{Op: op, Type: x.Type, Unsigned: unsigned, Args: []*Node{x, y}}
}

func (an Annot) Min(x, y *Node, unsigned bool) *Node { return an.minmax(NMin, x, y, unsigned) }
func (an Annot) Max(x, y *Node, unsigned bool) *Node { return an.minmax(NMax, x, y, unsigned) }

func (an Annot) Convert(v *Node, t *target.Type, signed bool) *Node {
	from := v.Type.Bits()
	switch {
	case v.IsConst():
		return an.Const(t, convertConst(v.Val, from, t.Bits(), signed))
	case from == t.Bits():
		return v
	}
	return &Node{Op: NConvert, Type: t, Signed: signed, Args: []*Node{v}}
}

func (an Annot) ExtractBound(_ *Node, slot int, t *target.Type) *Node {
	return &Node{Op: NBound, Type: t, Slot: slot}
}

func (an Annot) Leaf(e sem.Expr, t *target.Type) (*Node, error) {
	switch e := e.(type) {
	case *sem.DiscRef:
		return &Node{Op: NDisc, Type: t, Disc: e.Disc}, nil
	case *sem.PosCall:
		return &Node{Op: NDisc, Type: t, Disc: e.Disc}, nil
	case *sem.ObjRef:
		return &Node{Op: NObject, Type: t, Name: e.Name}, nil
	}
	return nil, errors.Internal(errors.PhaseBounds, "%s is not a leaf", e)
}

func (an Annot) IsConst(v *Node) bool             { return v.IsConst() }
func (an Annot) ConstValue(v *Node) (int64, bool) { return v.Val, v.IsConst() }
func (an Annot) TypeOf(v *Node) *target.Type      { return v.Type }
