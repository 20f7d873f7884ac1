package sem

import (
	"fmt"
	"strings"
)

// Expr is a read-only node of a checked expression tree. Nodes are created
// by the front end (or the unit loader) and never mutated afterwards.
type Expr interface {
	// Type is the source type of the expression, nil for universal integers.
	Type() *Type
	String() string
	exprNode()
}

// AttrKind names the attributes that may appear in bound expressions.
type AttrKind uint8

const (
	// AttrLength is Prefix'Range_Length for a scalar prefix.
	AttrLength AttrKind = iota
	AttrMin
	AttrMax
)

var attrNames = [...]string{AttrLength: "Range_Length", AttrMin: "Min", AttrMax: "Max"}

func (a AttrKind) String() string {
	if int(a) < len(attrNames) {
		return attrNames[a]
	}
	return "?"
}

type UnaryOp uint8

const (
	OpNeg UnaryOp = iota
	OpPlus
)

type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
)

var binaryNames = [...]string{OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/"}

func (o BinaryOp) String() string {
	if int(o) < len(binaryNames) {
		return binaryNames[o]
	}
	return "?"
}

// IntLit is an integer literal.
type IntLit struct {
	Typ   *Type
	Value int64
}

// RealLit is a floating-point literal. It only appears as a fill value.
type RealLit struct {
	Typ   *Type
	Value float64
}

// EnumLit is an enumeration literal, carried with its position.
type EnumLit struct {
	Typ  *Type
	Name string
	Pos  int64
}

// DiscRef names a discriminant of the enclosing record.
type DiscRef struct {
	Disc *Discriminant
}

// ObjRef names a run-time object (a variable or parameter). Only the
// concrete evaluator can give it a value.
type ObjRef struct {
	Typ  *Type
	Name string
}

// Attr is an attribute reference. AttrLength uses Prefix; AttrMin and
// AttrMax use Args.
type Attr struct {
	Prefix *Type
	Typ    *Type
	Args   []Expr
	Kind   AttrKind
}

// PosCall is Disc_Type'Pos (Disc): the position of a discriminant value of
// an enumeration type.
type PosCall struct {
	Typ  *Type
	Disc *Discriminant
}

type Unary struct {
	X  Expr
	Op UnaryOp
}

type Binary struct {
	X   Expr
	Y   Expr
	Typ *Type
	Op  BinaryOp
}

// Conversion is an explicit type conversion To (X).
type Conversion struct {
	To *Type
	X  Expr
}

// Aggregate is an array aggregate. Elems holds one expression per position
// of the first dimension; for multidimensional arrays each element is
// itself an Aggregate. A nil Elems with Others set is a uniform fill.
type Aggregate struct {
	Typ    *Type
	Others Expr
	Elems  []Expr
}

func (e *IntLit) Type() *Type     { return e.Typ }
func (e *RealLit) Type() *Type    { return e.Typ }
func (e *EnumLit) Type() *Type    { return e.Typ }
func (e *DiscRef) Type() *Type    { return e.Disc.Type }
func (e *ObjRef) Type() *Type     { return e.Typ }
func (e *Attr) Type() *Type       { return e.Typ }
func (e *PosCall) Type() *Type    { return e.Typ }
func (e *Unary) Type() *Type      { return e.X.Type() }
func (e *Binary) Type() *Type     { return e.Typ }
func (e *Conversion) Type() *Type { return e.To }
func (e *Aggregate) Type() *Type  { return e.Typ }

func (*IntLit) exprNode()     {}
func (*RealLit) exprNode()    {}
func (*EnumLit) exprNode()    {}
func (*DiscRef) exprNode()    {}
func (*ObjRef) exprNode()     {}
func (*Attr) exprNode()       {}
func (*PosCall) exprNode()    {}
func (*Unary) exprNode()      {}
func (*Binary) exprNode()     {}
func (*Conversion) exprNode() {}
func (*Aggregate) exprNode()  {}

func (e *IntLit) String() string  { return fmt.Sprint(e.Value) }
func (e *RealLit) String() string { return fmt.Sprint(e.Value) }
func (e *EnumLit) String() string { return e.Name }
func (e *DiscRef) String() string { return e.Disc.Name }
func (e *ObjRef) String() string  { return e.Name }

func (e *Attr) String() string {
	if e.Kind == AttrLength {
		return e.Prefix.Name + "'" + e.Kind.String()
	}
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s'%s (%s)", typeName(e.Typ), e.Kind, strings.Join(args, ", "))
}

func (e *PosCall) String() string {
	return fmt.Sprintf("%s'Pos (%s)", e.Disc.Type.Name, e.Disc.Name)
}

func (e *Unary) String() string {
	if e.Op == OpNeg {
		return "-" + e.X.String()
	}
	return "+" + e.X.String()
}

func (e *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", e.X, e.Op, e.Y)
}

func (e *Conversion) String() string {
	return fmt.Sprintf("%s (%s)", e.To.Name, e.X)
}

func (e *Aggregate) String() string {
	parts := make([]string, 0, len(e.Elems)+1)
	for _, x := range e.Elems {
		parts = append(parts, x.String())
	}
	if e.Others != nil {
		parts = append(parts, "others => "+e.Others.String())
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func typeName(t *Type) string {
	if t == nil {
		return "universal_integer"
	}
	return t.Name
}

// Int returns an integer literal of type t.
func Int(t *Type, v int64) *IntLit { return &IntLit{Typ: t, Value: v} }

// Disc returns a reference to d.
func Disc(d *Discriminant) *DiscRef { return &DiscRef{Disc: d} }

// Add returns x + y typed as x.
func Add(x, y Expr) *Binary { return &Binary{Op: OpAdd, X: x, Y: y, Typ: x.Type()} }

// Sub returns x - y typed as x.
func Sub(x, y Expr) *Binary { return &Binary{Op: OpSub, X: x, Y: y, Typ: x.Type()} }

// Mul returns x * y typed as x.
func Mul(x, y Expr) *Binary { return &Binary{Op: OpMul, X: x, Y: y, Typ: x.Type()} }

// Div returns x / y typed as x.
func Div(x, y Expr) *Binary { return &Binary{Op: OpDiv, X: x, Y: y, Typ: x.Type()} }

// Neg returns -x.
func Neg(x Expr) *Unary { return &Unary{Op: OpNeg, X: x} }
