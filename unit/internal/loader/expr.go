package loader

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/parser"
	"cuelang.org/go/cue/token"

	"github.com/Lucretia/gnat-llvm/sem"
)

// bound decodes a bound given as an integer or as an expression string.
// Literals and object references take the type typ.
func (d *decoder) bound(v cue.Value, typ *sem.Type, where string) sem.Expr {
	switch v.Kind() {
	case cue.IntKind:
		x, err := v.Int64()
		if err != nil {
			d.issue(where, "%v", err)
			return nil
		}
		return sem.Int(typ, x)
	case cue.StringKind:
		s, _ := v.String()
		return d.parseExpr(s, typ, where)
	}
	d.issue(where, "a bound is an integer or an expression")
	return nil
}

// parseExpr reads bound expressions with the CUE expression grammar, which
// covers the arithmetic, selectors and calls they need.
func (d *decoder) parseExpr(src string, typ *sem.Type, where string) sem.Expr {
	x, err := parser.ParseExpr(where, src)
	if err != nil {
		d.issue(where, "%q: %v", src, err)
		return nil
	}
	e, err := d.convert(x, typ, where)
	if err != nil {
		d.issue(where, "%q: %v", src, err)
		return nil
	}
	return e
}

func (d *decoder) convert(x ast.Expr, typ *sem.Type, where string) (sem.Expr, error) {
	switch x := x.(type) {
	case *ast.BasicLit:
		if x.Kind != token.INT {
			return nil, fmt.Errorf("%s is not an integer", x.Value)
		}
		v, err := strconv.ParseInt(strings.ReplaceAll(x.Value, "_", ""), 0, 64)
		if err != nil {
			return nil, err
		}
		return sem.Int(typ, v), nil

	case *ast.Ident:
		return d.name(x.Name, typ), nil

	case *ast.SelectorExpr:
		disc, err := d.discriminant(x)
		if err != nil {
			return nil, err
		}
		return sem.Disc(disc), nil

	case *ast.ParenExpr:
		return d.convert(x.X, typ, where)

	case *ast.UnaryExpr:
		y, err := d.convert(x.X, typ, where)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case token.SUB:
			return sem.Neg(y), nil
		case token.ADD:
			return &sem.Unary{Op: sem.OpPlus, X: y}, nil
		}
		return nil, fmt.Errorf("operator %s not allowed", x.Op)

	case *ast.BinaryExpr:
		l, err := d.convert(x.X, typ, where)
		if err != nil {
			return nil, err
		}
		r, err := d.convert(x.Y, typ, where)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case token.ADD:
			return sem.Add(l, r), nil
		case token.SUB:
			return sem.Sub(l, r), nil
		case token.MUL:
			return sem.Mul(l, r), nil
		case token.QUO:
			return sem.Div(l, r), nil
		}
		return nil, fmt.Errorf("operator %s not allowed", x.Op)

	case *ast.CallExpr:
		return d.call(x, typ, where)
	}
	return nil, fmt.Errorf("unsupported expression")
}

// name resolves an identifier to an enumeration literal of typ or else to
// a run-time object.
func (d *decoder) name(n string, typ *sem.Type) sem.Expr {
	if typ != nil && typ.Kind == sem.KindEnum {
		for i, lit := range typ.Literals {
			if sem.SameName(lit, n) {
				return typ.Literal(int64(i))
			}
		}
	}
	return &sem.ObjRef{Typ: typ, Name: n}
}

// discriminant resolves Rec.D.
func (d *decoder) discriminant(x *ast.SelectorExpr) (*sem.Discriminant, error) {
	rec, ok := x.X.(*ast.Ident)
	sel, okSel := x.Sel.(*ast.Ident)
	if !ok || !okSel {
		return nil, fmt.Errorf("expected Record.Discriminant")
	}
	discs, ok := d.discs[fold(rec.Name)]
	if !ok {
		return nil, fmt.Errorf("%s is not a record with discriminants", rec.Name)
	}
	for _, disc := range discs {
		if sem.SameName(disc.Name, sel.Name) {
			return disc, nil
		}
	}
	return nil, fmt.Errorf("%s has no discriminant %s", rec.Name, sel.Name)
}

func (d *decoder) call(x *ast.CallExpr, typ *sem.Type, where string) (sem.Expr, error) {
	fn, ok := x.Fun.(*ast.Ident)
	if !ok {
		return nil, fmt.Errorf("unsupported call")
	}
	switch name := strings.ToLower(fn.Name); name {
	case "min", "max":
		if len(x.Args) != 2 {
			return nil, fmt.Errorf("%s takes two arguments", name)
		}
		args := make([]sem.Expr, 2)
		for i, a := range x.Args {
			e, err := d.convert(a, typ, where)
			if err != nil {
				return nil, err
			}
			args[i] = e
		}
		kind := sem.AttrMin
		if name == "max" {
			kind = sem.AttrMax
		}
		return &sem.Attr{Kind: kind, Typ: typ, Args: args}, nil

	case "length":
		id, ok := oneIdent(x)
		if !ok {
			return nil, fmt.Errorf("length takes a type name")
		}
		prefix := d.resolve(id.Name, where)
		if prefix == nil {
			return nil, fmt.Errorf("unknown type %s", id.Name)
		}
		if !prefix.IsDiscrete() {
			return nil, fmt.Errorf("length of non-discrete type %s", prefix.Name)
		}
		return &sem.Attr{Kind: sem.AttrLength, Prefix: prefix, Typ: typ}, nil

	case "pos":
		if len(x.Args) != 1 {
			return nil, fmt.Errorf("pos takes one discriminant")
		}
		sel, ok := x.Args[0].(*ast.SelectorExpr)
		if !ok {
			return nil, fmt.Errorf("pos takes Record.Discriminant")
		}
		disc, err := d.discriminant(sel)
		if err != nil {
			return nil, err
		}
		return &sem.PosCall{Typ: typ, Disc: disc}, nil
	}
	return nil, fmt.Errorf("unknown function %s", fn.Name)
}

func oneIdent(x *ast.CallExpr) (*ast.Ident, bool) {
	if len(x.Args) != 1 {
		return nil, false
	}
	id, ok := x.Args[0].(*ast.Ident)
	return id, ok
}
