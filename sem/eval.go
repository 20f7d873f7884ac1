package sem

import (
	"github.com/hashicorp/go-set/v3"
)

// StaticValue evaluates e when it does not depend on run-time state.
// Discriminants, objects, and division by zero make it non-static.
func StaticValue(e Expr) (int64, bool) {
	switch e := e.(type) {
	case *IntLit:
		return e.Value, true
	case *EnumLit:
		return e.Pos, true
	case *Attr:
		switch e.Kind {
		case AttrLength:
			lo, hi, ok := e.Prefix.StaticRange()
			if !ok {
				return 0, false
			}
			return max(hi-lo+1, 0), true
		case AttrMin, AttrMax:
			if len(e.Args) != 2 {
				return 0, false
			}
			x, okX := StaticValue(e.Args[0])
			y, okY := StaticValue(e.Args[1])
			if !okX || !okY {
				return 0, false
			}
			if e.Kind == AttrMin {
				return min(x, y), true
			}
			return max(x, y), true
		}
	case *Unary:
		x, ok := StaticValue(e.X)
		if !ok {
			return 0, false
		}
		if e.Op == OpNeg {
			return -x, true
		}
		return x, true
	case *Binary:
		x, okX := StaticValue(e.X)
		y, okY := StaticValue(e.Y)
		if !okX || !okY {
			return 0, false
		}
		switch e.Op {
		case OpAdd:
			return x + y, true
		case OpSub:
			return x - y, true
		case OpMul:
			return x * y, true
		case OpDiv:
			if y == 0 {
				return 0, false
			}
			return x / y, true
		}
	case *Conversion:
		return StaticValue(e.X)
	}
	return 0, false
}

// IsStatic reports whether e has a compile-time value.
func IsStatic(e Expr) bool {
	_, ok := StaticValue(e)
	return ok
}

// Discriminants returns the set of discriminants e refers to, directly or
// through a 'Pos call.
func Discriminants(e Expr) *set.Set[*Discriminant] {
	s := set.New[*Discriminant](0)
	collectDiscriminants(e, s)
	return s
}

// HasDiscriminant reports whether e refers to any discriminant.
func HasDiscriminant(e Expr) bool {
	return Discriminants(e).Size() > 0
}

func collectDiscriminants(e Expr, s *set.Set[*Discriminant]) {
	switch e := e.(type) {
	case *DiscRef:
		s.Insert(e.Disc)
	case *PosCall:
		s.Insert(e.Disc)
	case *Attr:
		for _, a := range e.Args {
			collectDiscriminants(a, s)
		}
	case *Unary:
		collectDiscriminants(e.X, s)
	case *Binary:
		collectDiscriminants(e.X, s)
		collectDiscriminants(e.Y, s)
	case *Conversion:
		collectDiscriminants(e.X, s)
	case *Aggregate:
		for _, x := range e.Elems {
			collectDiscriminants(x, s)
		}
		if e.Others != nil {
			collectDiscriminants(e.Others, s)
		}
	}
}

// IsConstantAggregate reports whether every leaf of a (possibly nested)
// aggregate is static. Float leaves count as static.
func IsConstantAggregate(a *Aggregate) bool {
	if a.Others != nil && len(a.Elems) == 0 {
		return isConstantLeaf(a.Others)
	}
	for _, x := range a.Elems {
		if !isConstantLeaf(x) {
			return false
		}
	}
	return a.Others == nil || isConstantLeaf(a.Others)
}

func isConstantLeaf(e Expr) bool {
	switch e := e.(type) {
	case *Aggregate:
		return IsConstantAggregate(e)
	case *RealLit:
		return true
	}
	return IsStatic(e)
}

// StaticExtreme returns the least (wantLow) or greatest value e can take,
// replacing each discriminant by the bound of its subtype. It fails when
// any leaf is dynamic.
func StaticExtreme(e Expr, wantLow bool) (int64, bool) {
	switch e := e.(type) {
	case *DiscRef:
		return typeExtreme(e.Disc.Type, wantLow)
	case *PosCall:
		return typeExtreme(e.Disc.Type, wantLow)
	case *Unary:
		if e.Op == OpNeg {
			v, ok := StaticExtreme(e.X, !wantLow)
			return -v, ok
		}
		return StaticExtreme(e.X, wantLow)
	case *Binary:
		switch e.Op {
		case OpAdd:
			x, okX := StaticExtreme(e.X, wantLow)
			y, okY := StaticExtreme(e.Y, wantLow)
			return x + y, okX && okY
		case OpSub:
			x, okX := StaticExtreme(e.X, wantLow)
			y, okY := StaticExtreme(e.Y, !wantLow)
			return x - y, okX && okY
		}
	case *Conversion:
		return StaticExtreme(e.X, wantLow)
	}
	return StaticValue(e)
}

func typeExtreme(t *Type, wantLow bool) (int64, bool) {
	if wantLow {
		return StaticValue(t.Low)
	}
	return StaticValue(t.High)
}
