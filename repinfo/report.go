// Package repinfo builds the representation report of a unit: for every
// type its size and alignment, symbolic in the discriminants when the
// layout depends on them, and the chain of alternates the registry holds.
package repinfo

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Lucretia/gnat-llvm/bounds"
	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/unit"
)

// Report is the back-annotation of one unit.
type Report struct {
	Created     time.Time `json:"-"`
	ID          string    `json:"id"`
	Unit        string    `json:"unit"`
	Types       []Type    `json:"types"`
	Diagnostics []string  `json:"diagnostics,omitempty"`
}

// Type describes one source type. Sizes are in bytes and may name
// discriminants (#D) or the bounds of the object (bound(n)).
type Type struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Size string `json:"size"`
	// MaxSize is set when it differs from Size.
	MaxSize    string      `json:"max_size,omitempty"`
	Bounds     string      `json:"bounds,omitempty"`
	Alignment  uint64      `json:"alignment"`
	Pos        string      `json:"pos,omitempty"`
	Alternates []Alternate `json:"alternates"`
}

// Alternate is one representation of a type, newest first. Size is in
// bits and alignment in bytes; nil means unspecified.
type Alternate struct {
	Kind     string  `json:"kind"`
	Physical string  `json:"physical"`
	Size     *uint64 `json:"size_bits,omitempty"`
	Align    *uint64 `json:"align,omitempty"`
	Bias     *int64  `json:"bias,omitempty"`
	Default  bool    `json:"default,omitempty"`
	MaxSize  bool    `json:"max_size,omitempty"`
}

type annot = bounds.Algebra[*bounds.Node, bounds.Annot]

// Build reports on every type of an elaborated unit.
func Build(c *unit.Context) (*Report, error) {
	if c.Model == nil {
		return nil, errors.InvalidInput(errors.PhaseReport, "unit "+c.ID.String()+" holds no model")
	}
	b := &builder{c: c, an: c.Annot()}
	r := &Report{
		Created: time.Now(),
		ID:      c.ID.String(),
		Unit:    c.Model.Unit,
	}
	for _, t := range c.Model.Types() {
		ty, err := b.typ(t)
		if err != nil {
			return nil, err
		}
		r.Types = append(r.Types, ty)
	}
	if c.Diags != nil {
		for _, d := range c.Diags.Diags {
			r.Diagnostics = append(r.Diagnostics, d.String())
		}
	}
	Logger().Debug("report built",
		zap.String("unit", r.Unit),
		zap.Int("types", len(r.Types)),
		zap.Int("diagnostics", len(r.Diagnostics)))
	return r, nil
}

// Lookup returns the entry of the type named name.
func (r *Report) Lookup(name string) (Type, bool) {
	for _, t := range r.Types {
		if sem.SameName(t.Name, name) {
			return t, true
		}
	}
	return Type{}, false
}

type builder struct {
	c  *unit.Context
	an *annot
}

func (b *builder) typ(t *sem.Type) (Type, error) {
	reg := b.c.Registry
	gt := reg.Default(t)
	if !gt.Present() {
		return Type{}, errors.Internal(errors.PhaseReport, "type %s was never elaborated", t)
	}
	out := Type{Name: t.Name, Kind: t.Kind.String()}
	if t.Decl.IsValid() {
		out.Pos = t.Decl.String()
	}
	if a, ok := reg.Alignment(gt); ok {
		out.Alignment = a
	} else {
		out.Alignment = b.c.Target.AlignOf(reg.Physical(gt))
	}

	size, err := b.size(t, false)
	if err != nil {
		return Type{}, err
	}
	out.Size = size.String()
	if !reg.IsNative(gt) {
		// Not every variable layout has a maximum, e.g. an unconstrained
		// array indexed by a type with no static range.
		if m, err := b.size(t, true); err == nil && m.String() != out.Size {
			out.MaxSize = m.String()
		}
	}
	if t.IsArray() {
		out.Bounds, err = b.bounds(t)
		if err != nil {
			return Type{}, err
		}
	}
	for alt := range reg.Alternates(t) {
		out.Alternates = append(out.Alternates, alternate(reg, alt))
	}
	return out, nil
}

func alternate(reg *gltype.Registry, gt gltype.GLType) Alternate {
	a := Alternate{
		Kind:     reg.Kind(gt).String(),
		Physical: reg.Physical(gt).String(),
		Default:  reg.IsDefault(gt),
		MaxSize:  reg.IsMaxSize(gt),
	}
	if v, ok := reg.Size(gt); ok {
		a.Size = &v
	}
	if v, ok := reg.Alignment(gt); ok {
		a.Align = &v
	}
	if v, ok := reg.Bias(gt); ok {
		a.Bias = &v
	}
	return a
}

// size returns the size in bytes of an object of type t.
func (b *builder) size(t *sem.Type, maxSize bool) (*bounds.Node, error) {
	reg := b.c.Registry
	gt := reg.Default(t)
	phys := reg.Physical(gt)
	switch {
	case reg.IsNative(gt):
		return b.an.D.TypeSize(phys), nil
	case t.IsArray():
		return b.an.ArrayTypeSize(t, b.undef(), maxSize)
	case t.IsRecord():
		return b.record(t, maxSize)
	}
	return nil, errors.Unsupported(errors.PhaseReport, "size of "+t.Kind.String()+" type "+t.Name)
}

// record sums the fields of a record without a fixed layout, discriminants
// first, each at its alignment.
func (b *builder) record(t *sem.Type, maxSize bool) (*bounds.Node, error) {
	d := b.an.D
	off := d.SizeConst(0)
	var align uint64 = 1
	field := func(ft *sem.Type) error {
		gt := b.c.Registry.Default(ft)
		if !gt.Present() {
			return errors.Internal(errors.PhaseReport, "field type %s was never elaborated", ft)
		}
		fa := b.c.Target.AlignOf(b.c.Registry.Physical(gt))
		align = max(align, fa)
		sz, err := b.size(ft, maxSize)
		if err != nil {
			return err
		}
		off = d.Add(b.alignUp(off, fa), sz)
		return nil
	}
	for _, disc := range t.Discriminants {
		if err := field(disc.Type); err != nil {
			return nil, err
		}
	}
	for _, comp := range t.Components {
		if err := field(comp.Type); err != nil {
			return nil, err
		}
	}
	return b.alignUp(off, align), nil
}

func (b *builder) alignUp(x *bounds.Node, a uint64) *bounds.Node {
	if a <= 1 {
		return x
	}
	d := b.an.D
	k := d.SizeConst(a)
	return d.Mul(d.UDiv(d.Add(x, d.SizeConst(a-1)), k), k)
}

func (b *builder) bounds(t *sem.Type) (string, error) {
	dims := make([]string, 0, t.Dims())
	for dim := range t.Dims() {
		lo, err := b.an.ArrayBound(t, dim, true, b.undef(), false, false)
		if err != nil {
			return "", err
		}
		hi, err := b.an.ArrayBound(t, dim, false, b.undef(), false, false)
		if err != nil {
			return "", err
		}
		dims = append(dims, fmt.Sprintf("%s .. %s", lo, hi))
	}
	return strings.Join(dims, ", "), nil
}

func (b *builder) undef() *bounds.Node {
	return b.an.D.Undef(b.c.Target.IntPtr())
}
