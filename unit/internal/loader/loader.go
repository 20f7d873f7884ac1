// Package loader reads unit descriptions: CUE documents declaring the
// source types of a compilation unit together with the representation
// requests and array literals made against them.
package loader

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"golang.org/x/text/cases"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/sem"
)

//go:embed schema.cue
var schemaSource string

// Literal is a named array aggregate.
type Literal struct {
	Value *sem.Aggregate
	Name  string
	Pos   sem.Pos
}

// Unit is a decoded unit description.
type Unit struct {
	Model    *sem.Model
	File     string
	Requests []gltype.Request
	Literals []Literal
}

// Load reads and decodes the unit description at path.
func Load(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("reading unit description "+path, err)
	}
	return Parse(path, data)
}

// Parse decodes a unit description. Every problem found is reported in
// one *errors.LoadIssuesError.
func Parse(file string, data []byte) (*Unit, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, errors.Internal(errors.PhaseLoad, "unit schema: %v", err)
	}
	src := ctx.CompileBytes(data, cue.Filename(file))
	if err := src.Err(); err != nil {
		return nil, issuesFrom(file, err)
	}
	v := src.Unify(schema.LookupPath(cue.ParsePath("#Unit")))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, issuesFrom(file, err)
	}

	d := newDecoder(file, src)
	u := d.decode(v)
	if len(d.issues) > 0 {
		return nil, errors.NewLoadIssuesError(file, d.issues)
	}
	return u, nil
}

func issuesFrom(file string, err error) error {
	var issues []string
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		where := strings.Join(e.Path(), ".")
		if where == "" {
			if p := e.Position(); p.IsValid() {
				where = fmt.Sprintf("%d:%d", p.Line(), p.Column())
			}
		}
		issues = append(issues, where+": "+fmt.Sprintf(format, args...))
	}
	return errors.NewLoadIssuesError(file, issues)
}

var folder = cases.Fold()

func fold(name string) string { return folder.String(name) }

type spec struct {
	value cue.Value
	label string
}

type pendingAccess struct {
	t          *sem.Type
	designated string
	where      string
}

type decoder struct {
	src      cue.Value
	specs    map[string]spec
	types    map[string]*sem.Type
	active   map[string]bool
	discs    map[string][]*sem.Discriminant
	file     string
	issues   []string
	order    []string
	pending  []pendingAccess
	requests []gltype.Request
}

func newDecoder(file string, src cue.Value) *decoder {
	return &decoder{
		src:    src,
		file:   file,
		specs:  make(map[string]spec),
		types:  make(map[string]*sem.Type),
		active: make(map[string]bool),
		discs:  make(map[string][]*sem.Discriminant),
	}
}

func (d *decoder) issue(where, format string, args ...any) {
	d.issues = append(d.issues, where+": "+fmt.Sprintf(format, args...))
}

// pos locates v in the description itself rather than in the schema.
func (d *decoder) pos(v cue.Value) sem.Pos {
	p := d.src.LookupPath(v.Path()).Pos()
	if !p.IsValid() {
		return sem.Pos{}
	}
	return sem.Pos{File: d.file, Line: p.Line(), Col: p.Column()}
}

func field(v cue.Value, name string) cue.Value {
	return v.LookupPath(cue.ParsePath(name))
}

func str(v cue.Value, name string) string {
	s, _ := field(v, name).String()
	return s
}

func flag(v cue.Value, name string) bool {
	b, _ := field(v, name).Bool()
	return b
}

func (d *decoder) integer(v cue.Value, name, where string) (int64, bool) {
	f := field(v, name)
	if !f.Exists() {
		return 0, false
	}
	x, err := f.Int64()
	if err != nil {
		d.issue(where+"."+name, "%v", err)
		return 0, false
	}
	return x, true
}

func (d *decoder) decode(v cue.Value) *Unit {
	m := sem.NewModel(str(v, "unit"))
	it, err := field(v, "types").Fields()
	if err != nil {
		d.issue("types", "%v", err)
		return nil
	}
	for it.Next() {
		label := it.Label()
		key := fold(label)
		if prev, dup := d.specs[key]; dup {
			d.issue("types."+label, "redeclares %s (names ignore case)", prev.label)
			continue
		}
		d.specs[key] = spec{value: it.Value(), label: label}
		d.order = append(d.order, key)
	}

	// Discriminants exist before any type so that array bounds can name
	// them ahead of their record.
	for _, key := range d.order {
		if s := d.specs[key]; str(s.value, "kind") == "record" {
			d.discriminants(s.label, s.value)
		}
	}
	for _, key := range d.order {
		d.resolve(d.specs[key].label, "types")
	}
	for _, p := range d.pending {
		p.t.Designated = d.resolve(p.designated, p.where)
	}
	for _, key := range d.order {
		if t := d.types[key]; t != nil {
			if err := m.Add(t); err != nil {
				d.issue("types."+t.Name, "%v", err)
			}
		}
	}

	u := &Unit{Model: m, File: d.file}
	d.decodeRequests(field(v, "requests"))
	u.Requests = d.requests
	u.Literals = d.decodeLiterals(field(v, "literals"))
	return u
}

// resolve returns the type declared as name, building it on first use.
// Failures are recorded once and yield nil.
func (d *decoder) resolve(name, where string) *sem.Type {
	key := fold(name)
	if t, done := d.types[key]; done {
		return t
	}
	s, ok := d.specs[key]
	if !ok {
		d.issue(where, "unknown type %q", name)
		return nil
	}
	if d.active[key] {
		d.issue("types."+s.label, "depends on itself")
		return nil
	}
	d.active[key] = true
	t := d.build(s.label, s.value)
	delete(d.active, key)
	d.types[key] = t
	return t
}

func (d *decoder) build(label string, v cue.Value) *sem.Type {
	where := "types." + label
	var t *sem.Type
	switch kind := str(v, "kind"); kind {
	case "signed", "fixed":
		lo, _ := d.integer(v, "low", where)
		hi, _ := d.integer(v, "high", where)
		if kind == "signed" {
			t = sem.NewSigned(label, lo, hi)
		} else {
			t = sem.NewFixed(label, lo, hi)
		}
	case "modular":
		n, _ := d.integer(v, "modulus", where)
		t = sem.NewModular(label, uint64(n))
	case "enum":
		t = d.enum(label, v, where)
	case "float":
		bits, _ := d.integer(v, "bits", where)
		t = sem.NewFloat(label, uint32(bits))
	case "subtype":
		t = d.subtype(label, v, where)
	case "record":
		t = d.record(label, v, where)
	case "array":
		t = d.array(label, v, where)
	case "access":
		t = sem.NewAccess(label, nil)
		d.pending = append(d.pending, pendingAccess{t: t, designated: str(v, "designated"), where: where + ".designated"})
	default:
		d.issue(where+".kind", "unknown kind %q", kind)
	}
	if t == nil {
		return nil
	}
	t.Decl = d.pos(v)
	d.clauses(t, v, where)
	return t
}

func (d *decoder) clauses(t *sem.Type, v cue.Value, where string) {
	if size, ok := d.integer(v, "size", where); ok {
		p := d.pos(field(v, "size"))
		t.SizeClause = &p
		t.RMSize = uint64(size)
	}
	if align, ok := d.integer(v, "alignment", where); ok {
		if align&(align-1) != 0 {
			d.issue(where+".alignment", "%d is not a power of two", align)
		}
		t.Alignment = uint64(align)
	}
	t.FullAccess = flag(v, "full_access")
}

func (d *decoder) enum(label string, v cue.Value, where string) *sem.Type {
	it, err := field(v, "literals").List()
	if err != nil {
		d.issue(where+".literals", "%v", err)
		return nil
	}
	var lits []string
	seen := make(map[string]bool)
	for it.Next() {
		s, _ := it.Value().String()
		if seen[fold(s)] {
			d.issue(where+".literals", "literal %s appears twice", s)
			continue
		}
		seen[fold(s)] = true
		lits = append(lits, s)
	}
	return sem.NewEnum(label, lits...)
}

func (d *decoder) subtype(label string, v cue.Value, where string) *sem.Type {
	base := d.resolve(str(v, "base"), where+".base")
	if base == nil {
		return nil
	}
	if !base.IsDiscrete() && base.Kind != sem.KindFixed {
		d.issue(where+".base", "%s is not a scalar type", base.Name)
		return nil
	}
	lo := d.bound(field(v, "low"), base, where+".low")
	hi := d.bound(field(v, "high"), base, where+".high")
	if lo == nil || hi == nil {
		return nil
	}
	return sem.Subtype(label, base, lo, hi)
}

func (d *decoder) discriminants(label string, v cue.Value) {
	where := "types." + label + ".discriminants"
	it, err := field(v, "discriminants").List()
	if err != nil {
		d.issue(where, "%v", err)
		return
	}
	var discs []*sem.Discriminant
	for i := 0; it.Next(); i++ {
		dv := it.Value()
		dw := fmt.Sprintf("%s[%d]", where, i)
		dt := d.resolve(str(dv, "type"), dw+".type")
		if dt == nil {
			continue
		}
		if !dt.IsDiscrete() {
			d.issue(dw+".type", "%s is not a discrete type", dt.Name)
			continue
		}
		disc := &sem.Discriminant{Name: str(dv, "name"), Type: dt}
		if def := field(dv, "default"); def.Exists() {
			disc.Default = d.bound(def, dt, dw+".default")
		}
		discs = append(discs, disc)
	}
	d.discs[fold(label)] = discs
}

func (d *decoder) record(label string, v cue.Value, where string) *sem.Type {
	discs := d.discs[fold(label)]
	names := make(map[string]bool)
	for _, disc := range discs {
		if names[fold(disc.Name)] {
			d.issue(where+".discriminants", "%s declared twice", disc.Name)
		}
		names[fold(disc.Name)] = true
	}

	it, err := field(v, "components").List()
	if err != nil {
		d.issue(where+".components", "%v", err)
		return nil
	}
	var comps []*sem.Component
	ok := true
	for i := 0; it.Next(); i++ {
		cv := it.Value()
		cw := fmt.Sprintf("%s.components[%d]", where, i)
		name := str(cv, "name")
		if names[fold(name)] {
			d.issue(cw+".name", "%s declared twice", name)
		}
		names[fold(name)] = true
		ct := d.resolve(str(cv, "type"), cw+".type")
		if ct == nil {
			ok = false
			continue
		}
		c := &sem.Component{Type: ct, Entity: sem.Entity{
			Name:         label + "." + name,
			Decl:         d.pos(cv),
			Kind:         sem.EntityComponent,
			UserDeclared: true,
			InUnit:       true,
		}}
		if size, has := d.integer(cv, "size", cw); has {
			p := d.pos(field(cv, "size"))
			c.ComponentClause = &p
			d.requests = append(d.requests, gltype.Request{
				Source:       ct,
				Entity:       &c.Entity,
				Size:         uint64(size),
				ForComponent: true,
			})
		}
		comps = append(comps, c)
	}
	if !ok {
		return nil
	}
	return sem.NewRecord(label, discs, comps...)
}

func (d *decoder) array(label string, v cue.Value, where string) *sem.Type {
	comp := d.resolve(str(v, "component"), where+".component")
	it, err := field(v, "index").List()
	if err != nil {
		d.issue(where+".index", "%v", err)
		return nil
	}
	var index []*sem.Type
	ok := comp != nil
	for i := 0; it.Next(); i++ {
		name, _ := it.Value().String()
		iw := fmt.Sprintf("%s.index[%d]", where, i)
		x := d.resolve(name, iw)
		switch {
		case x == nil:
			ok = false
		case !x.IsDiscrete():
			d.issue(iw, "%s is not a discrete type", x.Name)
			ok = false
		}
		index = append(index, x)
	}
	if !ok {
		return nil
	}

	var t *sem.Type
	if bv := field(v, "bounds"); bv.Exists() {
		ranges, ok := d.ranges(bv, index, where+".bounds")
		if !ok {
			return nil
		}
		t = sem.NewConstrainedArray(label, comp, index, ranges...)
	} else {
		t = sem.NewArray(label, comp, index...)
	}
	t.ColumnMajor = flag(v, "column_major")

	if orig := field(v, "original"); orig.Exists() {
		name, _ := orig.String()
		o := d.resolve(name, where+".original")
		if o == nil {
			return nil
		}
		if !o.IsArray() || o.Dims() != t.Dims() {
			d.issue(where+".original", "%s is not an array of %d dimensions", o.Name, t.Dims())
			return nil
		}
		t.PackedImpl = true
		t.Original = o
	}
	if size, has := d.integer(v, "component_size", where); has {
		p := d.pos(field(v, "component_size"))
		d.requests = append(d.requests, gltype.Request{
			Source: comp,
			Entity: &sem.Entity{
				Name:            label + "'Component_Size",
				Decl:            p,
				ComponentClause: &p,
				Kind:            sem.EntityComponent,
				UserDeclared:    true,
				InUnit:          true,
			},
			Size:         uint64(size),
			ForComponent: true,
		})
	}
	return t
}

func (d *decoder) ranges(v cue.Value, index []*sem.Type, where string) ([]sem.Range, bool) {
	it, err := v.List()
	if err != nil {
		d.issue(where, "%v", err)
		return nil, false
	}
	var out []sem.Range
	ok := true
	for i := 0; it.Next(); i++ {
		rw := fmt.Sprintf("%s[%d]", where, i)
		if i >= len(index) {
			d.issue(rw, "more ranges than index types")
			return nil, false
		}
		lo := d.bound(field(it.Value(), "low"), index[i], rw+".low")
		hi := d.bound(field(it.Value(), "high"), index[i], rw+".high")
		ok = ok && lo != nil && hi != nil
		out = append(out, sem.Range{Low: lo, High: hi})
	}
	if len(out) != len(index) {
		d.issue(where, "%d ranges for %d index types", len(out), len(index))
		return nil, false
	}
	return out, ok
}

func (d *decoder) lookup(name, where string) *sem.Type {
	t, done := d.types[fold(name)]
	if !done {
		d.issue(where, "unknown type %q", name)
	}
	return t
}

func (d *decoder) decodeRequests(v cue.Value) {
	it, err := v.List()
	if err != nil {
		d.issue("requests", "%v", err)
		return
	}
	for i := 0; it.Next(); i++ {
		rv := it.Value()
		rw := fmt.Sprintf("requests[%d]", i)
		src := d.lookup(str(rv, "type"), rw+".type")
		if src == nil {
			continue
		}
		forComp := str(rv, "for") == "component"
		ent := &sem.Entity{
			Name:         src.Name,
			Decl:         d.pos(rv),
			Kind:         sem.EntityObject,
			UserDeclared: true,
			InUnit:       !flag(rv, "external"),
		}
		if name := str(rv, "entity"); name != "" {
			ent.Name = name
		}
		if forComp {
			ent.Kind = sem.EntityComponent
		}
		req := gltype.Request{
			Source:       src,
			Entity:       ent,
			ForComponent: forComp,
			Biased:       flag(rv, "biased"),
			MaxSize:      flag(rv, "max_size"),
		}
		if size, ok := d.integer(rv, "size", rw); ok {
			p := d.pos(field(rv, "size"))
			if forComp {
				ent.ComponentClause = &p
			} else {
				ent.SizeClause = &p
			}
			req.Size = uint64(size)
		}
		if align, ok := d.integer(rv, "alignment", rw); ok {
			req.Align = uint64(align)
		}
		if req.Biased && req.Size == 0 {
			d.issue(rw, "a biased request needs a size")
			continue
		}
		d.requests = append(d.requests, req)
	}
}

func (d *decoder) decodeLiterals(v cue.Value) []Literal {
	it, err := v.Fields()
	if err != nil {
		d.issue("literals", "%v", err)
		return nil
	}
	var out []Literal
	for it.Next() {
		label := it.Label()
		lv := it.Value()
		lw := "literals." + label
		arr := d.lookup(str(lv, "type"), lw+".type")
		if arr == nil {
			continue
		}
		if !arr.IsArray() {
			d.issue(lw+".type", "%s is not an array type", arr.Name)
			continue
		}
		agg := d.aggregate(field(lv, "value"), arr, arr.Dims(), lw+".value")
		if agg == nil {
			continue
		}
		agg.Typ = arr
		out = append(out, Literal{Name: label, Value: agg, Pos: d.pos(lv)})
	}
	return out
}

// aggregate decodes a positional list or an {elems, others} struct. The
// elements of all but the last dimension are themselves aggregates, or a
// scalar filling the rest of the array.
func (d *decoder) aggregate(v cue.Value, arr *sem.Type, dims int, where string) *sem.Aggregate {
	agg := &sem.Aggregate{}
	elems := v
	switch v.Kind() {
	case cue.ListKind:
	case cue.StructKind:
		elems = field(v, "elems")
		if others := field(v, "others"); others.Exists() {
			agg.Others = d.element(others, arr, dims, where+".others")
		}
	default:
		d.issue(where, "an aggregate is a list or {elems, others}")
		return nil
	}
	if elems.Exists() {
		it, err := elems.List()
		if err != nil {
			d.issue(where, "%v", err)
			return nil
		}
		for i := 0; it.Next(); i++ {
			x := d.element(it.Value(), arr, dims, fmt.Sprintf("%s[%d]", where, i))
			if x == nil {
				return nil
			}
			agg.Elems = append(agg.Elems, x)
		}
	}
	if len(agg.Elems) == 0 && agg.Others == nil {
		d.issue(where, "empty aggregate")
		return nil
	}
	return agg
}

func (d *decoder) element(v cue.Value, arr *sem.Type, dims int, where string) sem.Expr {
	if k := v.Kind(); dims > 1 && (k == cue.ListKind || k == cue.StructKind) {
		if agg := d.aggregate(v, arr, dims-1, where); agg != nil {
			return agg
		}
		return nil
	}
	comp := arr.Component
	switch v.Kind() {
	case cue.IntKind:
		x, err := v.Int64()
		if err != nil {
			d.issue(where, "%v", err)
			return nil
		}
		return sem.Int(comp, x)
	case cue.FloatKind:
		x, err := v.Float64()
		if err != nil {
			d.issue(where, "%v", err)
			return nil
		}
		return &sem.RealLit{Typ: comp, Value: x}
	case cue.StringKind:
		s, _ := v.String()
		return d.parseExpr(s, comp, where)
	}
	d.issue(where, "element must be a number or an expression")
	return nil
}
