package gltype

import (
	"iter"

	"go.uber.org/zap"

	"github.com/Lucretia/gnat-llvm/diag"
	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/target"
)

// GLType is a handle to one alternate in a Registry. The zero value None
// means "no alternate".
type GLType uint32

// None is the absent handle.
const None GLType = 0

// Present reports whether gt names an alternate.
func (gt GLType) Present() bool { return gt != None }

type entry struct {
	src       *sem.Type
	phys      *target.Type
	size      uint64 // bits
	align     uint64 // bytes
	bias      int64
	next      GLType
	kind      Kind
	hasSize   bool
	hasAlign  bool
	hasBias   bool
	maxSize   bool
	isDefault bool
}

// Registry is the append-only table of alternates for one compilation unit.
// Entry 0 is a zero sentinel so that accessors on None read harmless zero
// values. Not safe for concurrent use.
type Registry struct {
	heads   map[*sem.Type]GLType
	tb      *target.Builder
	sink    diag.Sink
	log     *zap.Logger
	entries []entry
	policy  Policy
}

// Option configures a Registry.
type Option func(*Registry)

// WithSink sets the diagnostics sink. The default discards.
func WithSink(s diag.Sink) Option {
	return func(r *Registry) { r.sink = s }
}

// WithPolicy overrides the default matching policy.
func WithPolicy(p Policy) Option {
	return func(r *Registry) { r.policy = p }
}

// WithLogger sets the logger used for creation traces.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// NewRegistry creates an empty registry building physical types with tb.
func NewRegistry(tb *target.Builder, opts ...Option) *Registry {
	r := &Registry{
		heads:   make(map[*sem.Type]GLType),
		tb:      tb,
		sink:    diag.Discard{},
		log:     Logger(),
		entries: make([]entry, 1, 64),
		policy:  DefaultPolicy(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Target returns the physical type builder.
func (r *Registry) Target() *target.Builder { return r.tb }

// Policy returns the matching policy in force.
func (r *Registry) Policy() Policy { return r.policy }

// Len returns the number of alternates created so far.
func (r *Registry) Len() int { return len(r.entries) - 1 }

func (r *Registry) at(gt GLType) *entry {
	return &r.entries[gt]
}

// push appends an entry at the head of its source type's chain.
func (r *Registry) push(e entry) GLType {
	e.next = r.heads[e.src]
	r.entries = append(r.entries, e)
	gt := GLType(len(r.entries) - 1)
	r.heads[e.src] = gt
	return gt
}

// NewUnset appends an unclassified entry for src, links it as the head of
// the chain, and makes it the default.
func (r *Registry) NewUnset(src *sem.Type) GLType {
	gt := r.push(entry{src: src, kind: KindUnset})
	r.MarkDefault(gt)
	return gt
}

// SetPrimitive classifies an unset entry as the primitive alternate with
// physical type phys, or as a Dummy placeholder when dummy is set. Size and
// alignment are taken from phys when it has a native layout.
func (r *Registry) SetPrimitive(gt GLType, phys *target.Type, dummy bool) error {
	e := r.at(gt)
	if gt == None || e.kind != KindUnset {
		return errors.Internal(errors.PhaseRegistry, "set primitive on %s alternate of %s", e.kind, e.src)
	}
	if !dummy && r.Primitive(e.src) != None {
		return errors.Internal(errors.PhaseRegistry, "%s already has a primitive alternate", e.src)
	}
	e.phys = phys
	e.kind = KindPrimitive
	if dummy {
		e.kind = KindDummy
	}
	if size, ok := r.tb.SizeInBits(phys); ok {
		e.size, e.hasSize = size, true
	}
	e.align, e.hasAlign = r.tb.AlignOf(phys), true
	r.log.Debug("primitive alternate",
		zap.String("type", e.src.Name),
		zap.Stringer("phys", phys),
		zap.Stringer("kind", e.kind))
	return nil
}

// MarkDefault makes gt the default alternate of its source type.
func (r *Registry) MarkDefault(gt GLType) {
	if gt == None {
		return
	}
	src := r.at(gt).src
	for alt := range r.Alternates(src) {
		r.at(alt).isDefault = alt == gt
	}
}

// Alternates yields every alternate of src, most recently created first.
func (r *Registry) Alternates(src *sem.Type) iter.Seq[GLType] {
	return func(yield func(GLType) bool) {
		for gt := r.heads[src]; gt != None; gt = r.at(gt).next {
			if !yield(gt) {
				return
			}
		}
	}
}

// Primitive returns the primitive alternate of src, or None.
func (r *Registry) Primitive(src *sem.Type) GLType {
	for gt := range r.Alternates(src) {
		if r.at(gt).kind == KindPrimitive {
			return gt
		}
	}
	return None
}

// Default returns the default alternate of src, or None.
func (r *Registry) Default(src *sem.Type) GLType {
	for gt := range r.Alternates(src) {
		if r.at(gt).isDefault {
			return gt
		}
	}
	return None
}

// Each yields every alternate in creation order.
func (r *Registry) Each() iter.Seq[GLType] {
	return func(yield func(GLType) bool) {
		for i := 1; i < len(r.entries); i++ {
			if !yield(GLType(i)) {
				return
			}
		}
	}
}

// Source returns the source type gt represents.
func (r *Registry) Source(gt GLType) *sem.Type { return r.at(gt).src }

// Physical returns the target type of gt.
func (r *Registry) Physical(gt GLType) *target.Type { return r.at(gt).phys }

// Kind returns how gt represents its source type.
func (r *Registry) Kind(gt GLType) Kind { return r.at(gt).kind }

// IsDummy reports a placeholder for a type not yet complete.
func (r *Registry) IsDummy(gt GLType) bool { return r.at(gt).kind == KindDummy }

// IsPrimitive reports the natural representation of the source type.
func (r *Registry) IsPrimitive(gt GLType) bool { return r.at(gt).kind == KindPrimitive }

// IsEmpty reports an alternate created but not yet given a physical type.
func (r *Registry) IsEmpty(gt GLType) bool { return r.at(gt).kind == KindUnset }

// IsMaxSize reports an alternate sized for the largest value of its source type.
func (r *Registry) IsMaxSize(gt GLType) bool { return r.at(gt).maxSize }

// IsDefault reports the alternate used when no request names another.
func (r *Registry) IsDefault(gt GLType) bool { return r.at(gt).isDefault }

// Size returns the size in bits, absent for dynamically sized alternates.
func (r *Registry) Size(gt GLType) (uint64, bool) {
	e := r.at(gt)
	return e.size, e.hasSize
}

// Alignment returns the alignment in bytes.
func (r *Registry) Alignment(gt GLType) (uint64, bool) {
	e := r.at(gt)
	return e.align, e.hasAlign
}

// Bias returns the bias of a Biased alternate.
func (r *Registry) Bias(gt GLType) (int64, bool) {
	e := r.at(gt)
	return e.bias, e.hasBias
}

// IsNative reports whether the physical type of gt has a fixed layout.
func (r *Registry) IsNative(gt GLType) bool {
	phys := r.at(gt).phys
	return phys != nil && r.tb.IsNative(phys)
}
