package gltype

import (
	"go.uber.org/zap"

	"github.com/Lucretia/gnat-llvm/diag"
	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/target"
)

// Policy holds matching rules that are expected to change.
type Policy struct {
	// NeverShrinkNonInteger makes a non-integer primitive satisfy any
	// request for a size no larger than its own, so that no smaller
	// non-integer representation is ever synthesized. Field-level
	// representation clauses will need it off.
	NeverShrinkNonInteger bool
}

// DefaultPolicy returns the policy used unless configured otherwise.
func DefaultPolicy() Policy {
	return Policy{NeverShrinkNonInteger: true}
}

// Request asks for an alternate of Source with the given properties.
type Request struct {
	Source *sem.Type
	// Entity is the object, component, or type the request is made for,
	// used to attribute diagnostics. Nil means Source itself.
	Entity *sem.Entity
	// Size in bits; 0 means unspecified.
	Size uint64
	// Align in bytes; 0 means unspecified.
	Align uint64
	// ForType makes the result the default alternate of Source.
	ForType bool
	// ForComponent marks requests made for a record or array component.
	ForComponent bool
	MaxSize      bool
	Biased       bool
}

// maxIntAltBits is the widest integer alternate synthesized.
const maxIntAltBits = 64

// key is the (size, alignment) pair a request resolves to and an alternate
// is recorded with.
type key struct {
	size     uint64
	align    uint64
	hasSize  bool
	hasAlign bool
}

func (k key) sameSize(e *entry) bool {
	return k.hasSize == e.hasSize && (!k.hasSize || k.size == e.size)
}

func (k key) sameAlign(e *entry) bool {
	return k.hasAlign == e.hasAlign && (!k.hasAlign || k.align == e.align)
}

// FindOrCreate returns an alternate of req.Source satisfying req, creating
// one if no existing alternate matches.
func (r *Registry) FindOrCreate(req Request) (GLType, error) {
	src := req.Source
	prim := r.Primitive(src)
	if prim == None {
		return None, errors.Internal(errors.PhaseRegistry, "alternate requested for %s before its primitive", src)
	}
	if req.Biased && !src.IsScalarInteger() {
		return None, errors.Internal(errors.PhaseRegistry, "biased alternate of non-integer type %s", src)
	}

	k := r.resolve(req, r.at(prim))
	if gt := r.match(req, k); gt != None {
		return gt, nil
	}

	gt, err := r.create(req, prim, k)
	if err != nil {
		return None, err
	}
	if req.ForType {
		r.MarkDefault(gt)
	}
	r.reportPadding(req, prim, gt)
	e := r.at(gt)
	r.log.Debug("new alternate",
		zap.String("type", src.Name),
		zap.Stringer("kind", e.kind),
		zap.Stringer("phys", e.phys),
		zap.Uint64("size", e.size),
		zap.Uint64("align", e.align),
		zap.Bool("default", e.isDefault))
	return gt, nil
}

// resolve fills unspecified request fields from the primitive and rounds
// the size of a type-level request up to its alignment.
func (r *Registry) resolve(req Request, p *entry) key {
	k := key{size: p.size, hasSize: p.hasSize, align: p.align, hasAlign: p.hasAlign}
	if req.Size != 0 {
		k.size, k.hasSize = req.Size, true
	}
	if req.Align != 0 {
		k.align, k.hasAlign = req.Align, true
	}
	if req.ForType && k.hasSize && k.hasAlign {
		k.size = target.AlignTo(k.size, k.align*8)
	}
	return k
}

func (r *Registry) match(req Request, k key) GLType {
	for gt := range r.Alternates(req.Source) {
		e := r.at(gt)
		if e.kind == KindUnset || e.kind == KindDummy {
			continue
		}
		switch {
		case k.sameSize(e) && k.sameAlign(e) && e.hasBias == req.Biased && r.sameMaxSize(req, e):
			return gt
		case req.MaxSize && e.maxSize:
			return gt
		case r.policy.NeverShrinkNonInteger && r.noSmaller(req, e):
			return gt
		}
	}
	return None
}

// sameMaxSize reports whether e serves the max-size intent of req. A
// native alternate is its own maximum size; a dynamically sized one only
// serves max-size requests when built for them.
func (r *Registry) sameMaxSize(req Request, e *entry) bool {
	return e.maxSize == req.MaxSize || (req.MaxSize && r.tb.IsNative(e.phys))
}

// noSmaller reports a non-integer primitive at least as large as the size
// req asks for. Requests without a size, and alignments the primitive does
// not already have, fall through to creation.
func (r *Registry) noSmaller(req Request, e *entry) bool {
	if e.kind != KindPrimitive || req.Source.IsScalarInteger() || req.Size == 0 || !e.hasSize {
		return false
	}
	if req.Align != 0 && (!e.hasAlign || e.align < req.Align) {
		return false
	}
	return e.size >= req.Size
}

func (r *Registry) create(req Request, prim GLType, k key) (GLType, error) {
	p := *r.at(prim)
	src := req.Source
	e := entry{
		src:      src,
		size:     k.size,
		hasSize:  k.hasSize,
		align:    k.align,
		hasAlign: k.hasAlign,
		maxSize:  req.MaxSize,
	}
	primNative := r.tb.IsNative(p.phys)

	switch {
	case req.Biased:
		lo, ok := sem.StaticValue(src.Low)
		if !ok {
			return None, errors.Internal(errors.PhaseRegistry, "biased alternate of %s without a static low bound", src)
		}
		width := p.phys.Bits()
		if req.Size != 0 {
			width = uint32(k.size)
		}
		e.phys = r.tb.Int(width)
		e.kind = KindBiased
		e.bias, e.hasBias = lo, true

	case src.IsScalarInteger() && req.Size != 0 && k.size <= maxIntAltBits:
		e.phys = r.tb.Int(uint32(k.size))
		e.kind = KindIntAlt

	case primNative && (!k.sameSize(&p) || !k.sameAlign(&p)):
		natBytes, _ := r.tb.SizeOf(p.phys)
		var pad uint64
		if k.hasSize && (k.size+7)/8 > natBytes {
			pad = (k.size+7)/8 - natBytes
		}
		if pad == 0 {
			e.phys = p.phys
			e.kind = KindAligning
		} else {
			e.phys = r.tb.Struct("", p.phys, r.tb.ByteArray(pad))
			e.kind = KindPadded
		}

	case !primNative && req.Size != 0:
		e.phys = r.tb.ByteArray((k.size + 7) / 8)
		e.kind = KindByteArray

	case req.MaxSize:
		e.phys = p.phys
		e.kind = KindMaxSize

	default:
		e.phys = p.phys
		e.kind = KindAligning
	}
	return r.push(e), nil
}

// reportPadding warns when an explicit size on a user entity of this unit
// led to a padded representation.
func (r *Registry) reportPadding(req Request, prim, gt GLType) {
	if req.Size == 0 || r.at(gt).kind != KindPadded {
		return
	}
	ent := req.Entity
	if ent == nil {
		ent = &req.Source.Entity
	}
	if !ent.UserDeclared || !ent.InUnit {
		return
	}
	natBits, _ := r.tb.SizeInBits(r.at(prim).phys)
	if req.Size <= natBits {
		return
	}
	r.sink.Report(diag.PaddingWaste(ent.Name, req.Size-natBits, attribution(ent, req.ForComponent)))
}

func attribution(ent *sem.Entity, forComponent bool) sem.Pos {
	switch {
	case ent.SizeClause != nil:
		return *ent.SizeClause
	case forComponent && ent.ComponentClause != nil:
		return *ent.ComponentClause
	}
	return ent.Decl
}
