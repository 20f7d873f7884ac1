// Package unit holds the state of one compilation unit: the registry of
// representation alternates, the array shape table, and the source model
// they were built from.
package unit

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Lucretia/gnat-llvm/arrays"
	"github.com/Lucretia/gnat-llvm/bounds"
	"github.com/Lucretia/gnat-llvm/config"
	"github.com/Lucretia/gnat-llvm/diag"
	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/ir"
	"github.com/Lucretia/gnat-llvm/lower"
	"github.com/Lucretia/gnat-llvm/sem"
	"github.com/Lucretia/gnat-llvm/shape"
	"github.com/Lucretia/gnat-llvm/target"
	"github.com/Lucretia/gnat-llvm/unit/internal/loader"
)

// Literal is a named array aggregate of the unit description.
type Literal = loader.Literal

// Context is the per-unit state. It is not safe for concurrent use; each
// unit gets its own.
type Context struct {
	Config   *config.Config
	Target   *target.Builder
	Registry *gltype.Registry
	Shapes   *shape.Table
	Lowerer  *lower.Lowerer
	Model    *sem.Model
	// Diags holds the diagnostics when the configured sink is "collect".
	Diags    *diag.Collector
	log      *zap.Logger
	Literals []Literal
	Requests []gltype.Request
	// Results holds the alternate each request resolved to, by index.
	Results  []gltype.GLType
	ID       uuid.UUID
}

// New creates an empty context. A nil cfg uses config.Default; a nil log
// uses the package logger.
func New(cfg *config.Config, log *zap.Logger) *Context {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = Logger()
	}
	id := uuid.Must(uuid.NewV7())
	log = log.With(zap.String("unit_id", id.String()))

	c := &Context{Config: cfg, ID: id, log: log}
	var sink diag.Sink = diag.Discard{}
	switch cfg.Diagnostics.Sink {
	case "log":
		sink = diag.NewZapSink(log.Named("diag"))
	case "collect":
		c.Diags = &diag.Collector{}
		sink = c.Diags
	}
	c.Target = target.NewBuilder(cfg.TargetConfig())
	c.Registry = gltype.NewRegistry(c.Target,
		gltype.WithPolicy(cfg.Policy()),
		gltype.WithSink(sink),
		gltype.WithLogger(log.Named("gltype")))
	c.Shapes = shape.NewTable(c.Target)
	c.Lowerer = lower.New(c.Registry, c.Shapes)
	return c
}

// Open loads the unit description at path and elaborates it.
func Open(cfg *config.Config, log *zap.Logger, path string) (*Context, error) {
	c := New(cfg, log)
	if err := c.Load(path); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a unit description into c and elaborates it.
func (c *Context) Load(path string) error {
	u, err := loader.Load(path)
	if err != nil {
		return err
	}
	return c.Use(u.Model, u.Requests, u.Literals)
}

// Parse is Load for a description already in memory.
func (c *Context) Parse(name string, data []byte) error {
	u, err := loader.Parse(name, data)
	if err != nil {
		return err
	}
	return c.Use(u.Model, u.Requests, u.Literals)
}

// Use elaborates every type of m, then applies the representation
// requests in order.
func (c *Context) Use(m *sem.Model, reqs []gltype.Request, lits []Literal) error {
	if c.Model != nil {
		return errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("unit %s already holds %s", c.ID, c.Model.Unit))
	}
	c.Model, c.Requests, c.Literals = m, reqs, lits
	if err := c.Lowerer.Model(m); err != nil {
		return err
	}
	c.Results = make([]gltype.GLType, len(reqs))
	for i, req := range reqs {
		gt, err := c.apply(req)
		if err != nil {
			return err
		}
		c.Results[i] = gt
	}
	c.log.Info("unit elaborated",
		zap.String("unit", m.Unit),
		zap.Int("types", len(m.Types())),
		zap.Int("alternates", c.Registry.Len()),
		zap.Int("requests", len(reqs)))
	return nil
}

func (c *Context) apply(req gltype.Request) (gltype.GLType, error) {
	if req.ForComponent && !req.Biased && !req.MaxSize && req.Align == 0 {
		return c.Lowerer.Component(req.Source, req.Entity, req.Size)
	}
	if _, err := c.Lowerer.Type(req.Source); err != nil {
		return gltype.None, err
	}
	return c.Registry.FindOrCreate(req)
}

// Logger returns the unit's logger, tagged with its ID.
func (c *Context) Logger() *zap.Logger { return c.log }

// Close flushes the unit's logger. The context must not be used afterwards.
func (c *Context) Close() {
	fields := []zap.Field{zap.Int("alternates", c.Registry.Len())}
	if c.Diags != nil {
		fields = append(fields, zap.Int("diagnostics", c.Diags.Len()))
	}
	c.log.Debug("unit closed", fields...)
	_ = c.log.Sync()
}

// Annot returns a bounds algebra building symbolic sizes over the unit's
// types.
func (c *Context) Annot() *bounds.Algebra[*bounds.Node, bounds.Annot] {
	return bounds.NewAnnot(c.Registry, c.Shapes)
}

// Literal looks up a named literal.
func (c *Context) Literal(name string) (Literal, bool) {
	for _, l := range c.Literals {
		if sem.SameName(l.Name, name) {
			return l, true
		}
	}
	return Literal{}, false
}

// InitFunc builds a function storing lit into the array its only
// parameter points to. Unconstrained targets take a fat pointer.
func (c *Context) InitFunc(lit Literal) (*ir.Func, error) {
	arr := lit.Value.Typ
	gt := c.Registry.Default(arr)
	if !gt.Present() {
		return nil, errors.NotFound(errors.PhaseLiteral, "type", arr.Name)
	}
	phys := c.Registry.Physical(gt)
	rel := gltype.Reference
	param := c.Target.PointerTo(phys)
	if arr.IsUnconstrainedArray() {
		s, err := c.Shapes.Shape(arr)
		if err != nil {
			return nil, err
		}
		comp, err := c.Lowerer.Physical(arr.Component)
		if err != nil {
			return nil, err
		}
		param = c.Target.FatPointer(comp, s.BoundsType)
		rel = gltype.FatPointer
	}
	fn := ir.NewFunc("init_"+lit.Name, c.Target.Void(), param)
	b := ir.NewBuilder(c.Target, fn)
	a := arrays.New(b, &bounds.Env{}, c.Registry, c.Shapes)
	if err := a.Aggregate(lit.Value, gltype.Value{IR: fn.Params[0], GT: gt, Rel: rel}); err != nil {
		return nil, err
	}
	b.Ret(nil)
	return fn, nil
}
