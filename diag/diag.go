package diag

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Lucretia/gnat-llvm/sem"
)

// Severity of a diagnostic. The representation layer only warns.
type Severity uint8

const (
	Warning Severity = iota
	Info
)

func (s Severity) String() string {
	if s == Info {
		return "info"
	}
	return "warning"
}

// Diagnostic is one message attributed to a source construct.
type Diagnostic struct {
	Entity   string
	Message  string
	Pos      sem.Pos
	Bits     uint64
	Severity Severity
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
}

// PaddingWaste reports bits of a representation left unused because a size
// clause asked for more than the natural size.
func PaddingWaste(entity string, bits uint64, at sem.Pos) Diagnostic {
	return Diagnostic{
		Entity:   entity,
		Message:  fmt.Sprintf("%d bits of %q unused", bits, entity),
		Pos:      at,
		Bits:     bits,
		Severity: Warning,
	}
}

// Sink receives diagnostics. Reporting never fails and never stops
// compilation.
type Sink interface {
	Report(d Diagnostic)
}

// Discard drops every diagnostic.
type Discard struct{}

func (Discard) Report(Diagnostic) {}

// Collector keeps diagnostics in order of arrival.
type Collector struct {
	Diags []Diagnostic
}

func (c *Collector) Report(d Diagnostic) { c.Diags = append(c.Diags, d) }

// Len returns the number of collected diagnostics.
func (c *Collector) Len() int { return len(c.Diags) }

// ZapSink writes diagnostics to a zap logger.
type ZapSink struct {
	log *zap.Logger
}

// NewZapSink creates a sink logging to l. A nil l uses the package logger.
func NewZapSink(l *zap.Logger) *ZapSink {
	if l == nil {
		l = Logger()
	}
	return &ZapSink{log: l}
}

func (s *ZapSink) Report(d Diagnostic) {
	fields := []zap.Field{
		zap.String("entity", d.Entity),
		zap.Stringer("pos", d.Pos),
		zap.Uint64("bits", d.Bits),
	}
	if d.Severity == Info {
		s.log.Info(d.Message, fields...)
		return
	}
	s.log.Warn(d.Message, fields...)
}

// Tee forwards every diagnostic to each sink in turn.
type Tee []Sink

func (t Tee) Report(d Diagnostic) {
	for _, s := range t {
		s.Report(d)
	}
}
