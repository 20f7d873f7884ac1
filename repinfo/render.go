package repinfo

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Lucretia/gnat-llvm/errors"
)

var (
	unitStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#98FB98"))

	physStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	defaultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type painter bool

func (p painter) paint(st lipgloss.Style, s string) string {
	if !p {
		return s
	}
	return st.Render(s)
}

// WriteText renders r for a terminal. Styles are applied only when styled
// is set.
func (r *Report) WriteText(w io.Writer, styled bool) error {
	p := painter(styled)
	var sb strings.Builder
	sb.WriteString(p.paint(unitStyle, "unit "+r.Unit))
	sb.WriteString(" " + p.paint(dimStyle, r.ID) + "\n")
	for _, t := range r.Types {
		sb.WriteString(t.header(p) + "\n")
		for _, a := range t.Alternates {
			sb.WriteString("  " + a.line(p) + "\n")
		}
	}
	if len(r.Diagnostics) > 0 {
		sb.WriteString("diagnostics:\n")
		for _, d := range r.Diagnostics {
			sb.WriteString("  " + p.paint(warnStyle, d) + "\n")
		}
	}
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return errors.Wrap(errors.PhaseReport, errors.KindInternal, err, "write report")
	}
	return nil
}

// Header is the one-line summary of t.
func (t Type) Header() string { return t.header(false) }

func (t Type) header(p painter) string {
	var sb strings.Builder
	sb.WriteString("type " + p.paint(nameStyle, t.Name))
	if t.Pos != "" {
		sb.WriteString(" (" + t.Pos + ")")
	}
	fmt.Fprintf(&sb, ": %s, size %s", t.Kind, t.Size)
	if t.MaxSize != "" {
		sb.WriteString(", max size " + t.MaxSize)
	}
	if t.Bounds != "" {
		sb.WriteString(", bounds " + t.Bounds)
	}
	fmt.Fprintf(&sb, ", alignment %d", t.Alignment)
	return sb.String()
}

// String is the one-line form of a.
func (a Alternate) String() string { return a.line(false) }

func (a Alternate) line(p painter) string {
	parts := []string{a.Kind, p.paint(physStyle, a.Physical)}
	if a.Size != nil {
		parts = append(parts, fmt.Sprintf("size=%d", *a.Size))
	}
	if a.Align != nil {
		parts = append(parts, fmt.Sprintf("align=%d", *a.Align))
	}
	if a.Bias != nil {
		parts = append(parts, fmt.Sprintf("bias=%d", *a.Bias))
	}
	if a.MaxSize {
		parts = append(parts, "max_size")
	}
	if a.Default {
		parts = append(parts, p.paint(defaultStyle, "default"))
	}
	return strings.Join(parts, " ")
}

// WriteJSON writes r as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(errors.PhaseReport, errors.KindInternal, err, "encode report")
	}
	return nil
}

// Write renders r in format, "text" or "json".
func (r *Report) Write(w io.Writer, format string, styled bool) error {
	switch format {
	case "text", "":
		return r.WriteText(w, styled)
	case "json":
		return r.WriteJSON(w)
	}
	return errors.InvalidInput(errors.PhaseReport, "unknown report format "+format)
}
