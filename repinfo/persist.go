package repinfo

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/repinfo/internal/store"
)

// Summary names a stored report.
type Summary struct {
	Created time.Time
	ID      string
	Unit    string
}

// Save writes r to the database at path, replacing an earlier report with
// the same ID. Diagnostics are not stored.
func (r *Report) Save(ctx context.Context, path string) error {
	s, err := store.Open(path)
	if err != nil {
		return errors.Wrap(errors.PhaseReport, errors.KindInternal, err, "open "+path)
	}
	defer s.Close()

	rows := make([]store.Type, len(r.Types))
	for i, t := range r.Types {
		rows[i] = t.row()
	}
	u := store.Unit{ID: r.ID, Name: r.Unit, Created: r.Created}
	if err := s.Save(ctx, u, rows); err != nil {
		return errors.Wrap(errors.PhaseReport, errors.KindInternal, err, "save unit "+r.ID)
	}
	Logger().Info("report saved",
		zap.String("unit", r.Unit),
		zap.String("id", r.ID),
		zap.String("db", path))
	return nil
}

// Load reads the report with the given ID from the database at path.
func Load(ctx context.Context, path, id string) (*Report, error) {
	s, err := store.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseReport, errors.KindInternal, err, "open "+path)
	}
	defer s.Close()

	u, rows, err := s.Unit(ctx, id)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NotFound(errors.PhaseReport, "unit", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.PhaseReport, errors.KindInternal, err, "load unit "+id)
	}
	r := &Report{Created: u.Created, ID: u.ID, Unit: u.Name}
	for _, row := range rows {
		r.Types = append(r.Types, fromRow(row))
	}
	return r, nil
}

// List returns the reports stored at path, newest first.
func List(ctx context.Context, path string) ([]Summary, error) {
	s, err := store.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseReport, errors.KindInternal, err, "open "+path)
	}
	defer s.Close()

	units, err := s.Units(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseReport, errors.KindInternal, err, "list units")
	}
	out := make([]Summary, len(units))
	for i, u := range units {
		out[i] = Summary{Created: u.Created, ID: u.ID, Unit: u.Name}
	}
	return out, nil
}

func (t Type) row() store.Type {
	row := store.Type{
		Name:      t.Name,
		Kind:      t.Kind,
		Size:      t.Size,
		MaxSize:   t.MaxSize,
		Bounds:    t.Bounds,
		Pos:       t.Pos,
		Alignment: t.Alignment,
	}
	for _, a := range t.Alternates {
		row.Alternates = append(row.Alternates, store.Alternate{
			Size:     a.Size,
			Align:    a.Align,
			Bias:     a.Bias,
			Kind:     a.Kind,
			Physical: a.Physical,
			Default:  a.Default,
			MaxSize:  a.MaxSize,
		})
	}
	return row
}

func fromRow(row store.Type) Type {
	t := Type{
		Name:      row.Name,
		Kind:      row.Kind,
		Size:      row.Size,
		MaxSize:   row.MaxSize,
		Bounds:    row.Bounds,
		Pos:       row.Pos,
		Alignment: row.Alignment,
	}
	for _, a := range row.Alternates {
		t.Alternates = append(t.Alternates, Alternate{
			Kind:     a.Kind,
			Physical: a.Physical,
			Size:     a.Size,
			Align:    a.Align,
			Bias:     a.Bias,
			Default:  a.Default,
			MaxSize:  a.MaxSize,
		})
	}
	return t
}
