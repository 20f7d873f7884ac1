package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned for unknown unit IDs.
var ErrNotFound = errors.New("unit not found")

// Units lists the stored units, newest first.
func (s *Store) Units(ctx context.Context) ([]Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at FROM units
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return out, nil
}

// Unit reads one unit and its types.
func (s *Store) Unit(ctx context.Context, id string) (Unit, []Type, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM units WHERE id = ?`, id)
	u, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Unit{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Unit{}, nil, err
	}
	types, err := s.types(ctx, id)
	if err != nil {
		return Unit{}, nil, err
	}
	return u, types, nil
}

func (s *Store) types(ctx context.Context, id string) ([]Type, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, kind, size, max_size, bounds, alignment, pos FROM types
		WHERE unit_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query types: %w", err)
	}
	defer rows.Close()

	var out []Type
	for rows.Next() {
		var t Type
		if err := rows.Scan(&t.Name, &t.Kind, &t.Size, &t.MaxSize, &t.Bounds, &t.Alignment, &t.Pos); err != nil {
			return nil, fmt.Errorf("scan type: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate types: %w", err)
	}
	rows.Close()

	for i := range out {
		alts, err := s.alternates(ctx, id, i)
		if err != nil {
			return nil, err
		}
		out[i].Alternates = alts
	}
	return out, nil
}

func (s *Store) alternates(ctx context.Context, id string, typeSeq int) ([]Alternate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, physical, size_bits, align, bias, is_default, max_size FROM alternates
		WHERE unit_id = ? AND type_seq = ? ORDER BY seq
	`, id, typeSeq)
	if err != nil {
		return nil, fmt.Errorf("query alternates: %w", err)
	}
	defer rows.Close()

	var out []Alternate
	for rows.Next() {
		var (
			a           Alternate
			size, align sql.NullInt64
			bias        sql.NullInt64
		)
		if err := rows.Scan(&a.Kind, &a.Physical, &size, &align, &bias, &a.Default, &a.MaxSize); err != nil {
			return nil, fmt.Errorf("scan alternate: %w", err)
		}
		if size.Valid {
			v := uint64(size.Int64)
			a.Size = &v
		}
		if align.Valid {
			v := uint64(align.Int64)
			a.Align = &v
		}
		if bias.Valid {
			a.Bias = &bias.Int64
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alternates: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUnit(r scanner) (Unit, error) {
	var (
		u       Unit
		created string
	)
	if err := r.Scan(&u.ID, &u.Name, &created); err != nil {
		if err == sql.ErrNoRows {
			return u, err
		}
		return u, fmt.Errorf("scan unit: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return u, fmt.Errorf("unit %s: bad timestamp %q: %w", u.ID, created, err)
	}
	u.Created = t
	return u, nil
}
