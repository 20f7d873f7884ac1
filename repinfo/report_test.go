package repinfo

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/unit"
)

const fixedID = "00000000-0000-0000-0000-000000000001"

func build(t *testing.T, path string) *Report {
	t.Helper()
	c, err := unit.Open(nil, nil, path)
	require.NoError(t, err)
	r, err := Build(c)
	require.NoError(t, err)
	return r
}

// static returns the report of testdata/static.cue with a fixed ID and no
// positions, so that it can be compared with golden files.
func static(t *testing.T) *Report {
	t.Helper()
	r := build(t, "testdata/static.cue")
	r.ID = fixedID
	for i := range r.Types {
		r.Types[i].Pos = ""
	}
	return r
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestGoldenText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, static(t).WriteText(&buf, false))
	golden(t).Assert(t, "static_text", buf.Bytes())
}

func TestGoldenJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, static(t).WriteJSON(&buf))
	golden(t).Assert(t, "static_json", buf.Bytes())
}

func TestStyledText(t *testing.T) {
	var plain, styled bytes.Buffer
	r := static(t)
	require.NoError(t, r.WriteText(&plain, false))
	require.NoError(t, r.WriteText(&styled, true))
	// Styling may be stripped when no color profile is detected, but it
	// never changes the words.
	for _, line := range strings.Split(strings.TrimSpace(plain.String()), "\n") {
		for _, word := range strings.Fields(line) {
			assert.Contains(t, styled.String(), word)
		}
	}
}

func TestDiscriminantDependentSizes(t *testing.T) {
	r := build(t, "testdata/buffers.cue")
	require.Len(t, r.Types, 11)

	data, ok := r.Lookup("Buf_Data")
	require.True(t, ok)
	assert.Contains(t, data.Size, "#Len")
	assert.Equal(t, "100", data.MaxSize)
	assert.Equal(t, "1 .. #Len", data.Bounds)

	buf, ok := r.Lookup("buffer")
	require.True(t, ok)
	assert.Contains(t, buf.Size, "#Len")
	// Len at 0, Data at 1 .. 100, Lvl at 102, rounded to 2.
	assert.Equal(t, "104", buf.MaxSize)
	assert.Equal(t, uint64(2), buf.Alignment)
	assert.NotEmpty(t, buf.Pos)

	bytesT, ok := r.Lookup("Bytes")
	require.True(t, ok)
	assert.Contains(t, bytesT.Size, "bound(")
	assert.Equal(t, "100", bytesT.MaxSize)

	grid, ok := r.Lookup("Grid")
	require.True(t, ok)
	assert.Equal(t, "9", grid.Size)
	assert.Empty(t, grid.MaxSize)
	assert.Equal(t, "1 .. 3, 0 .. 2", grid.Bounds)

	level, ok := r.Lookup("Level")
	require.True(t, ok)
	kinds := make([]string, len(level.Alternates))
	for i, a := range level.Alternates {
		kinds[i] = a.Kind
	}
	assert.Equal(t, []string{"biased", "int_alt", "primitive"}, kinds)
	require.NotNil(t, level.Alternates[0].Bias)
	assert.Equal(t, int64(100), *level.Alternates[0].Bias)
	assert.True(t, level.Alternates[2].Default)

	_, ok = r.Lookup("Missing")
	assert.False(t, ok)
}

func TestDiagnosticsReported(t *testing.T) {
	c := unit.New(nil, nil)
	require.NoError(t, c.Parse("padding.cue", []byte(`
unit: "Padding"
types: Real: {kind: "float"}
requests: [{type: "Real", entity: "R_Obj", size: 128}]
`)))
	r, err := Build(c)
	require.NoError(t, err)
	require.Len(t, r.Diagnostics, 1)
	assert.Contains(t, r.Diagnostics[0], "64 bits of \"R_Obj\" unused")

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf, false))
	assert.Contains(t, buf.String(), "diagnostics:\n")

	buf.Reset()
	require.NoError(t, r.WriteJSON(&buf))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded["diagnostics"], 1)
}

func TestBuildWithoutModel(t *testing.T) {
	_, err := Build(unit.New(nil, nil))
	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, errors.KindInvalidInput, e.Kind)
}

func TestWriteUnknownFormat(t *testing.T) {
	err := static(t).Write(&bytes.Buffer{}, "xml", false)
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "repinfo.db")
	r := build(t, "testdata/buffers.cue")
	require.NoError(t, r.Save(ctx, db))

	got, err := Load(ctx, db, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Unit, got.Unit)
	assert.Equal(t, r.Types, got.Types)
	assert.Empty(t, got.Diagnostics)

	list, err := List(ctx, db)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r.ID, list[0].ID)
	assert.Equal(t, "Buffers", list[0].Unit)
}

func TestLoadUnknown(t *testing.T) {
	db := filepath.Join(t.TempDir(), "repinfo.db")
	_, err := Load(context.Background(), db, fixedID)
	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, errors.KindNotFound, e.Kind)
}
