package unit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Lucretia/gnat-llvm/config"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/ir"
)

const sample = "internal/loader/testdata/buffers.cue"

const padded = `
unit: "Padding"
types: {
	Byte: {kind: "modular", modulus: 256}
	Pair: {kind: "record", components: [{name: "A", type: "Byte"}, {name: "B", type: "Byte"}], size: 32}
	Real: {kind: "float"}
}
requests: [
	{type: "Real", entity: "R_Obj", size: 128},
	{type: "Real", entity: "R_Ext", size: 96, external: true},
	{type: "Real", entity: "R_Aligned", alignment: 16},
]
`

func TestOpen(t *testing.T) {
	c, err := Open(nil, nil, sample)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), c.ID.Version())
	assert.Equal(t, "Buffers", c.Model.Unit)

	for _, ty := range c.Model.Types() {
		gt := c.Registry.Default(ty)
		require.True(t, gt.Present(), "no default for %s", ty.Name)
		assert.False(t, c.Registry.IsDummy(gt), "%s left a dummy", ty.Name)
	}

	require.Len(t, c.Results, 3)
	comp := c.Results[0]
	assert.Equal(t, gltype.KindIntAlt, c.Registry.Kind(comp))
	biased := c.Results[1]
	assert.Equal(t, gltype.KindBiased, c.Registry.Kind(biased))
	bias, ok := c.Registry.Bias(biased)
	require.True(t, ok)
	assert.Equal(t, int64(100), bias)

	flags, _ := c.Model.Lookup("Flags")
	size, ok := c.Registry.Size(c.Registry.Default(flags))
	require.True(t, ok)
	assert.Equal(t, uint64(8), size)
}

func TestUseTwice(t *testing.T) {
	c, err := Open(nil, nil, sample)
	require.NoError(t, err)
	assert.Error(t, c.Load(sample))
}

func TestDiagnosticsCollected(t *testing.T) {
	c := New(nil, nil)
	require.NoError(t, c.Parse("padding.cue", []byte(padded)))
	require.NotNil(t, c.Diags)
	require.Equal(t, 2, c.Diags.Len())
	assert.Equal(t, "Pair", c.Diags.Diags[0].Entity)
	assert.Equal(t, uint64(16), c.Diags.Diags[0].Bits)
	assert.Equal(t, "R_Obj", c.Diags.Diags[1].Entity)
	assert.Equal(t, uint64(64), c.Diags.Diags[1].Bits)
	assert.Equal(t, "padding.cue", c.Diags.Diags[1].Pos.File)
}

func TestDiagnosticsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := config.Default()
	cfg.Diagnostics.Sink = "log"
	c := New(cfg, zap.New(core))
	require.NoError(t, c.Parse("padding.cue", []byte(padded)))
	assert.Nil(t, c.Diags)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Equal(t, "diag", w.LoggerName)
		assert.Equal(t, c.ID.String(), w.ContextMap()["unit_id"])
	}
	assert.Equal(t, 1, logs.FilterMessage("unit elaborated").Len())
}

func TestDiagnosticsDiscarded(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := config.Default()
	cfg.Diagnostics.Sink = "none"
	c := New(cfg, zap.New(core))
	require.NoError(t, c.Parse("padding.cue", []byte(padded)))
	assert.Nil(t, c.Diags)
	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestInitFunc(t *testing.T) {
	c, err := Open(nil, nil, sample)
	require.NoError(t, err)

	tests := []struct {
		name string
		want []byte
	}{
		{"Ones", []byte{1, 1, 1, 1, 1, 1, 1, 1, 1}},
		// Grid is column-major.
		{"Rows", []byte{1, 4, 7, 2, 5, 8, 3, 6, 9}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lit, ok := c.Literal(tc.name)
			require.True(t, ok)
			fn, err := c.InitFunc(lit)
			require.NoError(t, err)

			in := ir.NewInterp(c.Target)
			addr, err := in.Mem.Alloc(uint64(len(tc.want)), 8)
			require.NoError(t, err)
			_, err = in.Run(fn, in.EncodeInt(fn.Params[0].Type(), int64(addr)))
			require.NoError(t, err, "%s", fn)
			got, err := in.Mem.Read(addr, uint64(len(tc.want)))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, ok := c.Literal("Missing")
	assert.False(t, ok)
}

func TestClose(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := New(nil, zap.New(core))
	require.NoError(t, c.Parse("padding.cue", []byte(padded)))
	c.Close()

	entries := logs.FilterMessage("unit closed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, c.ID.String(), fields["unit_id"])
	assert.EqualValues(t, c.Registry.Len(), fields["alternates"])
	assert.EqualValues(t, 2, fields["diagnostics"])
}
