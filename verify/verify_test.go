package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lucretia/gnat-llvm/unit"
)

func open(t *testing.T) *unit.Context {
	t.Helper()
	c, err := unit.Open(nil, nil, "testdata/buffers.cue")
	require.NoError(t, err)
	return c
}

func TestRun(t *testing.T) {
	for _, engine := range []Engine{Interp, Wasm, Both} {
		t.Run(string(engine), func(t *testing.T) {
			res, err := Run(context.Background(), open(t), Options{Engine: engine, MaxSamples: 256})
			require.NoError(t, err)
			require.Len(t, res.Checks, 3)
			assert.Zero(t, res.Failed())

			biased := res.Checks[0]
			assert.Equal(t, "Level", biased.Type)
			assert.Equal(t, "biased", biased.Kind)
			assert.True(t, biased.OK())
			assert.Equal(t, [2]int64{100, 131}, [2]int64{biased.Low, biased.High})
			assert.Equal(t, 32, biased.Samples)

			// Five unbiased bits cannot hold 100 .. 131.
			narrow := res.Checks[1]
			assert.Equal(t, "int_alt", narrow.Kind)
			assert.NotEmpty(t, narrow.Skipped)
			assert.Zero(t, narrow.Samples)

			flags := res.Checks[2]
			assert.Equal(t, "Flags", flags.Type)
			assert.Equal(t, "i16", flags.Physical)
			assert.Equal(t, 8, flags.Samples)
		})
	}
}

func TestSampling(t *testing.T) {
	res, err := Run(context.Background(), open(t), Options{Engine: Interp, MaxSamples: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Checks[0].Samples)
}

func TestSamples(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi int64
		n      int
		want   []int64
	}{
		{"all", 1, 3, 8, []int64{1, 2, 3}},
		{"single", 5, 5, 2, []int64{5}},
		{"spread", 0, 100, 3, []int64{0, 50, 100}},
		{"full_range", -1 << 63, 1<<63 - 1, 2, []int64{-1 << 63, 1<<63 - 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, samples(tc.lo, tc.hi, tc.n))
		})
	}
}

func TestUnknownEngine(t *testing.T) {
	_, err := Run(context.Background(), open(t), Options{Engine: "jit"})
	assert.Error(t, err)
}

func TestNoModel(t *testing.T) {
	_, err := Run(context.Background(), unit.New(nil, nil), Options{})
	assert.Error(t, err)
}
