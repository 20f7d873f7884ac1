package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lucretia/gnat-llvm/unit"
	"github.com/Lucretia/gnat-llvm/verify"
)

const sample = "testdata/buffers.cue"

// execute runs glrep with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "glrep", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"layout", "repinfo", "verify", "browse"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	cfg := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, "c", cfg.Shorthand)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("color"))
}

func TestLayout(t *testing.T) {
	out, err := execute(t, "layout", "--literals", sample)
	require.NoError(t, err)
	assert.Contains(t, out, "unit Buffers: 11 types")
	assert.Contains(t, out, "Level biased i5")
	assert.Contains(t, out, "; Ones : Grid")
	assert.Contains(t, out, "define void @init_Rows(")
}

func TestRepinfoJSON(t *testing.T) {
	out, err := execute(t, "repinfo", "--format", "json", sample)
	require.NoError(t, err)
	var r struct {
		Unit  string `json:"unit"`
		Types []struct {
			Name string `json:"name"`
		} `json:"types"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "Buffers", r.Unit)
	assert.Len(t, r.Types, 11)
}

func TestRepinfoText(t *testing.T) {
	out, err := execute(t, "repinfo", sample)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "unit Buffers "))
	assert.Contains(t, out, "type Buffer (")
	assert.NotContains(t, out, "\x1b[", "output to a buffer is never styled in auto mode")
}

func TestRepinfoDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "reports.db")
	out, err := execute(t, "repinfo", "--format", "json", "--db", db, sample)
	require.NoError(t, err)
	var saved struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &saved))

	out, err = execute(t, "repinfo", "--db", db, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, saved.ID)
	assert.Contains(t, out, "Buffers")

	out, err = execute(t, "repinfo", "--db", db, "--id", saved.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "type Buf_Data")

	_, err = execute(t, "repinfo", "--db", db, "--id", "no-such-unit")
	assert.Error(t, err)
}

func TestRepinfoErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad_format", []string{"repinfo", "--format", "xml", sample}},
		{"no_file", []string{"repinfo"}},
		{"list_without_db", []string{"repinfo", "--list"}},
		{"missing_file", []string{"repinfo", "testdata/absent.cue"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, tc.args...)
			assert.Error(t, err)
		})
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glrep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("report:\n  format: json\n"), 0o644))
	out, err := execute(t, "--config", path, "repinfo", sample)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))

	_, err = execute(t, "--color", "sometimes", "repinfo", sample)
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	out, err := execute(t, "verify", "--engine", "interp", sample)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   Level biased i5: 32 values in 100 .. 131")
	assert.Contains(t, out, "SKIP Level int_alt i5")
	assert.Contains(t, out, "ok   Flags int_alt i16")
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestBrowseModel(t *testing.T) {
	open := func(path string) (*unit.Context, error) { return unit.Open(nil, nil, path) }
	m := newBrowseModel(sample, open, verify.Options{Engine: verify.Interp, MaxSamples: 8})
	assert.Equal(t, "Loading unit...", m.View())

	m.Update(m.Init()())
	require.NotNil(t, m.report)
	assert.Len(t, m.visible, 11)
	assert.Contains(t, m.View(), "Count")

	m.Update(key("j"))
	m.Update(key("enter"))
	assert.Equal(t, stateDetail, m.state)
	assert.Contains(t, m.View(), "type Index")

	m.Update(key("esc"))
	m.Update(key("/"))
	require.Equal(t, stateFilter, m.state)
	for _, r := range "buf" {
		m.Update(key(string(r)))
	}
	m.Update(key("enter"))
	assert.Equal(t, stateList, m.state)
	require.Len(t, m.visible, 3)
	cur, ok := m.current()
	require.True(t, ok)
	assert.Equal(t, "Buf_Data", cur.Name)

	_, cmd := m.Update(key("v"))
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.Equal(t, stateChecks, m.state)
	assert.Contains(t, m.View(), "Level biased i5: 8 values ok")

	_, cmd = m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestBrowseLoadError(t *testing.T) {
	open := func(path string) (*unit.Context, error) { return unit.Open(nil, nil, path) }
	m := newBrowseModel("testdata/absent.cue", open, verify.Options{})
	m.Update(m.Init()())
	assert.Contains(t, m.View(), "Error:")
}
