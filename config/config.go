// Package config holds the settings of a representation run, loaded from
// YAML and validated against struct tags.
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Lucretia/gnat-llvm/errors"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/target"
)

// Config is the root of a configuration file.
type Config struct {
	Target      Target      `yaml:"target"`
	Registry    Registry    `yaml:"registry"`
	Diagnostics Diagnostics `yaml:"diagnostics"`
	Log         Log         `yaml:"log"`
	Report      Report      `yaml:"report"`
	Verify      Verify      `yaml:"verify"`
}

// Target is the data layout.
type Target struct {
	PointerBits uint32 `yaml:"pointer_bits" validate:"oneof=32 64"`
	MaxIntBits  uint32 `yaml:"max_int_bits" validate:"oneof=32 64"`
}

// Registry tunes alternate matching.
type Registry struct {
	NeverShrinkNonInteger bool `yaml:"never_shrink_non_integer"`
}

// Diagnostics selects where padding warnings go.
type Diagnostics struct {
	// Sink is "log" (structured log entries), "collect" (kept for the
	// report), or "none".
	Sink string `yaml:"sink" validate:"oneof=log collect none"`
}

type Log struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Encoding    string `yaml:"encoding" validate:"oneof=json console"`
	Development bool   `yaml:"development"`
}

// Report controls the representation report.
type Report struct {
	Format string `yaml:"format" validate:"oneof=text json"`
	Color  string `yaml:"color" validate:"oneof=auto always never"`
	// Database is the SQLite file back-annotations are saved to. Empty
	// disables persistence.
	Database string `yaml:"database"`
}

// Verify controls the conversion self-check.
type Verify struct {
	Engine string `yaml:"engine" validate:"oneof=interp wasm both"`
	// MaxSamples bounds the values tried per alternate.
	MaxSamples int `yaml:"max_samples" validate:"min=1,max=65536"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Target:      Target{PointerBits: 64, MaxIntBits: 64},
		Registry:    Registry{NeverShrinkNonInteger: gltype.DefaultPolicy().NeverShrinkNonInteger},
		Diagnostics: Diagnostics{Sink: "collect"},
		Log:         Log{Level: "info", Encoding: "console"},
		Report:      Report{Format: "text", Color: "auto"},
		Verify:      Verify{Engine: "both", MaxSamples: 256},
	}
}

// Load reads the file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read "+path)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// fields are rejected.
func Parse(data []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse configuration")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

var validate = validator.New()

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var valErrs validator.ValidationErrors
	if !stderrors.As(err, &valErrs) {
		return errors.Wrap(errors.PhaseConfig, errors.KindInternal, err, "validate configuration")
	}
	msgs := make([]string, 0, len(valErrs))
	for _, ve := range valErrs {
		msgs = append(msgs, fieldPath(ve)+": "+formatValidationError(ve))
	}
	return errors.InvalidInput(errors.PhaseConfig, strings.Join(msgs, "; "))
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(ve validator.FieldError) string {
	ns := ve.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of: %s, got %v", ve.Param(), ve.Value())
	case "min":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", ve.Param())
	}
	return fmt.Sprintf("failed %s validation", ve.Tag())
}

// TargetConfig returns the data layout for target.NewBuilder.
func (c *Config) TargetConfig() target.Config {
	return target.Config{PointerBits: c.Target.PointerBits, MaxIntBits: c.Target.MaxIntBits}
}

// Policy returns the registry matching policy.
func (c *Config) Policy() gltype.Policy {
	return gltype.Policy{NeverShrinkNonInteger: c.Registry.NeverShrinkNonInteger}
}

// NewLogger builds the logger the configuration describes.
func (c *Config) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
	}
	zc.Level = lvl
	zc.Encoding = c.Log.Encoding
	return zc.Build()
}
