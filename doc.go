// Package gnatllvm lowers checked source types onto a fixed-layout target IR.
//
// Each source type may be represented in several ways at once: its natural
// (primitive) form, a wider or narrower integer, a biased integer, a padded
// record, a byte array or a maximum-size form. The library keeps these
// representation alternates in a registry, converts values between them, and
// computes array bounds and sizes that may depend on discriminants.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	gnatllvm/            Root package (documentation only)
//	├── target/          Physical types, sizes, alignments and bounds records
//	├── ir/              Straight-line IR builder and byte-memory interpreter
//	├── sem/             Source types, discriminants and bound expressions
//	├── diag/            Diagnostics sinks
//	├── gltype/          Alternate registry, FindOrCreate and conversions
//	├── shape/           Per-array bound descriptors
//	├── lower/           Primitive alternates for every source type
//	├── bounds/          Bounds/size algebra over concrete, dynamic and symbolic domains
//	├── arrays/          Indexing, slices, bounds records and aggregate literals
//	├── wasmgen/         IR to WebAssembly, executed under wazero
//	├── unit/            Per-unit context and CUE unit descriptions
//	├── repinfo/         Representation reports and their SQLite store
//	├── verify/          Round-trip checks of integer alternates
//	├── config/          YAML configuration
//	├── errors/          Structured error types for debugging
//	└── cmd/glrep/       Command line and interactive browser
//
// # Quick Start
//
// Elaborate a unit description and look up a type's alternates:
//
//	c, err := unit.Open(nil, nil, "buffers.cue")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	t, _ := c.Model.Lookup("Level")
//	for gt := range c.Registry.Alternates(t) {
//	    fmt.Println(c.Registry.Kind(gt), c.Registry.Physical(gt))
//	}
//
// Sizes that depend on discriminants are reported symbolically:
//
//	r, err := repinfo.Build(c)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r.WriteText(os.Stdout, false)
//	// type Buf_Data (...): array, size ..., max size 100, bounds 1 .. #Len, alignment 1
//
// # Units
//
// Sizes are in bits and alignments in bytes throughout the registry. Reports
// and the bounds algebra give sizes in bytes.
//
// # Thread Safety
//
// A unit.Context and everything it owns belong to a single goroutine. There is
// no global registry; separate units may be processed concurrently.
package gnatllvm
