package wasm_test

import (
	"bytes"
	"testing"

	"github.com/Lucretia/gnat-llvm/wasmgen/internal/wasm"
)

func TestWriteU32(t *testing.T) {
	tests := []struct {
		encoded []byte
		value   uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}
	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			w := wasm.NewWriter()
			w.WriteU32(tt.value)
			if !bytes.Equal(w.Bytes(), tt.encoded) {
				t.Errorf("encode %d: got %v, want %v", tt.value, w.Bytes(), tt.encoded)
			}
		})
	}
}

func TestWriteS64(t *testing.T) {
	tests := []struct {
		encoded []byte
		value   int64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, -1},
		{[]byte{0x3f}, 63},
		{[]byte{0xc0, 0x00}, 64},
		{[]byte{0x40}, -64},
		{[]byte{0x80, 0x7f}, -128},
		{[]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x7f}, -1 << 63},
	}
	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			w := wasm.NewWriter()
			w.WriteS64(tt.value)
			if !bytes.Equal(w.Bytes(), tt.encoded) {
				t.Errorf("encode %d: got %v, want %v", tt.value, w.Bytes(), tt.encoded)
			}
		})
	}
}

func TestEncodeModule(t *testing.T) {
	m := &wasm.Module{
		Name:    "id",
		Params:  []wasm.ValType{wasm.ValI64},
		Results: []wasm.ValType{wasm.ValI64},
		Body:    []byte{wasm.OpLocalGet, 0},
	}
	bin := m.Encode()
	header := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if !bytes.HasPrefix(bin, header) {
		t.Fatalf("bad header % x", bin[:8])
	}
	// The code section is last: one body of size 4 (no locals, local.get 0, end).
	tail := []byte{wasm.SectionCode, 0x06, 0x01, 0x04, 0x00, wasm.OpLocalGet, 0x00, wasm.OpEnd}
	if !bytes.HasSuffix(bin, tail) {
		t.Errorf("code section % x, want % x", bin[len(bin)-len(tail):], tail)
	}
}
