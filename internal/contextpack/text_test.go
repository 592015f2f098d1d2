package contextpack

import (
	"bytes"
	"testing"
)

func TestIsProbablyText(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    bool
	}{
		{"empty", nil, false},
		{"plain ascii", []byte("PRINT 'HELLO'"), true},
		{"whitespace controls", []byte("a\tb\nc\rd\x0be\x0cf"), true},
		{"null byte", []byte("hello\x00world"), false},
		{"only null", []byte{0}, false},
		{"mostly control", []byte{1, 2, 3, 4, 'a'}, false},
		{"delete bytes", bytes.Repeat([]byte{127}, 10), false},
		{"high bytes count as text", []byte{0x80, 0xff, 0xc3, 0xa9}, true},
		{"just under threshold", append(bytes.Repeat([]byte{1}, 29), bytes.Repeat([]byte{'x'}, 71)...), true},
		{"at threshold", append(bytes.Repeat([]byte{1}, 30), bytes.Repeat([]byte{'x'}, 70)...), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsProbablyText(tt.content); got != tt.want {
				t.Errorf("IsProbablyText(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestIsProbablyText_OnlySamplesPrefix(t *testing.T) {
	// Control bytes after the sample window do not count.
	content := append(bytes.Repeat([]byte{'a'}, 1024), bytes.Repeat([]byte{1}, 4096)...)
	if !IsProbablyText(content) {
		t.Error("control bytes beyond the first 1024 bytes should be ignored")
	}

	// A NUL anywhere still marks the buffer as binary.
	content = append(bytes.Repeat([]byte{'a'}, 4096), 0)
	if IsProbablyText(content) {
		t.Error("a NUL byte beyond the sample window should still mark the buffer binary")
	}
}
