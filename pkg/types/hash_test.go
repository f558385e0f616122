package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHash_StringRoundtrip(t *testing.T) {
	var h Hash
	for i := range h {
		h[i] = byte(255 - i)
	}

	s := h.String()
	if len(s) != 64 {
		t.Errorf("String() length = %d, want 64", len(s))
	}

	parsed, err := ParseHash(s)
	if err != nil {
		t.Fatalf("ParseHash() error: %v", err)
	}
	if parsed != h {
		t.Errorf("ParseHash(String()) = %v, want %v", parsed, h)
	}
}

func TestParseHash_Invalid(t *testing.T) {
	cases := []string{
		"zz" + strings.Repeat("00", 31), // non-hex
		strings.Repeat("00", 16),        // too short
		strings.Repeat("00", 33),        // too long
	}
	for _, s := range cases {
		if _, err := ParseHash(s); err == nil {
			t.Errorf("ParseHash(%q) succeeded, want error", s)
		}
	}
}

func TestHash_JSON(t *testing.T) {
	var h Hash
	h[0] = 0x12
	h[31] = 0x34

	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var decoded Hash
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if decoded != h {
		t.Errorf("JSON roundtrip = %v, want %v", decoded, h)
	}
}

func TestHash_IsZero(t *testing.T) {
	var h Hash
	if !h.IsZero() {
		t.Error("zero hash reported non-zero")
	}
	h[10] = 1
	if h.IsZero() {
		t.Error("non-zero hash reported zero")
	}
}
