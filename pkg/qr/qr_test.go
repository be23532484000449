package qr

import (
	"bytes"
	"testing"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestEncodePNG(t *testing.T) {
	png, err := EncodePNG("https://events.example.com/registrations/123/checkin")
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Errorf("output is not a PNG, first bytes: %x", png[:4])
	}
}

func TestEncodePNGTooLong(t *testing.T) {
	// QR capacity is finite; an absurdly long URL must error, not panic.
	long := make([]byte, 8000)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := EncodePNG(string(long)); err == nil {
		t.Error("expected error for oversized payload")
	}
}
