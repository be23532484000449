// Package qr renders check-in URLs as QR code images.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Size is the pixel width/height of generated QR codes.
const Size = 256

// EncodePNG returns a PNG QR code for the given URL. Medium error correction
// is enough for a code scanned off a phone screen or a printed badge.
func EncodePNG(url string) ([]byte, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, Size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
