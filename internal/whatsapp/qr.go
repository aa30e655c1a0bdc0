package whatsapp

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	qrPNGPath = "whatsapp_qr.png"
	qrPNGSize = 256
)

// WriteQRFile saves the pairing code as a PNG so a headless operator can
// scan it from disk.
func WriteQRFile(code, path string) error {
	if err := qrcode.WriteFile(code, qrcode.Medium, qrPNGSize*2, path); err != nil {
		return fmt.Errorf("failed to write QR code: %w", err)
	}
	return nil
}

// GenerateQRDataURL renders code as a base64 PNG data URL for the status stream.
func GenerateQRDataURL(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, qrPNGSize)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
