package payment

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// qrSize is the side length in pixels of the generated PNG.
const qrSize = 256

// CheckoutQR renders the confirmation URL as a QR code PNG so the link can
// be scanned from another device.
func CheckoutQR(confirmationURL string) ([]byte, error) {
	png, err := qrcode.Encode(confirmationURL, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode checkout qr: %w", err)
	}
	return png, nil
}
