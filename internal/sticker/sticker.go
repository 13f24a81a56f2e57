// Package sticker produces electronic stickers: QR codes that encode a
// driver's public verification URL. Scanning a sticker opens the public
// verification page, which needs no session.
package sticker

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	// pngSize is the rendered QR size in pixels.
	pngSize = 300
	// verifyPathPrefix is the public verification route of the console.
	verifyPathPrefix = "/verify-driver/"
)

// Generator builds sticker images for driver records.
type Generator struct {
	baseURL string
}

// NewGenerator creates a Generator. baseURL is the externally reachable
// console URL that scanned codes will open.
func NewGenerator(baseURL string) *Generator {
	return &Generator{baseURL: strings.TrimRight(baseURL, "/")}
}

// VerificationURL returns the public verification URL for a driver.
func (g *Generator) VerificationURL(driverID int) string {
	return fmt.Sprintf("%s%s%d", g.baseURL, verifyPathPrefix, driverID)
}

// StickerPNG encodes the driver's verification URL as a QR code PNG.
// Medium error correction matches physical stickers that see wear.
func (g *Generator) StickerPNG(driverID int) ([]byte, error) {
	png, err := qrcode.Encode(g.VerificationURL(driverID), qrcode.Medium, pngSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sticker: %w", err)
	}
	return png, nil
}
