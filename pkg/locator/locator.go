// Package locator turns batch IDs into the public provenance URL and a
// scannable QR image of it.
package locator

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// DefaultSizePx is the QR image edge length when none is configured.
const DefaultSizePx = 256

// Locator is the public address of a batch's provenance view.
type Locator struct {
	URL string
	PNG []byte
}

// Generator builds locators against a fixed public origin.
type Generator struct {
	baseURL string
	sizePx  int
}

// NewGenerator creates a Generator. baseURL must be absolute; a trailing
// slash is ignored.
func NewGenerator(baseURL string, sizePx int) (*Generator, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("locator base URL must be absolute, got %q", baseURL)
	}
	if sizePx <= 0 {
		sizePx = DefaultSizePx
	}
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		sizePx:  sizePx,
	}, nil
}

// URL returns the provenance URL for batchID. The same ID always yields
// the same URL.
func (g *Generator) URL(batchID string) string {
	return g.baseURL + "/batch/" + url.PathEscape(batchID) + "/"
}

// Generate returns the URL for batchID and a PNG QR code encoding it.
func (g *Generator) Generate(batchID string) (*Locator, error) {
	if batchID == "" {
		return nil, errors.New("batch ID is required")
	}

	target := g.URL(batchID)
	png, err := qrcode.Encode(target, qrcode.Medium, g.sizePx)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return &Locator{URL: target, PNG: png}, nil
}
