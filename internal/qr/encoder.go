// Package qr renders public photo addresses as QR code PNGs.
package qr

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

var ErrEncodingFailed = errors.New("qr encoding failed")

// Fixed rendering policy. Identical targets always produce identical bytes.
const (
	Margin = 1
	Scale  = 8
)

// Link is an encoded target address.
type Link struct {
	Target string
	PNG    []byte
}

// DataURL returns the PNG as a data: URL for direct use in an <img>.
func (l Link) DataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(l.PNG)
}

type Encoder struct {
	level  qrcode.RecoveryLevel
	margin int
	scale  int
}

// NewEncoder returns an encoder with medium error correction, a one module
// margin and 8 pixels per module.
func NewEncoder() *Encoder {
	return &Encoder{level: qrcode.Medium, margin: Margin, scale: Scale}
}

// Target joins base and address. An empty base leaves the address relative.
func Target(address, base string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return address
	}
	return base + address
}

// Encode builds the target for address and renders it.
func (e *Encoder) Encode(address, base string) (Link, error) {
	target := Target(address, base)
	code, err := qrcode.New(target, e.level)
	if err != nil {
		return Link{}, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	code.DisableBorder = true

	var buf bytes.Buffer
	if err := png.Encode(&buf, e.render(code.Bitmap())); err != nil {
		return Link{}, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	return Link{Target: target, PNG: buf.Bytes()}, nil
}

func (e *Encoder) render(modules [][]bool) *image.Paletted {
	size := (len(modules) + 2*e.margin) * e.scale
	img := image.NewPaletted(image.Rect(0, 0, size, size), color.Palette{color.White, color.Black})
	for y, row := range modules {
		for x, dark := range row {
			if !dark {
				continue
			}
			x0 := (x + e.margin) * e.scale
			y0 := (y + e.margin) * e.scale
			for py := y0; py < y0+e.scale; py++ {
				for px := x0; px < x0+e.scale; px++ {
					img.SetColorIndex(px, py, 1)
				}
			}
		}
	}
	return img
}
