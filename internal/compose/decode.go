package compose

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Decode decodes png, jpeg or webp bytes.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// DecodeSource decodes a camera still, reporting unusable frames as
// ErrInvalidSource.
func DecodeSource(data []byte) (image.Image, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	if img.Bounds().Empty() {
		return nil, ErrInvalidSource
	}
	return img, nil
}
