// Package imageutil decodes client-supplied images and normalizes them to JPEG.
package imageutil

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/kozaktomas/face-registry/internal/constants"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyImage is returned when the payload carries no image data.
var ErrEmptyImage = errors.New("empty image data")

// Image is a decoded client image together with its JPEG encoding.
type Image struct {
	Image  image.Image
	Format string // source format as reported by image.Decode
	JPEG   []byte
}

// Width returns the pixel width of the decoded image.
func (i *Image) Width() int { return i.Image.Bounds().Dx() }

// Height returns the pixel height of the decoded image.
func (i *Image) Height() int { return i.Image.Bounds().Dy() }

// DecodeBase64 decodes a base64 payload, dropping an optional
// "data:image/jpeg;base64," style prefix.
func DecodeBase64(s string) ([]byte, error) {
	if idx := strings.IndexByte(s, ','); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyImage
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some clients strip the padding.
		raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("decoding base64: %w", err)
		}
		data = raw
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return data, nil
}

// Decode decodes raw image bytes, downscales images whose longest side exceeds
// maxSize (0 disables resizing) and re-encodes the result as JPEG.
func Decode(data []byte, maxSize int) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if maxSize > 0 {
		img = fit(img, maxSize)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: constants.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &Image{Image: img, Format: format, JPEG: buf.Bytes()}, nil
}

// DecodeBase64Image is DecodeBase64 followed by Decode.
func DecodeBase64Image(s string, maxSize int) (*Image, error) {
	data, err := DecodeBase64(s)
	if err != nil {
		return nil, err
	}
	return Decode(data, maxSize)
}

// fit resizes an image to fit within maxSize (width or height) while keeping aspect ratio.
func fit(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxSize && height <= maxSize {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}
