package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/h2non/bimg"

	"github.com/fleveque/pokemmo-companion/internal/model"
	"github.com/fleveque/pokemmo-companion/internal/storage"
)

// ImageProcessor resizes downloaded sprites into every served size.
// It uses bimg (Go bindings for libvips), which needs libvips installed on
// the host.
type ImageProcessor struct {
	fs *storage.FileSystem
}

// NewImageProcessor creates a new ImageProcessor.
func NewImageProcessor(fs *storage.FileSystem) *ImageProcessor {
	return &ImageProcessor{fs: fs}
}

// ProcessAll takes raw sprite bytes (PNG or GIF) and writes a square PNG for
// every size under key/variant. All sizes are attempted even if some fail.
func (p *ImageProcessor) ProcessAll(key, variant string, imageData []byte) (map[model.SpriteSize]bool, error) {
	results := make(map[model.SpriteSize]bool)
	var errs []string

	for _, size := range model.AllSizes {
		resized, err := resizeToSquarePNG(imageData, model.SizePixels[size])
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", size, err))
			results[size] = false
			continue
		}

		if err := p.fs.Write(key, variant, size, resized); err != nil {
			errs = append(errs, fmt.Sprintf("%s write: %v", size, err))
			results[size] = false
			continue
		}

		results[size] = true
	}

	if len(errs) > 0 {
		return results, fmt.Errorf("processing errors: %s", strings.Join(errs, "; "))
	}
	return results, nil
}

// resizeToSquarePNG resizes an image to a square PNG of the given pixel size.
// Sprites are pixel art, so scaling uses nearest-neighbour to keep edges hard.
func resizeToSquarePNG(imageData []byte, pixels int) ([]byte, error) {
	img := bimg.NewImage(imageData)

	resized, err := img.Process(bimg.Options{
		Width:          pixels,
		Height:         pixels,
		Type:           bimg.PNG,
		Embed:          true,
		Enlarge:        true,
		Interpolator:   bimg.Nearest,
		Background:     bimg.Color{R: 0, G: 0, B: 0},
		Interpretation: bimg.InterpretationSRGB,
	})
	if err != nil {
		return nil, fmt.Errorf("resizing to %dpx: %w", pixels, err)
	}
	return resized, nil
}

// Placeholder returns a transparent square PNG with a faint circle, used
// when no sprite source works. It is generated, never cached on disk.
func Placeholder(size model.SpriteSize) ([]byte, error) {
	pixels, ok := model.SizePixels[size]
	if !ok {
		return nil, fmt.Errorf("unknown sprite size %q", size)
	}

	img := image.NewNRGBA(image.Rect(0, 0, pixels, pixels))
	fill := color.NRGBA{R: 160, G: 160, B: 160, A: 96}
	r := pixels / 3
	cx, cy := pixels/2, pixels/2
	for y := 0; y < pixels; y++ {
		for x := 0; x < pixels; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(x, y, fill)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

// ApplyBackground flattens the alpha channel of a PNG onto a solid color.
// It runs at request time when the `bg` query param is given, so the cached
// transparent PNG is never modified.
func ApplyBackground(imageData []byte, hexColor string) ([]byte, error) {
	r, g, b, err := parseHexColor(hexColor)
	if err != nil {
		return nil, err
	}

	img := bimg.NewImage(imageData)
	return img.Process(bimg.Options{
		Background:     bimg.Color{R: r, G: g, B: b},
		Type:           bimg.PNG,
		Interpretation: bimg.InterpretationSRGB,
	})
}

// parseHexColor converts a hex color string (with or without #) to RGB values.
func parseHexColor(hex string) (uint8, uint8, uint8, error) {
	hex = strings.TrimPrefix(hex, "#")

	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid hex color: %q (expected 6 characters)", hex)
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return 0, 0, 0, fmt.Errorf("parsing hex color %q: %w", hex, err)
	}
	return r, g, b, nil
}
