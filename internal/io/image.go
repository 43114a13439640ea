package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"golang.org/x/image/draw"
)

// ImageService downscales oversized page images.
//
// Pages that already fit, or that cannot be decoded, are returned
// unchanged: the service never rejects a page.
//
// Example usage:
//
//	svc := NewImageService()
//	data, resized, err := svc.FitWithin(ctx, pageData, 2000)
type ImageService struct {
	quality int
}

// NewImageService creates a new ImageService encoding JPEG at quality 90.
func NewImageService() *ImageService {
	return &ImageService{quality: 90}
}

// FitWithin resizes an image so neither side exceeds maxSize pixels.
//
// The aspect ratio is preserved and the result is JPEG-encoded. The second
// return value reports whether the image was changed; when it is false the
// original data is returned as is.
//
// The Catmull-Rom algorithm is used for high-quality resizing.
//
// Example:
//
//	// A 3000x2000 page becomes 2000x1333
//	out, resized, err := svc.FitWithin(ctx, data, 2000)
func (s *ImageService) FitWithin(ctx context.Context, data []byte, maxSize int) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return data, false, err
	}
	if maxSize <= 0 {
		return data, false, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// Unknown format: keep the payload untouched.
		return data, false, nil
	}
	if cfg.Width <= maxSize && cfg.Height <= maxSize {
		return data, false, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, false, nil
	}

	width, height := fitDimensions(cfg.Width, cfg.Height, maxSize)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: s.quality}); err != nil {
		return data, false, err
	}

	return buf.Bytes(), true, nil
}

// fitDimensions scales width x height down to fit a maxSize square.
func fitDimensions(width, height, maxSize int) (int, int) {
	if width <= maxSize && height <= maxSize {
		return width, height
	}
	if width >= height {
		h := height * maxSize / width
		if h < 1 {
			h = 1
		}
		return maxSize, h
	}
	w := width * maxSize / height
	if w < 1 {
		w = 1
	}
	return w, maxSize
}
