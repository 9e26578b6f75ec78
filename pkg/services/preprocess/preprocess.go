// Package preprocess normalizes photographed receipts for OCR: resize,
// grayscale, skew correction, denoising and local contrast enhancement.
// The whole pipeline is a pure function from image to image.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"github.com/hellyoshaqiqie17/reimbursement/pkg/config"
)

// ErrInvalidImage marks an empty or undecodable input image. Nothing
// downstream runs when it is returned.
var ErrInvalidImage = errors.New("invalid image")

// Normalizer applies the preprocessing pipeline. It is stateless apart
// from configuration and safe for concurrent use.
type Normalizer struct {
	logger *zap.Logger
	cfg    config.Image
}

// NewNormalizer creates a Normalizer with the given tunables.
func NewNormalizer(logger *zap.Logger, cfg config.Image) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger, cfg: cfg}
}

// Decode parses raw upload bytes into an image. JPEG, PNG, TIFF, BMP and
// WebP are accepted.
func (n *Normalizer) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidImage)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// Normalize runs the full pipeline: resize within the configured maximum,
// grayscale, deskew, denoise, contrast enhancement. The result is
// converted back to a 3-channel representation because detection engines
// expect color input.
func (n *Normalizer) Normalize(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero-sized image", ErrInvalidImage)
	}

	img = n.resize(img)
	gray := toGray(img)

	if angle, ok := n.detectSkewAngle(gray); ok {
		n.logger.Info("correcting skew", zap.Float64("degrees", angle))
		gray = rotateGray(gray, -angle)
	}

	gray = denoiseNLMeans(gray, n.cfg.DenoiseStrength)
	gray = clahe(gray, n.cfg.CLAHEClipLimit, n.cfg.CLAHETileSize)

	return imaging.Clone(gray), nil
}

// resize scales the image down when either dimension exceeds the
// configured maximum, preserving aspect ratio. Images within bounds are
// never upscaled. Box filtering averages source areas, which keeps thin
// strokes intact when shrinking photos.
func (n *Normalizer) resize(img image.Image) image.Image {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if w <= n.cfg.MaxWidth && h <= n.cfg.MaxHeight {
		return img
	}

	scale := float64(n.cfg.MaxWidth) / float64(w)
	if s := float64(n.cfg.MaxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	n.logger.Info("resizing image",
		zap.Int("from_width", w), zap.Int("from_height", h),
		zap.Int("to_width", newW), zap.Int("to_height", newH),
	)
	return imaging.Resize(img, newW, newH, imaging.Box)
}

// toGray flattens any image to 8-bit grayscale.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x-bounds.Min.X, y-bounds.Min.Y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}
