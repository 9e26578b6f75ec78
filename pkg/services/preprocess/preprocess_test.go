package preprocess

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellyoshaqiqie17/reimbursement/pkg/config"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(nil, config.Default().Image)
}

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeRejectsEmptyInput(t *testing.T) {
	n := newTestNormalizer()
	_, err := n.Decode(nil)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = n.Decode([]byte{})
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	n := newTestNormalizer()
	_, err := n.Decode([]byte("this is not an image"))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestDecodePNG(t *testing.T) {
	n := newTestNormalizer()
	img, err := n.Decode(pngBytes(t, uniformGray(12, 8, 128)))
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

func TestNormalizeRejectsNilAndEmpty(t *testing.T) {
	n := newTestNormalizer()

	_, err := n.Normalize(nil)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = n.Normalize(image.NewGray(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestResizeDownscalesLargeImages(t *testing.T) {
	n := newTestNormalizer()
	out := n.resize(uniformGray(2560, 1920, 128))
	assert.Equal(t, 1280, out.Bounds().Dx())
	assert.Equal(t, 960, out.Bounds().Dy())
}

func TestResizeNeverUpscales(t *testing.T) {
	n := newTestNormalizer()
	src := uniformGray(100, 80, 128)
	out := n.resize(src)
	assert.Same(t, image.Image(src), out)
}

func TestNormalizeSmallImage(t *testing.T) {
	n := newTestNormalizer()
	out, err := n.Normalize(uniformGray(40, 30, 200))
	require.NoError(t, err)
	assert.Equal(t, 40, out.Bounds().Dx())
	assert.Equal(t, 30, out.Bounds().Dy())
	assert.IsType(t, &image.NRGBA{}, out)
}

func TestDetectSkewAngleBlankImage(t *testing.T) {
	n := newTestNormalizer()
	_, ok := n.detectSkewAngle(uniformGray(200, 200, 255))
	assert.False(t, ok)
}

func TestDetectSkewAngleTiltedLines(t *testing.T) {
	// White canvas with three thick dark strokes tilted three degrees,
	// like text baselines on a slightly rotated receipt.
	img := uniformGray(300, 300, 255)
	slope := math.Tan(3 * math.Pi / 180)
	for _, y0 := range []int{80, 150, 220} {
		for x := 10; x < 290; x++ {
			yc := y0 + int(math.Round(slope*float64(x-10)))
			for dy := -1; dy <= 1; dy++ {
				img.Pix[(yc+dy)*img.Stride+x] = 0
			}
		}
	}

	n := newTestNormalizer()
	angle, ok := n.detectSkewAngle(img)
	require.True(t, ok)
	assert.InDelta(t, 3.0, angle, 1.6)
}

func TestRotateGrayPreservesUniform(t *testing.T) {
	out := rotateGray(uniformGray(50, 40, 180), 10)
	assert.Greater(t, out.Bounds().Dx(), 50)
	assert.Greater(t, out.Bounds().Dy(), 40)
	for _, v := range out.Pix {
		assert.Equal(t, uint8(180), v)
	}
}

func TestRotateGrayRightAngleSwapsDimensions(t *testing.T) {
	out := rotateGray(uniformGray(40, 20, 128), 90)
	assert.InDelta(t, 20, out.Bounds().Dx(), 1)
	assert.InDelta(t, 40, out.Bounds().Dy(), 1)
}

func TestCLAHEUniformStaysUniform(t *testing.T) {
	out := clahe(uniformGray(64, 64, 200), 2.0, 8)
	assert.Equal(t, 64, out.Bounds().Dx())
	assert.Equal(t, 64, out.Bounds().Dy())
	first := out.Pix[0]
	for _, v := range out.Pix {
		assert.Equal(t, first, v)
	}
}

func TestDenoiseUniformUnchanged(t *testing.T) {
	out := denoiseNLMeans(uniformGray(20, 20, 90), 10)
	for _, v := range out.Pix {
		assert.Equal(t, uint8(90), v)
	}
}

func TestDenoiseDisabledReturnsSource(t *testing.T) {
	src := uniformGray(10, 10, 90)
	assert.Same(t, src, denoiseNLMeans(src, 0))
}

// naiveNLMeans recomputes every patch distance directly. It is the
// reference the integral-image pass must agree with.
func naiveNLMeans(src *image.Gray, strength float64) *image.Gray {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	dst := image.NewGray(src.Bounds())
	norm := strength * strength * float64((2*patchRadius+1)*(2*patchRadius+1))

	at := func(x, y int) float64 {
		return float64(src.Pix[clampInt(y, 0, h-1)*src.Stride+clampInt(x, 0, w-1)])
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var weightSum, valueSum float64
			for dy := -searchRadius; dy <= searchRadius; dy++ {
				for dx := -searchRadius; dx <= searchRadius; dx++ {
					var dist2 float64
					for py := -patchRadius; py <= patchRadius; py++ {
						for px := -patchRadius; px <= patchRadius; px++ {
							d := at(x+px, y+py) - at(x+dx+px, y+dy+py)
							dist2 += d * d
						}
					}
					weight := math.Exp(-dist2 / norm)
					weightSum += weight
					valueSum += weight * at(x+dx, y+dy)
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8(math.Round(valueSum / weightSum))
		}
	}
	return dst
}

func TestDenoiseMatchesDirectComputation(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 14, 11))
	for y := 0; y < 11; y++ {
		for x := 0; x < 14; x++ {
			img.Pix[y*img.Stride+x] = uint8((x*31 + y*17 + x*y*7) % 256)
		}
	}

	got := denoiseNLMeans(img, 10)
	want := naiveNLMeans(img, 10)
	for i := range want.Pix {
		// Summation order differs, so allow one intensity level of
		// rounding slack.
		assert.InDelta(t, want.Pix[i], got.Pix[i], 1, "pixel %d", i)
	}
}

func BenchmarkDenoiseNLMeans(b *testing.B) {
	img := image.NewGray(image.Rect(0, 0, 320, 240))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7 % 251)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		denoiseNLMeans(img, 10)
	}
}

func TestAdaptiveThresholdBinarizes(t *testing.T) {
	// Light background with a dark square in the middle.
	img := uniformGray(30, 30, 220)
	for y := 11; y < 19; y++ {
		for x := 11; x < 19; x++ {
			img.Pix[y*img.Stride+x] = 30
		}
	}

	n := newTestNormalizer()
	out := n.AdaptiveThreshold(img, 11, 2)
	for _, v := range out.Pix {
		assert.Contains(t, []uint8{0, 255}, v)
	}
	assert.Equal(t, uint8(255), out.Pix[0])
	assert.Equal(t, uint8(0), out.Pix[15*out.Stride+15])
}
