package artwork

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/charmbracelet/log"
	"github.com/nbrennan/huesic/internal/models"
)

const (
	// cap on sampled pixels so large artwork stays cheap to process
	maxSamples = 4096

	// pixels darker/lighter than these luma bounds are ignored so dark or
	// washed-out covers still produce a usable color
	lumaMin = 16
	lumaMax = 240

	// quantization bucket width per channel
	bucketWidth = 32
)

// Extractor derives a single representative color from artwork bytes.
// The same bytes always produce the same color.
type Extractor struct {
	logger *log.Logger
}

func NewExtractor(logger *log.Logger) *Extractor {
	return &Extractor{logger: logger}
}

type bucket struct {
	count   int
	r, g, b int
}

// Extract decodes the image, samples pixels on a fixed stride, quantizes
// them into a reduced palette and returns the mean color of the most
// populated bucket. Near-black and near-white pixels are excluded; if that
// excludes everything the mean over all pixels is used instead.
func (e *Extractor) Extract(data []byte) (models.Color, error) {

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return models.Color{}, fmt.Errorf("%w: %s", models.ErrImageDecode, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return models.Color{}, fmt.Errorf("%w: empty image", models.ErrImageDecode)
	}

	stride := int(math.Sqrt(float64(width*height) / maxSamples))
	if stride < 1 {
		stride = 1
	}

	buckets := map[uint32]*bucket{}
	var allR, allG, allB, allCount int

	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			r := int(r16 >> 8)
			g := int(g16 >> 8)
			b := int(b16 >> 8)

			allR += r
			allG += g
			allB += b
			allCount++

			luma := (2126*r + 7152*g + 722*b) / 10000
			if luma < lumaMin || luma > lumaMax {
				continue
			}

			key := uint32(r/bucketWidth)<<16 | uint32(g/bucketWidth)<<8 | uint32(b/bucketWidth)
			bk, ok := buckets[key]
			if !ok {
				bk = &bucket{}
				buckets[key] = bk
			}
			bk.count++
			bk.r += r
			bk.g += g
			bk.b += b
		}
	}

	modal := modalBucket(buckets)
	if modal == nil {
		// everything was near-black or near-white, fall back to the plain mean
		return meanColor(allR, allG, allB, allCount), nil
	}

	return meanColor(modal.r, modal.g, modal.b, modal.count), nil
}

// modalBucket picks the most populated bucket; ties break on the smaller
// key so the result never depends on map iteration order.
func modalBucket(buckets map[uint32]*bucket) *bucket {
	var best *bucket
	var bestKey uint32
	for key, bk := range buckets {
		if best == nil || bk.count > best.count || (bk.count == best.count && key < bestKey) {
			best = bk
			bestKey = key
		}
	}
	return best
}

func meanColor(r, g, b, count int) models.Color {
	if count == 0 {
		return models.Color{R: 255, G: 255, B: 255}
	}
	color := models.Color{
		R: uint8(r / count),
		G: uint8(g / count),
		B: uint8(b / count),
	}
	// an all-black result would turn the lights off visually, use white instead
	if color.R == 0 && color.G == 0 && color.B == 0 {
		return models.Color{R: 255, G: 255, B: 255}
	}
	return color
}
