// image_pipeline.go - cover-art pipeline for the FM9 container: scale to
// fit a 100x100 canvas, optionally quantize to a 16-color median-cut
// palette with 4x4 Bayer ordered dithering, encode RGB565 little-endian.
//
// The bilinear scale step is delegated to golang.org/x/image/draw, already
// a direct teacher dependency (used there for video-surface scaling); the
// median-cut and ordered-dither steps have no ecosystem library in the
// example pack and are implemented directly (see DESIGN.md).
package opl9

import (
	"image"
	"image/color"
	"math"
	"sort"

	"golang.org/x/image/draw"
)

const (
	coverWidth        = 100
	coverHeight       = 100
	coverBytes        = coverWidth * coverHeight * 2
	maxImageDim       = 4096
	maxImageFileBytes = 10 * 1024 * 1024
	paletteSize       = 16
)

var bayer4x4 = [4][4]int{
	{0, 8, 2, 10},
	{12, 4, 14, 6},
	{3, 11, 1, 9},
	{15, 7, 13, 5},
}

// BuildCoverImage scales src to fit within a 100x100 canvas (letterboxed
// on a black background, aspect preserved), optionally dithers it down to
// 16 colors, and encodes it as 20000 bytes of RGB565 little-endian pixels.
func BuildCoverImage(src image.Image, srcFileSize int64, dither bool) ([]byte, error) {
	if srcFileSize > maxImageFileBytes {
		return nil, newErr(ErrImageTooLarge, "cover image file exceeds 10 MiB")
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, newErr(ErrImageDecode, "cover image has zero dimension")
	}
	if w > maxImageDim || h > maxImageDim {
		return nil, newErr(ErrImageTooLarge, "cover image dimensions exceed 4096x4096")
	}

	scale := math.Min(float64(coverWidth)/float64(w), float64(coverHeight)/float64(h))
	dw := int(math.Round(float64(w) * scale))
	dh := int(math.Round(float64(h) * scale))
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), src, b, draw.Over, nil)

	canvas := image.NewRGBA(image.Rect(0, 0, coverWidth, coverHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	ox, oy := (coverWidth-dw)/2, (coverHeight-dh)/2
	draw.Draw(canvas, image.Rect(ox, oy, ox+dw, oy+dh), scaled, image.Point{}, draw.Over)

	if dither {
		palette := medianCutPalette(canvas, paletteSize)
		ditherBayer(canvas, palette)
	}

	out := make([]byte, coverBytes)
	idx := 0
	for y := 0; y < coverHeight; y++ {
		for x := 0; x < coverWidth; x++ {
			r, g, bl, _ := canvas.At(x, y).RGBA()
			v := rgb565(byte(r>>8), byte(g>>8), byte(bl>>8))
			out[idx] = byte(v)
			out[idx+1] = byte(v >> 8)
			idx += 2
		}
	}
	return out, nil
}

func rgb565(r, g, b byte) uint16 {
	return (uint16(r&0xF8) << 8) | (uint16(g&0xFC) << 3) | uint16(b>>3)
}

type rgbPixel struct{ r, g, b uint8 }

// weightedDistance uses the R=2/G=4/B=3 weighting the eye's differing
// channel sensitivity calls for, rather than a plain Euclidean distance.
func weightedDistance(a, b rgbPixel) int {
	dr, dg, db := int(a.r)-int(b.r), int(a.g)-int(b.g), int(a.b)-int(b.b)
	return 2*dr*dr + 4*dg*dg + 3*db*db
}

func channelOf(p rgbPixel, axis int) uint8 {
	switch axis {
	case 0:
		return p.r
	case 1:
		return p.g
	default:
		return p.b
	}
}

func channelRange(bucket []rgbPixel, axis int) int {
	if len(bucket) == 0 {
		return 0
	}
	lo, hi := channelOf(bucket[0], axis), channelOf(bucket[0], axis)
	for _, p := range bucket[1:] {
		v := channelOf(p, axis)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return int(hi) - int(lo)
}

func averageBucket(bucket []rgbPixel) rgbPixel {
	var sr, sg, sb int
	for _, p := range bucket {
		sr += int(p.r)
		sg += int(p.g)
		sb += int(p.b)
	}
	n := len(bucket)
	if n == 0 {
		return rgbPixel{}
	}
	return rgbPixel{uint8(sr / n), uint8(sg / n), uint8(sb / n)}
}

// medianCutPalette builds a size-entry palette from the canvas's non-black
// pixels (black is reserved for the letterbox background) and guarantees
// black is present as a palette entry so the dithered background stays
// pure black.
func medianCutPalette(img *image.RGBA, size int) []rgbPixel {
	b := img.Bounds()
	var pixels []rgbPixel
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			p := rgbPixel{uint8(r >> 8), uint8(g >> 8), uint8(bl >> 8)}
			if p.r == 0 && p.g == 0 && p.b == 0 {
				continue
			}
			pixels = append(pixels, p)
		}
	}
	if len(pixels) == 0 {
		return []rgbPixel{{0, 0, 0}}
	}

	buckets := [][]rgbPixel{pixels}
	for len(buckets) < size {
		splitIdx, splitAxis, bestRange := -1, 0, -1
		for i, bucket := range buckets {
			if len(bucket) < 2 {
				continue
			}
			for axis := 0; axis < 3; axis++ {
				r := channelRange(bucket, axis)
				if r > bestRange {
					bestRange, splitIdx, splitAxis = r, i, axis
				}
			}
		}
		if splitIdx == -1 {
			break
		}
		bucket := buckets[splitIdx]
		sort.Slice(bucket, func(i, j int) bool {
			return channelOf(bucket[i], splitAxis) < channelOf(bucket[j], splitAxis)
		})
		mid := len(bucket) / 2
		left := append([]rgbPixel{}, bucket[:mid]...)
		right := append([]rgbPixel{}, bucket[mid:]...)
		buckets[splitIdx] = left
		buckets = append(buckets, right)
	}

	palette := make([]rgbPixel, 0, len(buckets))
	hasBlack := false
	for _, bucket := range buckets {
		avg := averageBucket(bucket)
		if avg.r == 0 && avg.g == 0 && avg.b == 0 {
			hasBlack = true
		}
		palette = append(palette, avg)
	}
	if !hasBlack {
		palette[len(palette)-1] = rgbPixel{0, 0, 0}
	}
	return palette
}

func nearestPaletteColor(p rgbPixel, palette []rgbPixel) rgbPixel {
	best := palette[0]
	bestDist := weightedDistance(p, best)
	for _, c := range palette[1:] {
		if d := weightedDistance(p, c); d < bestDist {
			bestDist, best = d, c
		}
	}
	return best
}

func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

const ditherSpread = 32

// ditherBayer quantizes canvas in place to palette using a 4x4 ordered
// (Bayer) dither: each pixel's channels are nudged by a position-dependent
// threshold before nearest-color matching, which breaks up banding without
// the serial dependency an error-diffusion dither would need.
func ditherBayer(img *image.RGBA, palette []rgbPixel) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			threshold := (bayer4x4[y%4][x%4]-7)*ditherSpread/8 - ditherSpread/2
			p := rgbPixel{
				clamp8(int(r>>8) + threshold),
				clamp8(int(g>>8) + threshold),
				clamp8(int(bl>>8) + threshold),
			}
			nearest := nearestPaletteColor(p, palette)
			img.SetRGBA(x, y, color.RGBA{nearest.r, nearest.g, nearest.b, 255})
		}
	}
}
