package ggbasm

import (
	"image"
	"image/png"
	"io"

	"github.com/rukai/ggbasm/asm"
)

// A Color is a 24-bit RGB value in a source image. Color maps describe
// how image colors become the Game Boy's four palette indexes.
type Color struct {
	R, G, B uint8
}

// TilesFromPNG converts a PNG into Game Boy tile data: the image is cut
// into 8x8 tiles left to right, top to bottom, and each tile becomes 16
// bytes, two per pixel row, the low bitplane byte followed by the high
// bitplane byte. Every pixel color must appear in colorMap with a value
// of 0..3.
func TilesFromPNG(r io.Reader, colorMap map[Color]uint8) ([]byte, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, asm.Errorf(asm.ErrIO, "cannot decode png: %v", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w%8 != 0 || h%8 != 0 {
		return nil, asm.Errorf(asm.ErrRange, "image dimensions %dx%d are not a multiple of 8", w, h)
	}

	var out []byte
	for tileY := 0; tileY < h/8; tileY++ {
		for tileX := 0; tileX < w/8; tileX++ {
			tile, err := tileBytes(img, bounds.Min.X+tileX*8, bounds.Min.Y+tileY*8, colorMap)
			if err != nil {
				return nil, err
			}
			out = append(out, tile...)
		}
	}
	return out, nil
}

// SpriteFromPNG converts a PNG into 8x16 sprite data: each column of
// two stacked tiles is emitted top tile then bottom tile, matching the
// hardware's 8x16 sprite mode tile pairing.
func SpriteFromPNG(r io.Reader, colorMap map[Color]uint8) ([]byte, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, asm.Errorf(asm.ErrIO, "cannot decode png: %v", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w%8 != 0 || h%16 != 0 {
		return nil, asm.Errorf(asm.ErrRange, "sprite image dimensions %dx%d are not a multiple of 8x16", w, h)
	}

	var out []byte
	for pairY := 0; pairY < h/16; pairY++ {
		for tileX := 0; tileX < w/8; tileX++ {
			for half := 0; half < 2; half++ {
				tile, err := tileBytes(img, bounds.Min.X+tileX*8, bounds.Min.Y+pairY*16+half*8, colorMap)
				if err != nil {
					return nil, err
				}
				out = append(out, tile...)
			}
		}
	}
	return out, nil
}

// tileBytes encodes the 8x8 tile whose top-left pixel is (x0, y0).
func tileBytes(img image.Image, x0, y0 int, colorMap map[Color]uint8) ([]byte, error) {
	out := make([]byte, 0, 16)
	for y := 0; y < 8; y++ {
		var lo, hi byte
		for x := 0; x < 8; x++ {
			r, g, b, _ := img.At(x0+x, y0+y).RGBA()
			color := Color{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
			index, ok := colorMap[color]
			if !ok {
				return nil, asm.Errorf(asm.ErrRange,
					"color #%02x%02x%02x at (%d, %d) is not mapped to a gameboy color",
					color.R, color.G, color.B, x0+x, y0+y)
			}
			lo |= (index & 0b01) << (7 - x)
			hi |= (index & 0b10) >> 1 << (7 - x)
		}
		out = append(out, lo, hi)
	}
	return out, nil
}
