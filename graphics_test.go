package ggbasm

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

var testPalette = map[Color]uint8{
	{0xFF, 0xFF, 0xFF}: 0,
	{0xAA, 0xAA, 0xAA}: 1,
	{0x55, 0x55, 0x55}: 2,
	{0x00, 0x00, 0x00}: 3,
}

func encodePNG(t *testing.T, img image.Image) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(buf.Bytes())
}

func solidImage(w, h int, c Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{c.R, c.G, c.B, 0xFF})
		}
	}
	return img
}

func TestTilesFromPNGSolid(t *testing.T) {
	// Index 3 sets both bitplanes for every pixel.
	data, err := TilesFromPNG(encodePNG(t, solidImage(8, 8, Color{0, 0, 0})), testPalette)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, bytes.Repeat([]byte{0xFF}, 16)) {
		t.Errorf("tile bytes are % X", data)
	}

	// Index 1 sets only the low bitplane.
	data, err = TilesFromPNG(encodePNG(t, solidImage(8, 8, Color{0xAA, 0xAA, 0xAA})), testPalette)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, bytes.Repeat([]byte{0xFF, 0x00}, 8)) {
		t.Errorf("tile bytes are % X", data)
	}
}

func TestTilesFromPNGPattern(t *testing.T) {
	// Left half index 1, right half index 2: low plane F0, high plane 0F.
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				img.Set(x, y, color.NRGBA{0xAA, 0xAA, 0xAA, 0xFF})
			} else {
				img.Set(x, y, color.NRGBA{0x55, 0x55, 0x55, 0xFF})
			}
		}
	}
	data, err := TilesFromPNG(encodePNG(t, img), testPalette)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, bytes.Repeat([]byte{0xF0, 0x0F}, 8)) {
		t.Errorf("tile bytes are % X", data)
	}
}

func TestTilesFromPNGOrder(t *testing.T) {
	// A 16x8 image produces the left tile before the right tile.
	img := image.NewNRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			c := color.NRGBA{0xFF, 0xFF, 0xFF, 0xFF}
			if x >= 8 {
				c = color.NRGBA{0x00, 0x00, 0x00, 0xFF}
			}
			img.Set(x, y, c)
		}
	}
	data, err := TilesFromPNG(encodePNG(t, img), testPalette)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 32 {
		t.Fatalf("got %d bytes, expected 32", len(data))
	}
	if !bytes.Equal(data[:16], make([]byte, 16)) {
		t.Errorf("left tile is % X", data[:16])
	}
	if !bytes.Equal(data[16:], bytes.Repeat([]byte{0xFF}, 16)) {
		t.Errorf("right tile is % X", data[16:])
	}
}

func TestTilesFromPNGUnmappedColor(t *testing.T) {
	_, err := TilesFromPNG(encodePNG(t, solidImage(8, 8, Color{0x12, 0x34, 0x56})), testPalette)
	if err == nil {
		t.Error("expected an error for an unmapped color")
	}
}

func TestTilesFromPNGBadDimensions(t *testing.T) {
	_, err := TilesFromPNG(encodePNG(t, solidImage(7, 8, Color{0, 0, 0})), testPalette)
	if err == nil {
		t.Error("expected an error for non-multiple-of-8 dimensions")
	}
}

func TestSpriteFromPNG(t *testing.T) {
	// An 8x16 sprite: white top tile, black bottom tile, emitted in
	// that order.
	img := image.NewNRGBA(image.Rect(0, 0, 8, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 8; x++ {
			c := color.NRGBA{0xFF, 0xFF, 0xFF, 0xFF}
			if y >= 8 {
				c = color.NRGBA{0x00, 0x00, 0x00, 0xFF}
			}
			img.Set(x, y, c)
		}
	}
	data, err := SpriteFromPNG(encodePNG(t, img), testPalette)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 32 {
		t.Fatalf("got %d bytes, expected 32", len(data))
	}
	if !bytes.Equal(data[:16], make([]byte, 16)) {
		t.Errorf("top tile is % X", data[:16])
	}
	if !bytes.Equal(data[16:], bytes.Repeat([]byte{0xFF}, 16)) {
		t.Errorf("bottom tile is % X", data[16:])
	}
}
