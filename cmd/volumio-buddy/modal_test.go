package main

import (
	"errors"
	"image"
	"testing"

	"golang.org/x/image/font/basicfont"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

func TestBarModal_LevelBounds(t *testing.T) {
	for _, level := range []int{0, 50, 100} {
		m, err := BarModal("Volume", level)
		if err != nil {
			t.Fatalf("level %d: unexpected error %v", level, err)
		}
		if m.Kind != ModalBar || m.Level != level {
			t.Fatalf("level %d: unexpected modal %+v", level, m)
		}
	}
	for _, level := range []int{-1, 101, 1000} {
		if _, err := BarModal("Volume", level); !errors.Is(err, ErrInvalidLevel) {
			t.Fatalf("level %d: expected ErrInvalidLevel, got %v", level, err)
		}
	}
}

func TestModalRect_Geometry(t *testing.T) {
	r := modalRect(image.Rect(0, 0, 128, 64))
	want := image.Rect(4, 12, 124, 52)
	if r != want {
		t.Fatalf("got %v, want %v", r, want)
	}
}

func countLit(img *image1bit.VerticalLSB, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestRenderModal_BarFillFollowsLevel(t *testing.T) {
	text := newFaceRasterizer(basicfont.Face7x13)
	screen := image.Rect(0, 0, 128, 64)
	box := modalRect(screen)
	// A row strictly inside the bar.
	row := image.Rect(box.Min.X+barPadding+1, box.Max.Y-barPadding-2, box.Max.X-barPadding-1, box.Max.Y-barPadding-1)

	empty := image1bit.NewVerticalLSB(screen)
	m0, _ := BarModal("Volume 0", 0)
	renderModal(empty, m0, text)

	full := image1bit.NewVerticalLSB(screen)
	m100, _ := BarModal("Volume 100", 100)
	renderModal(full, m100, text)

	half := image1bit.NewVerticalLSB(screen)
	m50, _ := BarModal("Volume 50", 50)
	renderModal(half, m50, text)

	e, h, f := countLit(empty, row), countLit(half, row), countLit(full, row)
	if e != 0 {
		t.Fatalf("level 0 should leave the bar empty, lit=%d", e)
	}
	if f != row.Dx() {
		t.Fatalf("level 100 should fill the bar, lit=%d of %d", f, row.Dx())
	}
	if h <= e || h >= f {
		t.Fatalf("level 50 should be between empty and full, got %d", h)
	}
}

func TestRenderModal_ClearsUnderlyingContent(t *testing.T) {
	text := newFaceRasterizer(basicfont.Face7x13)
	screen := image.Rect(0, 0, 128, 64)
	img := image1bit.NewVerticalLSB(screen)
	fillRect(img, screen, pixelOn)

	renderModal(img, TextModal(""), text)

	box := modalRect(screen)
	inner := box.Inset(1)
	if n := countLit(img, inner); n != 0 {
		t.Fatalf("modal interior should be blank, lit=%d", n)
	}
	if n := countLit(img, image.Rect(0, 0, 128, box.Min.Y)); n != 128*box.Min.Y {
		t.Fatalf("area outside the modal must be untouched")
	}
}
