package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/png"
	"log/slog"
	"os"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	_ "golang.org/x/image/bmp"
)

var (
	pixelOn  color.Color = image1bit.On
	pixelOff color.Color = image1bit.Off
)

// TextRasterizer measures and draws single lines of text.
type TextRasterizer interface {
	// Measure returns the advance width and line height of s in pixels.
	Measure(s string) (w, h int)
	// DrawText draws s with its top-left corner at pt.
	DrawText(dst draw.Image, pt image.Point, s string)
}

// faceRasterizer draws with a golang.org/x/image font face.
type faceRasterizer struct {
	face   font.Face
	ascent int
	height int
}

func newFaceRasterizer(face font.Face) *faceRasterizer {
	m := face.Metrics()
	return &faceRasterizer{
		face:   face,
		ascent: m.Ascent.Ceil(),
		height: (m.Ascent + m.Descent).Ceil(),
	}
}

func (r *faceRasterizer) Measure(s string) (int, int) {
	return font.MeasureString(r.face, s).Ceil(), r.height
}

func (r *faceRasterizer) DrawText(dst draw.Image, pt image.Point, s string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(pixelOn),
		Face: r.face,
		Dot:  fixed.P(pt.X, pt.Y+r.ascent),
	}
	d.DrawString(s)
}

// loadFontFace resolves a font setting: "basic", "inconsolata", or a path to
// a TrueType/OpenType file rendered at size points.
func loadFontFace(name string, size float64) (font.Face, error) {
	switch strings.ToLower(name) {
	case "", "basic":
		return basicfont.Face7x13, nil
	case "inconsolata":
		return inconsolata.Regular8x16, nil
	}

	data, err := os.ReadFile(ExpandPath(name))
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", name, err)
	}
	if size <= 0 {
		size = defaultFontSize
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("font face %s: %w", name, err)
	}
	return face, nil
}

// newTextRasterizer loads the configured face, falling back to the built-in
// bitmap font when the file cannot be used.
func newTextRasterizer(name string, size float64, logger *slog.Logger) TextRasterizer {
	face, err := loadFontFace(name, size)
	if err != nil {
		logger.Warn("font unavailable, using built-in font", "font", name, "error", err)
		face = basicfont.Face7x13
	}
	return newFaceRasterizer(face)
}

// loadLogo decodes a PNG or BMP image and scales it to fit within bounds,
// keeping the aspect ratio.
func loadLogo(path string, bounds image.Rectangle) (image.Image, error) {
	f, err := os.Open(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("open logo: %w", err)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode logo: %w", err)
	}

	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return nil, fmt.Errorf("decode logo: empty %s image", format)
	}

	w, h := bounds.Dx(), bounds.Dy()
	if sb.Dx()*h > sb.Dy()*w {
		h = sb.Dy() * w / sb.Dx()
	} else {
		w = sb.Dx() * h / sb.Dy()
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, xdraw.Src, nil)
	return dst, nil
}

// fillRect paints r with c, clipped to dst.
func fillRect(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

// outlineRect draws a one pixel border just inside r.
func outlineRect(dst draw.Image, r image.Rectangle, c color.Color) {
	if r.Empty() {
		return
	}
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), c)
	fillRect(dst, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), c)
}
