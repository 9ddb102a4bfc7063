package main

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
)

// ModalKind selects how a Modal is drawn.
type ModalKind int

const (
	ModalText ModalKind = iota
	ModalTwoLine
	ModalBar
)

// Modal is a transient overlay. Lines holds one entry for ModalText and
// ModalBar, two for ModalTwoLine. Level is only meaningful for ModalBar.
type Modal struct {
	Kind  ModalKind
	Lines []string
	Level int
}

// ErrInvalidLevel is returned for bar levels outside 0..100.
var ErrInvalidLevel = errors.New("level must be between 0 and 100")

// TextModal is a single centered line.
func TextModal(text string) Modal {
	return Modal{Kind: ModalText, Lines: []string{text}}
}

// TwoLineModal shows two left-aligned lines.
func TwoLineModal(first, second string) Modal {
	return Modal{Kind: ModalTwoLine, Lines: []string{first, second}}
}

// BarModal shows a label above a horizontal level bar.
func BarModal(label string, level int) (Modal, error) {
	if level < 0 || level > 100 {
		return Modal{}, fmt.Errorf("bar modal %q: %w (got %d)", label, ErrInvalidLevel, level)
	}
	return Modal{Kind: ModalBar, Lines: []string{label}, Level: level}, nil
}

// modalRect is the inset box a modal occupies on a screen of the given size.
func modalRect(screen image.Rectangle) image.Rectangle {
	x := modalInsetX
	y := int(modalInsetYRatio * float64(screen.Dy()))
	return image.Rect(screen.Min.X+x, screen.Min.Y+y, screen.Max.X-x, screen.Max.Y-y)
}

// renderModal draws m into its inset box on dst.
func renderModal(dst draw.Image, m Modal, text TextRasterizer) {
	box := modalRect(dst.Bounds())
	fillRect(dst, box, pixelOff)
	outlineRect(dst, box, pixelOn)

	line := func(i int) string {
		if i < len(m.Lines) {
			return m.Lines[i]
		}
		return ""
	}

	switch m.Kind {
	case ModalTwoLine:
		_, h := text.Measure(line(0))
		gap := (box.Dy() - 2*h - modalLinePadding) / 2
		x := box.Min.X + modalLinePadding + 1
		y := box.Min.Y + gap
		text.DrawText(dst, image.Pt(x, y), line(0))
		text.DrawText(dst, image.Pt(x, y+h+modalLinePadding), line(1))

	case ModalBar:
		w, _ := text.Measure(line(0))
		text.DrawText(dst, image.Pt(box.Min.X+(box.Dx()-w)/2, box.Min.Y+barTextOffset), line(0))

		bar := image.Rect(
			box.Min.X+barPadding,
			box.Max.Y-barPadding-barHeight,
			box.Max.X-barPadding,
			box.Max.Y-barPadding,
		)
		outlineRect(dst, bar, pixelOn)
		fill := bar
		fill.Max.X = bar.Min.X + bar.Dx()*m.Level/100
		fillRect(dst, fill, pixelOn)

	default:
		w, h := text.Measure(line(0))
		text.DrawText(dst, image.Pt(box.Min.X+(box.Dx()-w)/2, box.Min.Y+(box.Dy()-h)/2), line(0))
	}
}
