package main

// ScrollingText is a horizontal crop cursor over a rendered line of text.
//
// Text that fits the viewport is centered and never moves. Wider text starts
// just off the right edge, moves left by step pixels per Advance, and once it
// has fully left the viewport jumps back to the start.
type ScrollingText struct {
	text      string
	textWidth int
	viewport  int
	step      int
	pad       int
	offset    int
}

// NewScrollingText returns a cursor for a viewport of the given width.
func NewScrollingText(viewport, step int) *ScrollingText {
	if step <= 0 {
		step = defaultScrollStep
	}
	return &ScrollingText{
		viewport: viewport,
		step:     step,
		pad:      max(1, viewport/10),
		offset:   -viewport,
	}
}

// SetText replaces the label. A different label restarts the cycle; setting
// the same label again keeps the current position.
func (s *ScrollingText) SetText(text string, width int) {
	if text == s.text && width == s.textWidth {
		return
	}
	s.text = text
	s.textWidth = width
	s.offset = -s.viewport
}

// Text returns the current label.
func (s *ScrollingText) Text() string { return s.text }

// Fits reports whether the label is no wider than the viewport.
func (s *ScrollingText) Fits() bool { return s.textWidth <= s.viewport }

// Offset returns the raw cursor position.
func (s *ScrollingText) Offset() int { return s.offset }

// X returns where, relative to the viewport's left edge, the text should be drawn.
func (s *ScrollingText) X() int {
	if s.Fits() {
		return (s.viewport - s.textWidth) / 2
	}
	if s.offset < 0 {
		return -s.offset
	}
	return -(s.offset % (s.textWidth + s.pad))
}

// Advance moves the cursor one step.
func (s *ScrollingText) Advance() {
	if s.Fits() {
		return
	}
	s.offset += s.step
	if s.offset > s.textWidth {
		s.offset = -s.viewport
	}
}
