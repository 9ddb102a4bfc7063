package main

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// PixelSink accepts full monochrome frames. *ssd1306.Dev satisfies it.
type PixelSink interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// openOLED opens an SSD1306 panel on an I2C bus.
func openOLED(bus i2c.Bus, cfg DisplayConfig) (*ssd1306.Dev, error) {
	opts := ssd1306.DefaultOpts
	opts.W = cfg.Width
	opts.H = cfg.Height
	opts.Rotated = cfg.Rotated

	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("ssd1306: %w", err)
	}
	return dev, nil
}

// memorySink keeps the last frame in memory. It is used when no panel is
// attached and by tests.
type memorySink struct {
	mu     sync.Mutex
	bounds image.Rectangle
	frame  *image1bit.VerticalLSB
	writes int
	err    error
}

func newMemorySink(w, h int) *memorySink {
	r := image.Rect(0, 0, w, h)
	return &memorySink{bounds: r, frame: image1bit.NewVerticalLSB(r)}
}

func (m *memorySink) Bounds() image.Rectangle { return m.bounds }

func (m *memorySink) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	draw.Draw(m.frame, r, src, sp, draw.Src)
	m.writes++
	return nil
}

// lit counts the pixels that are on inside r.
func (m *memorySink) lit(r image.Rectangle) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	r = r.Intersect(m.bounds)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.frame.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func (m *memorySink) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
