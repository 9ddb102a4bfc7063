package main

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// StatusKind is a player or connection state shown as a banner.
type StatusKind int

const (
	StatusNone StatusKind = iota
	StatusVolume
	StatusConnecting
	StatusReconnecting
	StatusPlay
	StatusPause
	StatusStop
	StatusShutdown
)

var statusLabels = map[StatusKind]string{
	StatusVolume:       "Volume",
	StatusConnecting:   "Connecting",
	StatusReconnecting: "Reconnecting",
	StatusPlay:         "Play",
	StatusPause:        "Pause",
	StatusStop:         "Stop",
	StatusShutdown:     "Shutdown",
}

func (k StatusKind) String() string {
	if s, ok := statusLabels[k]; ok {
		return s
	}
	return "none"
}

// statusFromPlayer maps the Volumio status field.
func statusFromPlayer(s string) (StatusKind, bool) {
	switch s {
	case "play":
		return StatusPlay, true
	case "pause":
		return StatusPause, true
	case "stop":
		return StatusStop, true
	}
	return StatusNone, false
}

// DisplayOptions configures a Display.
type DisplayOptions struct {
	ModalDuration time.Duration
	PopupTimeout  time.Duration
	ScrollStep    int
	Now           func() time.Time
	Logger        *slog.Logger
}

// Display composes the now-playing screen and the active modal into frames
// and pushes them to a PixelSink.
//
// All methods are safe for concurrent use. mu serializes compose+write with
// the setters, which are short.
type Display struct {
	mu     sync.Mutex
	sink   PixelSink
	text   TextRasterizer
	now    func() time.Time
	logger *slog.Logger

	bounds        image.Rectangle
	modalDuration time.Duration
	popupTimeout  time.Duration

	// main screen
	scroll     *ScrollingText
	duration   int
	seek       int
	lastUpdate time.Time
	hasTrack   bool
	status     StatusKind
	prevStatus StatusKind
	logo       image.Image

	// overlay
	modal          *Modal
	modalExpiry    time.Time
	modalActivated time.Time

	popups      []LabelProvider
	popupCursor int
}

// NewDisplay returns a compositor drawing to sink.
func NewDisplay(sink PixelSink, text TextRasterizer, opts DisplayOptions) *Display {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ModalDuration <= 0 {
		opts.ModalDuration = defaultModalDuration
	}
	if opts.PopupTimeout <= 0 {
		opts.PopupTimeout = 4 * opts.ModalDuration
	}
	b := sink.Bounds()
	return &Display{
		sink:          sink,
		text:          text,
		now:           opts.Now,
		logger:        opts.Logger,
		bounds:        b,
		modalDuration: opts.ModalDuration,
		popupTimeout:  opts.PopupTimeout,
		scroll:        NewScrollingText(b.Dx(), opts.ScrollStep),
		status:        StatusNone,
		prevStatus:    StatusNone,
	}
}

// LoadLogo sets the image shown until the first track arrives. On failure the
// display keeps whatever it had.
func (d *Display) LoadLogo(path string) error {
	logo, err := loadLogo(path, d.bounds)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.logo = logo
	d.mu.Unlock()
	return nil
}

// UpdateMainScreen sets the scrolling label and the timing reference for the
// elapsed/remaining counters. seek and duration are in seconds.
func (d *Display) UpdateMainScreen(label string, duration, seek int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, _ := d.text.Measure(label)
	d.scroll.SetText(label, w)
	d.duration = duration
	d.seek = seek
	d.lastUpdate = d.now()
	d.hasTrack = true
}

// TriggerVolume shows the volume bar modal.
func (d *Display) TriggerVolume(level int) error {
	m, err := BarModal(fmt.Sprintf("%s %d", StatusVolume, level), level)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.setModalLocked(m)
	d.mu.Unlock()
	return nil
}

// TriggerStatus records a new status and shows its banner. Unknown kinds and
// repeats of the current status are ignored; Stop is recorded silently.
func (d *Display) TriggerStatus(kind StatusKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.applyStatusLocked(kind) {
		return
	}
	if kind != StatusStop {
		d.setModalLocked(TextModal(kind.String()))
	}
}

// SetStatus records a status without showing a banner.
func (d *Display) SetStatus(kind StatusKind) {
	d.mu.Lock()
	d.applyStatusLocked(kind)
	d.mu.Unlock()
}

func (d *Display) applyStatusLocked(kind StatusKind) bool {
	if _, ok := statusLabels[kind]; !ok || kind == d.status {
		return false
	}
	d.prevStatus = d.status
	d.status = kind
	return true
}

// Status returns the current and previous status.
func (d *Display) Status() (current, previous StatusKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status, d.prevStatus
}

// TriggerMessage shows an ad-hoc one or two line banner.
func (d *Display) TriggerMessage(lines ...string) error {
	m, err := modalForLabel(lines)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.setModalLocked(m)
	d.mu.Unlock()
	return nil
}

// AddPopup appends a provider to the rotation.
func (d *Display) AddPopup(p LabelProvider) {
	d.mu.Lock()
	d.popups = append(d.popups, p)
	d.mu.Unlock()
}

// ShowNextPopup shows the next popup in the rotation. If the last modal was
// activated more than the popup timeout ago the rotation restarts at the
// first popup. A provider returning anything but one or two lines is a
// wiring error and is returned to the caller.
func (d *Display) ShowNextPopup() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.popups) == 0 {
		return nil
	}
	if d.now().Sub(d.modalActivated) > d.popupTimeout {
		d.popupCursor = 0
	}

	p := d.popups[d.popupCursor]
	m, err := modalForLabel(p.Label())
	if err != nil {
		return fmt.Errorf("popup %d: %w", d.popupCursor, err)
	}
	d.setModalLocked(m)
	d.popupCursor = (d.popupCursor + 1) % len(d.popups)
	return nil
}

func (d *Display) setModalLocked(m Modal) {
	now := d.now()
	d.modal = &m
	d.modalActivated = now
	d.modalExpiry = now.Add(d.modalDuration)
}

// ActiveModal returns the modal that would be drawn now, if any.
func (d *Display) ActiveModal() (Modal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.modal == nil || !d.now().Before(d.modalExpiry) {
		return Modal{}, false
	}
	return *d.modal, true
}

// Tick composes one frame and writes it to the sink. A failed write is
// logged; the panel keeps showing its previous frame.
func (d *Display) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	frame := image1bit.NewVerticalLSB(d.bounds)

	if !d.hasTrack && d.logo != nil {
		d.drawLogo(frame)
	} else {
		d.drawMainScreen(frame, now)
	}

	if d.modal != nil {
		if now.Before(d.modalExpiry) {
			renderModal(frame, *d.modal, d.text)
		} else {
			d.modal = nil
		}
	}

	if err := d.sink.Draw(d.bounds, frame, d.bounds.Min); err != nil {
		d.logger.Warn("display write failed", "error", err)
	}
}

// Clear writes a blank frame.
func (d *Display) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	frame := image1bit.NewVerticalLSB(d.bounds)
	if err := d.sink.Draw(d.bounds, frame, d.bounds.Min); err != nil {
		d.logger.Warn("display clear failed", "error", err)
	}
}

// Run ticks every interval until ctx is canceled, then clears the panel.
func (d *Display) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultUpdateInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.Tick()
	for {
		select {
		case <-ctx.Done():
			d.Clear()
			d.logger.Debug("display stopped")
			return nil
		case <-ticker.C:
			d.Tick()
		}
	}
}

// position returns the elapsed seconds at now.
func (d *Display) position(now time.Time) int {
	pos := d.seek
	if d.status == StatusPlay {
		pos += int(now.Sub(d.lastUpdate) / time.Second)
	}
	if pos < 0 {
		pos = 0
	}
	if d.duration > 0 && pos > d.duration {
		pos = d.duration
	}
	return pos
}

func (d *Display) drawLogo(dst draw.Image) {
	lb := d.logo.Bounds()
	off := image.Pt(
		d.bounds.Min.X+(d.bounds.Dx()-lb.Dx())/2,
		d.bounds.Min.Y+(d.bounds.Dy()-lb.Dy())/2,
	)
	draw.Draw(dst, lb.Sub(lb.Min).Add(off), d.logo, lb.Min, draw.Src)
}

func (d *Display) drawMainScreen(dst draw.Image, now time.Time) {
	b := d.bounds

	_, lineH := d.text.Measure(timeSeparator)
	d.text.DrawText(dst, image.Pt(b.Min.X+d.scroll.X(), b.Min.Y+mainTopOffset), d.scroll.Text())
	d.scroll.Advance()

	pos := d.position(now)
	remaining := d.duration - pos
	if remaining < 0 {
		remaining = 0
	}

	posLabel := formatClock(pos)
	remLabel := formatClock(remaining)
	sepW, _ := d.text.Measure(timeSeparator)
	posW, _ := d.text.Measure(posLabel)

	y := b.Min.Y + mainTopOffset + lineH + mainLinePadding
	sepX := b.Min.X + (b.Dx()-sepW)/2
	d.text.DrawText(dst, image.Pt(sepX-posW, y), posLabel)
	d.text.DrawText(dst, image.Pt(sepX, y), timeSeparator)
	d.text.DrawText(dst, image.Pt(sepX+sepW, y), remLabel)

	if d.duration <= 0 {
		return
	}
	bar := image.Rect(b.Min.X, b.Max.Y-progressBarHeight-1, b.Max.X, b.Max.Y)
	outlineRect(dst, bar, pixelOn)
	fill := bar
	fill.Max.X = bar.Min.X + bar.Dx()*pos/d.duration
	fillRect(dst, fill, pixelOn)
}

// formatClock renders seconds as m:ss.
func formatClock(sec int) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}
