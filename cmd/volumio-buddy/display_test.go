package main

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"golang.org/x/image/font/basicfont"
)

func newTestDisplay(t *testing.T) (*Display, *memorySink, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	sink := newMemorySink(defaultDisplayWidth, defaultDisplayHeight)
	d := NewDisplay(sink, newFaceRasterizer(basicfont.Face7x13), DisplayOptions{
		ModalDuration: 3 * time.Second,
		Now:           clock.Now,
	})
	return d, sink, clock
}

// modalTopRow is the first row of the modal outline on a 128x64 panel.
func modalTopRow() image.Rectangle {
	box := modalRect(image.Rect(0, 0, defaultDisplayWidth, defaultDisplayHeight))
	return image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+1)
}

func TestDisplay_VolumeModalExpires(t *testing.T) {
	d, sink, clock := newTestDisplay(t)

	if err := d.TriggerVolume(40); err != nil {
		t.Fatalf("TriggerVolume: %v", err)
	}

	clock.Advance(2 * time.Second)
	d.Tick()
	m, ok := d.ActiveModal()
	if !ok || m.Kind != ModalBar || m.Level != 40 || m.Lines[0] != "Volume 40" {
		t.Fatalf("expected active volume modal, got %+v (active=%v)", m, ok)
	}
	if n := sink.lit(modalTopRow()); n != modalTopRow().Dx() {
		t.Fatalf("expected modal outline drawn, lit=%d", n)
	}

	clock.Advance(time.Second)
	d.Tick()
	if _, ok := d.ActiveModal(); ok {
		t.Fatalf("modal should expire at now >= expiry")
	}
	if d.modal != nil {
		t.Fatalf("expired modal should be cleared on tick")
	}
	if n := sink.lit(modalTopRow()); n != 0 {
		t.Fatalf("expected main screen only after expiry, lit=%d", n)
	}
}

func TestDisplay_TriggerReplacesModal(t *testing.T) {
	d, _, clock := newTestDisplay(t)

	_ = d.TriggerVolume(10)
	clock.Advance(2 * time.Second)
	d.TriggerStatus(StatusPause)

	clock.Advance(2 * time.Second)
	m, ok := d.ActiveModal()
	if !ok || m.Kind != ModalText || m.Lines[0] != "Pause" {
		t.Fatalf("expected pause banner with reset expiry, got %+v (active=%v)", m, ok)
	}
}

func TestDisplay_TriggerVolumeRejectsInvalidLevel(t *testing.T) {
	d, _, _ := newTestDisplay(t)
	for _, level := range []int{-1, 101} {
		if err := d.TriggerVolume(level); !errors.Is(err, ErrInvalidLevel) {
			t.Fatalf("level %d: expected ErrInvalidLevel, got %v", level, err)
		}
	}
	if _, ok := d.ActiveModal(); ok {
		t.Fatalf("invalid level must not show a modal")
	}
}

func TestDisplay_TriggerStatusRules(t *testing.T) {
	d, _, clock := newTestDisplay(t)

	d.TriggerStatus(StatusPlay)
	if _, ok := d.ActiveModal(); !ok {
		t.Fatalf("expected play banner")
	}

	clock.Advance(5 * time.Second)
	d.TriggerStatus(StatusPlay)
	if _, ok := d.ActiveModal(); ok {
		t.Fatalf("repeating the current status must not show a banner")
	}

	d.TriggerStatus(StatusStop)
	if _, ok := d.ActiveModal(); ok {
		t.Fatalf("stop is recorded without a banner")
	}
	cur, prev := d.Status()
	if cur != StatusStop || prev != StatusPlay {
		t.Fatalf("expected stop/play, got %v/%v", cur, prev)
	}

	d.TriggerStatus(StatusKind(99))
	if cur, _ := d.Status(); cur != StatusStop {
		t.Fatalf("unknown status must be ignored, got %v", cur)
	}
}

func TestDisplay_PopupRotationAndReset(t *testing.T) {
	d, _, clock := newTestDisplay(t)
	for _, s := range []string{"one", "two", "three"} {
		label := s
		d.AddPopup(LabelFunc(func() []string { return []string{label} }))
	}

	show := func() string {
		t.Helper()
		if err := d.ShowNextPopup(); err != nil {
			t.Fatalf("ShowNextPopup: %v", err)
		}
		m, ok := d.ActiveModal()
		if !ok {
			t.Fatalf("expected popup modal")
		}
		return m.Lines[0]
	}

	if got := show(); got != "one" {
		t.Fatalf("first popup: got %q", got)
	}
	clock.Advance(time.Second)
	if got := show(); got != "two" {
		t.Fatalf("second popup: got %q", got)
	}

	// More than the popup timeout (4x modal duration) since the last activation.
	clock.Advance(13 * time.Second)
	if got := show(); got != "one" {
		t.Fatalf("rotation should restart after idle gap, got %q", got)
	}
	clock.Advance(time.Second)
	show()
	clock.Advance(time.Second)
	if got := show(); got != "three" {
		t.Fatalf("third popup: got %q", got)
	}
	clock.Advance(time.Second)
	if got := show(); got != "one" {
		t.Fatalf("rotation should wrap around, got %q", got)
	}
}

func TestDisplay_PopupShapeErrorIsReturned(t *testing.T) {
	d, _, _ := newTestDisplay(t)
	d.AddPopup(LabelFunc(func() []string { return []string{"a", "b", "c"} }))

	var invalid *InvalidLabelError
	if err := d.ShowNextPopup(); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidLabelError, got %v", err)
	}
}

func TestDisplay_ShowNextPopupWithoutPopups(t *testing.T) {
	d, _, _ := newTestDisplay(t)
	if err := d.ShowNextPopup(); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestDisplay_PositionTracksPlayback(t *testing.T) {
	d, _, clock := newTestDisplay(t)
	d.SetStatus(StatusPlay)
	d.UpdateMainScreen("Artist - Title", 100, 90)

	clock.Advance(5 * time.Second)
	if got := d.position(clock.Now()); got != 95 {
		t.Fatalf("expected 95, got %d", got)
	}
	clock.Advance(30 * time.Second)
	if got := d.position(clock.Now()); got != 100 {
		t.Fatalf("position must clamp to duration, got %d", got)
	}

	d.SetStatus(StatusPause)
	if got := d.position(clock.Now()); got != 90 {
		t.Fatalf("paused position is the seek value, got %d", got)
	}
}

func TestDisplay_ProgressBarSuppressedWithoutDuration(t *testing.T) {
	d, sink, _ := newTestDisplay(t)
	bottom := image.Rect(0, defaultDisplayHeight-1, defaultDisplayWidth, defaultDisplayHeight)

	d.UpdateMainScreen("stream", 0, 0)
	d.Tick()
	if n := sink.lit(bottom); n != 0 {
		t.Fatalf("expected no progress bar for zero duration, lit=%d", n)
	}

	d.UpdateMainScreen("track", 100, 50)
	d.Tick()
	if n := sink.lit(bottom); n != defaultDisplayWidth {
		t.Fatalf("expected full bar outline, lit=%d", n)
	}
	inner := image.Rect(1, defaultDisplayHeight-3, defaultDisplayWidth-1, defaultDisplayHeight-2)
	if n := sink.lit(inner); n == 0 || n >= inner.Dx() {
		t.Fatalf("expected a partial fill, lit=%d of %d", n, inner.Dx())
	}
}

func TestDisplay_RunClearsOnShutdown(t *testing.T) {
	d, sink, _ := newTestDisplay(t)
	d.UpdateMainScreen("Something", 60, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, 10*time.Millisecond) }()

	waitUntil(t, 500*time.Millisecond, func() bool { return sink.writeCount() >= 2 }, "display did not tick")
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for Run to stop")
	}
	if n := sink.lit(sink.Bounds()); n != 0 {
		t.Fatalf("expected blank panel after shutdown, lit=%d", n)
	}
}

func TestDisplay_FailedWriteKeepsRunning(t *testing.T) {
	d, sink, _ := newTestDisplay(t)
	sink.err = errors.New("i2c timeout")
	d.Tick()
	if sink.writeCount() != 0 {
		t.Fatalf("failing sink should not record writes")
	}
}

func TestFormatClock(t *testing.T) {
	tests := map[int]string{0: "0:00", 5: "0:05", 65: "1:05", 600: "10:00", -3: "0:00"}
	for in, want := range tests {
		if got := formatClock(in); got != want {
			t.Errorf("formatClock(%d) = %q, want %q", in, got, want)
		}
	}
}
