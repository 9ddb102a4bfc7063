package main

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestDecodeTransition_AllSixteenKeys(t *testing.T) {
	want := map[uint8]Direction{
		0b1101: DirLeft,
		0b0100: DirLeft,
		0b0010: DirLeft,
		0b1011: DirLeft,
		0b1110: DirRight,
		0b0111: DirRight,
		0b0001: DirRight,
		0b1000: DirRight,
	}

	left, right := 0, 0
	for key := uint8(0); key < 16; key++ {
		got := decodeTransition(key>>2, key&0b11)
		exp, ok := want[key]
		if !ok {
			exp = DirUnknown
		}
		if got != exp {
			t.Errorf("key %04b: got %v, want %v", key, got, exp)
		}
		switch got {
		case DirLeft:
			left++
		case DirRight:
			right++
		}
	}
	if left != 4 || right != 4 {
		t.Fatalf("expected 4 left and 4 right transitions, got %d/%d", left, right)
	}
}

func newTestPins() (*gpiotest.Pin, *gpiotest.Pin) {
	a := &gpiotest.Pin{N: "ENC_A", Num: 1, L: gpio.Low}
	b := &gpiotest.Pin{N: "ENC_B", Num: 2, L: gpio.Low}
	return a, b
}

// setLevels drives both channels to the given 2-bit state (a is the high bit).
func setLevels(t *testing.T, a, b *gpiotest.Pin, state uint8) {
	t.Helper()
	if err := a.Out(gpio.Level(state&0b10 != 0)); err != nil {
		t.Fatalf("a.Out: %v", err)
	}
	if err := b.Out(gpio.Level(state&0b01 != 0)); err != nil {
		t.Fatalf("b.Out: %v", err)
	}
}

func TestQuadratureDecoder_FullDetentFiresOnce(t *testing.T) {
	clock := newFakeClock()
	a, b := newTestPins()
	dec := NewQuadratureDecoder(a, b, NewDebouncer(100*time.Millisecond, clock.Now))

	var got []Direction
	dec.SetCallback(func(d Direction) { got = append(got, d) })

	for i, state := range []uint8{0b01, 0b11, 0b10} {
		setLevels(t, a, b, state)
		dec.OnEdge(i % 2)
		clock.Advance(time.Millisecond)
	}

	if len(got) != 1 {
		t.Fatalf("expected exactly one event, got %v", got)
	}
	if got[0] != DirRight {
		t.Fatalf("expected right, got %v", got[0])
	}
}

func TestQuadratureDecoder_OppositeSequenceIsLeft(t *testing.T) {
	clock := newFakeClock()
	a, b := newTestPins()
	dec := NewQuadratureDecoder(a, b, NewDebouncer(100*time.Millisecond, clock.Now))

	var got []Direction
	dec.SetCallback(func(d Direction) { got = append(got, d) })

	for _, state := range []uint8{0b10, 0b11, 0b01, 0b00} {
		setLevels(t, a, b, state)
		dec.OnEdge(0)
		clock.Advance(time.Millisecond)
	}
	if len(got) != 1 || got[0] != DirLeft {
		t.Fatalf("expected one left event, got %v", got)
	}
}

func TestQuadratureDecoder_NoiseIsSilentAndSelfCorrects(t *testing.T) {
	clock := newFakeClock()
	a, b := newTestPins()
	dec := NewQuadratureDecoder(a, b, NewDebouncer(100*time.Millisecond, clock.Now))

	calls := 0
	dec.SetCallback(func(Direction) { calls++ })

	// 00 -> 11 skips a step.
	setLevels(t, a, b, 0b11)
	dec.OnEdge(0)
	if dec.Direction() != DirUnknown {
		t.Fatalf("expected unknown after skipped step, got %v", dec.Direction())
	}
	if calls != 0 {
		t.Fatalf("noise must not fire the callback")
	}

	// The previous state was still updated, so 11 -> 10 decodes cleanly.
	setLevels(t, a, b, 0b10)
	dec.OnEdge(1)
	if dec.Direction() != DirRight || calls != 1 {
		t.Fatalf("expected recovery to right with 1 call, got %v / %d", dec.Direction(), calls)
	}
}

func TestQuadratureDecoder_DebounceRecordsDirection(t *testing.T) {
	clock := newFakeClock()
	a, b := newTestPins()
	dec := NewQuadratureDecoder(a, b, NewDebouncer(100*time.Millisecond, clock.Now))

	calls := 0
	dec.SetCallback(func(Direction) { calls++ })

	setLevels(t, a, b, 0b01)
	dec.OnEdge(0)
	setLevels(t, a, b, 0b00)
	dec.OnEdge(0)

	if calls != 1 {
		t.Fatalf("expected debounce to suppress the second event, got %d calls", calls)
	}
	if dec.Direction() != DirLeft {
		t.Fatalf("suppressed event should still be recorded, got %v", dec.Direction())
	}

	clock.Advance(150 * time.Millisecond)
	setLevels(t, a, b, 0b01)
	dec.OnEdge(0)
	if calls != 2 {
		t.Fatalf("expected second event after interval, got %d calls", calls)
	}
}

func TestQuadratureDecoder_ContendedEdgeIsDropped(t *testing.T) {
	a, b := newTestPins()
	dec := NewQuadratureDecoder(a, b, nil)

	calls := 0
	dec.SetCallback(func(Direction) { calls++ })

	dec.busy.Store(true)
	setLevels(t, a, b, 0b01)
	dec.OnEdge(0)
	if calls != 0 {
		t.Fatalf("edge during an in-flight decode must be dropped")
	}
	if dec.Direction() != DirUnknown {
		t.Fatalf("dropped edge must not decode, got %v", dec.Direction())
	}
	dec.busy.Store(false)

	// prev was not updated by the dropped edge, so 00 -> 01 still decodes.
	dec.OnEdge(0)
	if calls != 1 || dec.Direction() != DirRight {
		t.Fatalf("expected right after guard release, got %v / %d", dec.Direction(), calls)
	}
}

func TestDirection_Steps(t *testing.T) {
	if DirRight.Steps() != 1 || DirLeft.Steps() != -1 || DirUnknown.Steps() != 0 {
		t.Fatalf("unexpected step mapping")
	}
}
