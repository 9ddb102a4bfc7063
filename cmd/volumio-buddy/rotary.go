package main

import (
	"sync"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
)

// Direction is the decoded rotation of a quadrature encoder.
type Direction int

const (
	DirUnknown Direction = iota
	DirLeft
	DirRight
)

func (d Direction) String() string {
	switch d {
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "unknown"
	}
}

// Steps converts a direction into a signed detent count (right is positive).
func (d Direction) Steps() int {
	switch d {
	case DirLeft:
		return -1
	case DirRight:
		return 1
	default:
		return 0
	}
}

// quadratureTable classifies the 4-bit key (previous<<2 | next) of two
// consecutive 2-bit channel states. Keys that skip a Gray-code step, or do not
// move at all, are noise and stay DirUnknown.
var quadratureTable = [16]Direction{
	0b0001: DirRight,
	0b0111: DirRight,
	0b1110: DirRight,
	0b1000: DirRight,
	0b0010: DirLeft,
	0b1011: DirLeft,
	0b1101: DirLeft,
	0b0100: DirLeft,
}

// decodeTransition looks up a (previous, next) pair of 2-bit states.
func decodeTransition(prev, next uint8) Direction {
	return quadratureTable[(prev&0b11)<<2|(next&0b11)]
}

// levelReader is the part of gpio.PinIn the decoder needs.
type levelReader interface {
	Read() gpio.Level
}

// QuadratureDecoder turns edges on two encoder channels into left/right events.
//
// OnEdge may be called concurrently from the watchers of both channels. Only
// one decode runs at a time; an edge arriving while another is being decoded
// is dropped rather than queued.
type QuadratureDecoder struct {
	a, b     levelReader
	debounce *Debouncer

	busy atomic.Bool
	prev uint8
	dir  atomic.Int32

	mu       sync.Mutex
	callback func(Direction)
}

// NewQuadratureDecoder reads the initial channel levels so the first edge
// decodes against the real resting state.
func NewQuadratureDecoder(a, b levelReader, debounce *Debouncer) *QuadratureDecoder {
	q := &QuadratureDecoder{a: a, b: b, debounce: debounce}
	q.prev = q.sample()
	return q
}

// SetCallback binds the function invoked for each debounced left/right event.
func (q *QuadratureDecoder) SetCallback(fn func(Direction)) {
	q.mu.Lock()
	q.callback = fn
	q.mu.Unlock()
}

// Direction returns the last decoded direction, including DirUnknown.
func (q *QuadratureDecoder) Direction() Direction {
	return Direction(q.dir.Load())
}

func (q *QuadratureDecoder) sample() uint8 {
	var s uint8
	if q.a.Read() == gpio.High {
		s |= 0b10
	}
	if q.b.Read() == gpio.High {
		s |= 0b01
	}
	return s
}

// OnEdge decodes the current channel levels. The channel argument identifies
// which pin moved; both pins are always sampled.
func (q *QuadratureDecoder) OnEdge(channel int) {
	if !q.busy.CompareAndSwap(false, true) {
		return
	}
	defer q.busy.Store(false)

	next := q.sample()
	dir := decodeTransition(q.prev, next)
	q.prev = next
	q.dir.Store(int32(dir))

	if dir == DirUnknown {
		return
	}

	q.mu.Lock()
	cb := q.callback
	q.mu.Unlock()
	if cb == nil {
		return
	}
	if q.debounce != nil && !q.debounce.Allow() {
		return
	}
	cb(dir)
}
