package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Hardware owns host driver initialization. Create it once in main and pass
// it to everything that opens pins or buses.
type Hardware struct {
	logger *slog.Logger

	mu    sync.Mutex
	buses map[string]i2c.BusCloser
}

// InitHardware loads the periph host drivers.
func InitHardware(logger *slog.Logger) (*Hardware, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	for _, f := range state.Failed {
		logger.Debug("periph driver failed", "driver", f.D.String(), "error", f.Err)
	}
	return &Hardware{logger: logger, buses: make(map[string]i2c.BusCloser)}, nil
}

// parsePull maps a config string onto a pull resistor mode.
func parsePull(s string) (gpio.Pull, error) {
	switch strings.ToLower(s) {
	case "up", "":
		return gpio.PullUp, nil
	case "down":
		return gpio.PullDown, nil
	case "none", "float":
		return gpio.Float, nil
	}
	return gpio.PullNoChange, fmt.Errorf("invalid pull mode %q (must be up, down or none)", s)
}

// parseEdge maps a config string onto an edge detection mode.
func parseEdge(s string) (gpio.Edge, error) {
	switch strings.ToLower(s) {
	case "both", "":
		return gpio.BothEdges, nil
	case "falling":
		return gpio.FallingEdge, nil
	case "rising":
		return gpio.RisingEdge, nil
	}
	return gpio.NoEdge, fmt.Errorf("invalid edge %q (must be both, falling or rising)", s)
}

// InputPin looks up a pin by name and configures it as an input with edge
// detection.
func (h *Hardware) InputPin(name string, pull gpio.Pull, edge gpio.Edge) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	if err := p.In(pull, edge); err != nil {
		return nil, fmt.Errorf("gpio pin %s: %w", name, err)
	}
	return p, nil
}

// Bus opens (or reuses) an I2C bus. An empty name picks the first bus.
func (h *Hardware) Bus(name string) (i2c.Bus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if b, ok := h.buses[name]; ok {
		return b, nil
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}
	h.buses[name] = b
	return b, nil
}

// Close releases opened buses.
func (h *Hardware) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, b := range h.buses {
		if err := b.Close(); err != nil {
			h.logger.Warn("i2c bus close failed", "bus", name, "error", err)
		}
		delete(h.buses, name)
	}
}

// edgeWaiter is the part of gpio.PinIn used by edge watchers.
type edgeWaiter interface {
	WaitForEdge(timeout time.Duration) bool
}

// watchEdges calls onEdge for every edge on pin until ctx is canceled.
// WaitForEdge is bounded so cancellation is noticed within edgePollTimeout.
func watchEdges(ctx context.Context, pin edgeWaiter, channel int, onEdge func(int)) {
	for ctx.Err() == nil {
		if pin.WaitForEdge(edgePollTimeout) {
			onEdge(channel)
		}
	}
}

// PushButton fires an action on a debounced edge.
type PushButton struct {
	Name     string
	pin      edgeWaiter
	debounce *Debouncer
}

// NewPushButton binds callback to the debounce guard of a button pin.
func NewPushButton(name string, pin edgeWaiter, interval time.Duration, callback func()) *PushButton {
	d := NewDebouncer(interval, nil)
	d.Register(callback, interval)
	return &PushButton{Name: name, pin: pin, debounce: d}
}

// Run watches the pin until ctx is canceled.
func (b *PushButton) Run(ctx context.Context) error {
	watchEdges(ctx, b.pin, 0, func(int) { b.debounce.Fire() })
	return nil
}

// RotaryEncoder pairs two pins with a decoder.
type RotaryEncoder struct {
	Name    string
	a, b    edgeWaiter
	decoder *QuadratureDecoder
}

// NewRotaryEncoder wires a decoder to two input pins.
func NewRotaryEncoder(name string, a, b gpio.PinIn, interval time.Duration, callback func(Direction)) *RotaryEncoder {
	dec := NewQuadratureDecoder(a, b, NewDebouncer(interval, nil))
	dec.SetCallback(callback)
	return &RotaryEncoder{Name: name, a: a, b: b, decoder: dec}
}

// Run watches both channels until ctx is canceled.
func (e *RotaryEncoder) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		watchEdges(ctx, e.a, 0, e.decoder.OnEdge)
	}()
	go func() {
		defer wg.Done()
		watchEdges(ctx, e.b, 1, e.decoder.OnEdge)
	}()
	wg.Wait()
	return nil
}

// OutputPin looks up a pin by name and drives it low.
func (h *Hardware) OutputPin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("gpio pin %s: %w", name, err)
	}
	return p, nil
}
