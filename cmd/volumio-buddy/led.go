package main

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// LEDColor is one of the fixed status LED colours.
type LEDColor int

const (
	LEDOff LEDColor = iota
	LEDRed
	LEDGreen
	LEDBlue
)

func (c LEDColor) String() string {
	switch c {
	case LEDRed:
		return "red"
	case LEDGreen:
		return "green"
	case LEDBlue:
		return "blue"
	}
	return "off"
}

// StatusLED drives a common-cathode RGB LED from three GPIO outputs.
type StatusLED struct {
	mu      sync.Mutex
	red     gpio.PinOut
	green   gpio.PinOut
	blue    gpio.PinOut
	current LEDColor
}

// NewStatusLED returns an LED that starts switched off.
func NewStatusLED(red, green, blue gpio.PinOut) *StatusLED {
	return &StatusLED{red: red, green: green, blue: blue}
}

// Set lights exactly one channel (or none for LEDOff).
func (l *StatusLED) Set(c LEDColor) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := errors.Join(
		l.red.Out(gpio.Level(c == LEDRed)),
		l.green.Out(gpio.Level(c == LEDGreen)),
		l.blue.Out(gpio.Level(c == LEDBlue)),
	)
	if err != nil {
		return fmt.Errorf("set led %s: %w", c, err)
	}
	l.current = c
	return nil
}

// Color returns the last colour set successfully.
func (l *StatusLED) Color() LEDColor {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
