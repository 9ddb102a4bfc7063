package main

import (
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestStatusLED_SetLightsOneChannel(t *testing.T) {
	r, g, b := &gpiotest.Pin{N: "R"}, &gpiotest.Pin{N: "G"}, &gpiotest.Pin{N: "B"}
	led := NewStatusLED(r, g, b)

	tests := []struct {
		color   LEDColor
		r, g, b gpio.Level
	}{
		{LEDGreen, gpio.Low, gpio.High, gpio.Low},
		{LEDRed, gpio.High, gpio.Low, gpio.Low},
		{LEDBlue, gpio.Low, gpio.Low, gpio.High},
		{LEDOff, gpio.Low, gpio.Low, gpio.Low},
	}
	for _, tt := range tests {
		if err := led.Set(tt.color); err != nil {
			t.Fatalf("Set(%s): %v", tt.color, err)
		}
		if r.Read() != tt.r || g.Read() != tt.g || b.Read() != tt.b {
			t.Fatalf("Set(%s): got r=%v g=%v b=%v", tt.color, r.Read(), g.Read(), b.Read())
		}
		if led.Color() != tt.color {
			t.Fatalf("Color() = %s, want %s", led.Color(), tt.color)
		}
	}
}
