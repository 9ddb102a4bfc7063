package main

import "time"

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01
	EV_REL = 0x02

	KEY_VOLUMEDOWN   = 114
	KEY_VOLUMEUP     = 115
	KEY_NEXTSONG     = 163
	KEY_PLAYPAUSE    = 164
	KEY_PREVIOUSSONG = 165
	KEY_STOPCD       = 166
	KEY_MENU         = 139
	KEY_PLAYCD       = 200
	KEY_PAUSECD      = 201

	// Rotary encoder relative axis codes
	REL_X     = 0x00
	REL_DIAL  = 0x07
	REL_WHEEL = 0x08
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Display geometry and timing
const (
	defaultDisplayWidth  = 128
	defaultDisplayHeight = 64

	defaultUpdateInterval = 100 * time.Millisecond
	defaultModalDuration  = 3 * time.Second
	defaultScrollStep     = 10 // pixels per frame
	defaultFontSize       = 12.0

	// Main screen layout
	mainTopOffset      = 2 // title baseline box starts this far from the top
	mainLinePadding    = 4 // gap between title and time line
	progressBarHeight  = 4
	timeSeparator      = " - "
	modalInsetX        = 4
	modalInsetYRatio   = 0.2
	modalLinePadding   = 2
	barPadding         = 8
	barHeight          = 4
	barTextOffset      = 4
	edgePollTimeout    = 250 * time.Millisecond
	defaultQueueLength = 64
)

// Input timing defaults
const (
	defaultRotaryDebounceMS = 100
	defaultButtonDebounceMS = 500

	defaultRotaryVelocityWindowMS   = 200 // Time window for fast-spin detection (ms)
	defaultRotaryVelocityThreshold  = 3   // Detents in window to trigger fast-spin
	defaultRotaryVelocityMultiplier = 2   // Volume step multiplier while fast-spinning

	maxRotarySteps = 100 // Largest |steps| accepted in one rotary_turn
)

// Volumio connection defaults
const (
	defaultVolumioHost       = "localhost"
	defaultVolumioPort       = 3000
	defaultVolumioMaxRetries = 5
	defaultVolumioRetryMS    = 2000
	defaultPingInterval      = 25 * time.Second
	defaultPingTimeout       = 60 * time.Second
)

// Battery defaults (per cell, volts)
const (
	defaultBatteryCells     = 5
	defaultBatteryFull      = 4.2
	defaultBatteryLow       = 2.9
	defaultBatteryWarn      = 3.2
	defaultBatteryEmpty     = 2.8
	defaultBatteryPollMS    = 10000
	defaultBatteryI2CAddr   = 0x40
	defaultBatteryShuntOhms = 0.1
)
