package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// keyActions maps evdev key codes to the action sent on press.
var keyActions = map[uint16]func() Event{
	KEY_PLAYPAUSE:    func() Event { return TogglePlay{} },
	KEY_PLAYCD:       func() Event { return Play{} },
	KEY_PAUSECD:      func() Event { return Pause{} },
	KEY_STOPCD:       func() Event { return Stop{} },
	KEY_NEXTSONG:     func() Event { return Next{} },
	KEY_PREVIOUSSONG: func() Event { return Previous{} },
	KEY_VOLUMEUP:     func() Event { return VolumeUp{} },
	KEY_VOLUMEDOWN:   func() Event { return VolumeDown{} },
	KEY_MENU:         func() Event { return ShowPopup{} },
}

// translateInput turns a raw evdev event into an action. Relative axes feed
// the volume encoder; keys fire on press and autorepeat only.
func translateInput(ev inputEvent) (Event, bool) {
	switch ev.Type {
	case EV_REL:
		switch ev.Code {
		case REL_X, REL_DIAL, REL_WHEEL:
			if ev.Value == 0 {
				return nil, false
			}
			return RotaryTurn{Encoder: RoleVolume, Steps: int(ev.Value)}, true
		}
	case EV_KEY:
		if ev.Value != evValuePress && ev.Value != evValueRepeat {
			return nil, false
		}
		// Only volume keys autorepeat.
		if ev.Value == evValueRepeat && ev.Code != KEY_VOLUMEUP && ev.Code != KEY_VOLUMEDOWN {
			return nil, false
		}
		if mk, ok := keyActions[ev.Code]; ok {
			return mk(), true
		}
	}
	return nil, false
}

// runInputDevices reads the given evdev devices and forwards translated
// actions to events until ctx is canceled or a device fails.
func runInputDevices(ctx context.Context, paths []string, events chan<- Event, logger *slog.Logger) error {
	if len(paths) == 0 {
		return nil
	}

	files := make([]*os.File, 0, len(paths))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("open input device %s: %w", p, err)
		}
		files = append(files, f)
	}
	logger.Info("reading input devices", "devices", paths)

	raw := make(chan inputEvent, defaultQueueLength)
	readErr := make(chan error, 1)
	go readInputEventsEpoll(ctx, files, raw, readErr)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("input reader stopped: %w", err)
		case ev := <-raw:
			action, ok := translateInput(ev)
			if !ok {
				continue
			}
			logger.Debug("input action", "type", fmt.Sprintf("%T", action), "code", ev.Code, "value", ev.Value)
			select {
			case events <- action:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
