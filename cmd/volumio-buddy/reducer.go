package main

import (
	"fmt"
	"strings"
	"time"
)

// This file implements the reducer-style daemon core:
//
//   - Events: inputs to the reducer (user actions, pushState records,
//     connection and battery observations, snapshot requests)
//   - Commands: side effects requested by the reducer (Volumio calls and
//     display updates)
//   - Reduce(): computes next state, commands and broadcasts without I/O
//
// The daemon loop executes Commands and feeds observations back as Events.

// ==============================
// Events
// ==============================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// TimedEvent wraps an event with the time the daemon received it.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// PushStateReceived carries one raw Volumio pushState record.
type PushStateReceived struct {
	Raw map[string]any
}

func (PushStateReceived) eventMarker() {}

// ConnectionChanged reports a Volumio connection transition.
type ConnectionChanged struct {
	State ConnState
}

func (ConnectionChanged) eventMarker() {}

// BatteryObserved carries one battery reading.
type BatteryObserved struct {
	Volts float64
	Level int
}

func (BatteryObserved) eventMarker() {}

// RequestStateSnapshot asks the daemon for a copy of its state. Reply must
// be buffered.
type RequestStateSnapshot struct {
	Reply chan StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// CommandFailed is emitted when executing a Command fails.
type CommandFailed struct {
	Command Command
	Err     error
}

func (CommandFailed) eventMarker() {}

// ==============================
// Broadcasts
// ==============================

// StateBroadcast is a reducer-emitted notification for status websocket
// clients.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastStateChanged carries the non-empty delta of a pushState.
type BroadcastStateChanged struct {
	Delta PlaybackState
	At    time.Time
}

func (BroadcastStateChanged) broadcastMarker() {}

type BroadcastConnectionChanged struct {
	State ConnState
	At    time.Time
}

func (BroadcastConnectionChanged) broadcastMarker() {}

// BroadcastBatteryChanged is emitted when the battery level changes.
type BroadcastBatteryChanged struct {
	Volts float64
	Level int
	At    time.Time
}

func (BroadcastBatteryChanged) broadcastMarker() {}

// ==============================
// Reducer input/output
// ==============================

// ReducerConfig is the policy the reducer applies.
type ReducerConfig struct {
	Rotary  RotaryConfig
	Battery BatteryPolicy

	// ShutdownHost enables CmdShutdownHost when the battery is empty.
	ShutdownHost bool
}

// ReduceResult is the output of Reduce().
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce is the pure reducer. It must not perform I/O, block, or mutate
// anything outside the returned state.
func Reduce(s *DaemonState, e Event, cfg ReducerConfig) ReduceResult {
	if s == nil {
		s = NewDaemonState()
	}

	at := time.Time{}
	if te, ok := e.(TimedEvent); ok {
		e, at = te.Event, te.At
	}
	if at.IsZero() {
		at = time.Now()
	}

	var cmds []Command
	var bcasts []StateBroadcast

	switch ev := e.(type) {
	case VolumeUp:
		cmds = append(cmds, CmdVolumeStep{Up: true})
	case VolumeDown:
		cmds = append(cmds, CmdVolumeStep{Up: false})
	case SetVolume:
		level := clampVolume(ev.Level)
		s.SetDesiredVolume(level)
		cmds = append(cmds, CmdSetVolume{Level: level})
	case Next:
		cmds = append(cmds, CmdNext{})
	case Previous:
		cmds = append(cmds, CmdPrevious{})
	case Play:
		cmds = append(cmds, CmdPlay{})
	case Pause:
		cmds = append(cmds, CmdPause{})
	case Stop:
		cmds = append(cmds, CmdStop{})
	case TogglePlay:
		if s.Playback.Current().Str(FieldStatus) == "play" {
			cmds = append(cmds, CmdPause{})
		} else {
			cmds = append(cmds, CmdPlay{})
		}
	case Seek:
		cmds = append(cmds, CmdSeek{Seconds: ev.Seconds})
	case ShowPopup:
		cmds = append(cmds, CmdShowNextPopup{})

	case RotaryTurn:
		cmds = append(cmds, reduceRotary(s, ev, at, cfg.Rotary)...)

	case PushStateReceived:
		s.Playback.Update(ev.Raw)
		s.HasPlayback = true
		s.ClearDesiredVolume()

		cur := s.Playback.Current()
		cmds = append(cmds, CmdUpdateMainScreen{
			Label:    mainLabel(cur),
			Duration: cur.Int(FieldDuration),
			Seek:     cur.Int(FieldSeek),
		})

		volumeChanged := s.Playback.Changed(FieldVolume)
		if volumeChanged {
			cmds = append(cmds, CmdShowVolume{Level: clampVolume(cur.Int(FieldVolume))})
		}
		if kind, ok := statusFromPlayer(cur.Str(FieldStatus)); ok {
			// Volume wins the modal; the status is still recorded.
			if volumeChanged {
				cmds = append(cmds, CmdSetStatus{Status: kind})
			} else {
				cmds = append(cmds, CmdShowStatus{Status: kind})
			}
		}
		if s.Playback.Changed(FieldStatus) {
			cmds = append(cmds, CmdSetLED{Color: ledColor(s)})
		}

		if delta := s.Playback.Delta(); len(delta) > 0 {
			bcasts = append(bcasts, BroadcastStateChanged{Delta: delta, At: at})
		}

	case ConnectionChanged:
		if ev.State == s.Connection {
			break
		}
		s.SetConnection(ev.State, at)
		switch ev.State {
		case ConnConnecting:
			cmds = append(cmds, CmdShowStatus{Status: StatusConnecting})
		case ConnReconnecting:
			cmds = append(cmds, CmdShowStatus{Status: StatusReconnecting})
		}
		bcasts = append(bcasts, BroadcastConnectionChanged{State: ev.State, At: at})

	case BatteryObserved:
		prevLevel, known := s.Battery.Level, s.Battery.Known
		s.SetObservedBattery(ev.Volts, ev.Level, at)
		cmds = append(cmds, reduceBattery(s, ev, cfg)...)
		if !known || prevLevel != ev.Level {
			bcasts = append(bcasts, BroadcastBatteryChanged{Volts: ev.Volts, Level: ev.Level, At: at})
		}

	case RequestStateSnapshot:
		cmds = append(cmds, CmdPublishStateSnapshot{Reply: ev.Reply, Snapshot: s.Snapshot(at)})

	case CommandFailed:
		// A failed absolute volume request must not become the next baseline.
		if _, ok := ev.Command.(CmdSetVolume); ok {
			s.ClearDesiredVolume()
		}

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{
		State:      s,
		Commands:   cmds,
		Broadcasts: bcasts,
	}
}

// reduceRotary maps encoder detents onto player commands. The track encoder
// skips tracks; the volume encoder steps volume, switching to absolute
// scaled changes while spinning fast.
func reduceRotary(s *DaemonState, ev RotaryTurn, at time.Time, cfg RotaryConfig) []Command {
	if ev.Steps == 0 {
		return nil
	}
	steps := clampSteps(ev.Steps)
	n, dir := steps, 1
	if n < 0 {
		n, dir = -n, -1
	}

	if ev.Encoder == RoleTrack {
		cmds := make([]Command, 0, n)
		for i := 0; i < n; i++ {
			if dir > 0 {
				cmds = append(cmds, CmdNext{})
			} else {
				cmds = append(cmds, CmdPrevious{})
			}
		}
		return cmds
	}

	count := s.Rotary.addSteps(at, dir, n, cfg.VelocityWindow)
	scaled := cfg.scaledSteps(steps, count)

	if scaled != steps {
		if base, ok := s.volumeBaseline(); ok {
			level := clampVolume(base + scaled)
			s.SetDesiredVolume(level)
			return []Command{CmdSetVolume{Level: level}}
		}
	}
	cmds := make([]Command, 0, n)
	for i := 0; i < n; i++ {
		cmds = append(cmds, CmdVolumeStep{Up: dir > 0})
	}
	return cmds
}

// clampSteps bounds a detent count to maxRotarySteps either way.
func clampSteps(steps int) int {
	return max(-maxRotarySteps, min(maxRotarySteps, steps))
}

// reduceBattery fires the low and empty reactions once per crossing.
func reduceBattery(s *DaemonState, ev BatteryObserved, cfg ReducerConfig) []Command {
	p := cfg.Battery
	if p.Cells <= 0 {
		return nil
	}

	var cmds []Command
	switch {
	case p.IsEmpty(ev.Volts):
		if !s.Battery.Empty {
			s.Battery.Empty = true
			s.Battery.Warned = true
			cmds = append(cmds, CmdShowStatus{Status: StatusShutdown}, CmdSetLED{Color: LEDRed})
			if cfg.ShutdownHost {
				cmds = append(cmds, CmdShutdownHost{})
			}
		}
	case p.IsWarn(ev.Volts):
		if !s.Battery.Warned {
			s.Battery.Warned = true
			cmds = append(cmds,
				CmdShowMessage{Lines: []string{"Battery low", fmt.Sprintf("%d%%", ev.Level)}},
				CmdSetLED{Color: LEDRed},
			)
		}
	default:
		if s.Battery.Warned && !s.Battery.Empty {
			s.Battery.Warned = false
			cmds = append(cmds, CmdSetLED{Color: ledColor(s)})
		}
	}
	return cmds
}

// ledColor picks the LED colour for the current state.
func ledColor(s *DaemonState) LEDColor {
	if s.Battery.Warned {
		return LEDRed
	}
	if s.Playback.Current().Str(FieldStatus) == "play" {
		return LEDGreen
	}
	return LEDBlue
}

const labelSeparator = " - "

// mainLabel joins artist, album and title, skipping missing parts.
func mainLabel(p PlaybackState) string {
	parts := make([]string, 0, 3)
	for _, f := range []Field{FieldArtist, FieldAlbum, FieldTitle} {
		if v := p.Str(f); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, labelSeparator)
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
