package main

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Actions
// ============================================================================
// Actions represent intent from the input side (GPIO encoders and buttons,
// evdev devices, IPC). The daemon loop stamps them with a TimedEvent and the
// reducer turns them into player and display commands.
// ============================================================================

// Action is a marker interface for all user intents. Actions are also
// reducer Events.
type Action interface {
	eventMarker()
}

// Wire names for actions, used by IPC, vb-ctl and button configuration.
const (
	TypeVolumeUp   = "volume_up"
	TypeVolumeDown = "volume_down"
	TypeSetVolume  = "set_volume"
	TypeNext       = "next"
	TypePrevious   = "previous"
	TypePlay       = "play"
	TypePause      = "pause"
	TypeTogglePlay = "toggle_play"
	TypeStop       = "stop"
	TypeSeek       = "seek"
	TypeShowPopup  = "show_popup"
	TypeRotaryTurn = "rotary_turn"
)

type VolumeUp struct{}
type VolumeDown struct{}

// SetVolume requests an absolute volume (0-100).
type SetVolume struct {
	Level int `json:"level"`
}

type Next struct{}
type Previous struct{}
type Play struct{}
type Pause struct{}

// TogglePlay pauses when playing and plays otherwise.
type TogglePlay struct{}

type Stop struct{}

// Seek jumps to a position in the current track.
type Seek struct {
	Seconds int `json:"seconds"`
}

// ShowPopup advances the menu popup rotation.
type ShowPopup struct{}

// RotaryTurn is a raw encoder movement. Encoder is the encoder role
// ("volume" or "track"); the reducer owns what a detent means.
type RotaryTurn struct {
	Encoder string `json:"encoder"`
	Steps   int    `json:"steps"` // positive=clockwise
}

func (VolumeUp) eventMarker()   {}
func (VolumeDown) eventMarker() {}
func (SetVolume) eventMarker()  {}
func (Next) eventMarker()       {}
func (Previous) eventMarker()   {}
func (Play) eventMarker()       {}
func (Pause) eventMarker()      {}
func (TogglePlay) eventMarker() {}
func (Stop) eventMarker()       {}
func (Seek) eventMarker()       {}
func (ShowPopup) eventMarker()  {}
func (RotaryTurn) eventMarker() {}

// simpleActions are the payload-free actions keyed by wire name.
var simpleActions = map[string]Action{
	TypeVolumeUp:   VolumeUp{},
	TypeVolumeDown: VolumeDown{},
	TypeNext:       Next{},
	TypePrevious:   Previous{},
	TypePlay:       Play{},
	TypePause:      Pause{},
	TypeTogglePlay: TogglePlay{},
	TypeStop:       Stop{},
	TypeShowPopup:  ShowPopup{},
}

// actionByName returns the payload-free action for a wire name.
func actionByName(name string) (Action, bool) {
	a, ok := simpleActions[name]
	return a, ok
}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an action with a type discriminator for JSON marshaling.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON envelope into a concrete Action.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	if a, ok := actionByName(env.Type); ok {
		return a, nil
	}

	switch env.Type {
	case TypeSetVolume:
		var a SetVolume
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetVolume: %w", err)
		}
		if a.Level < 0 || a.Level > 100 {
			return nil, fmt.Errorf("set_volume level %d out of range 0-100", a.Level)
		}
		return a, nil

	case TypeSeek:
		var a Seek
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal Seek: %w", err)
		}
		if a.Seconds < 0 {
			return nil, fmt.Errorf("seek seconds must be >= 0")
		}
		return a, nil

	case TypeRotaryTurn:
		var a RotaryTurn
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal RotaryTurn: %w", err)
		}
		if a.Steps == 0 || a.Steps < -maxRotarySteps || a.Steps > maxRotarySteps {
			return nil, fmt.Errorf("rotary_turn steps %d out of range -%d..%d (non-zero)", a.Steps, maxRotarySteps, maxRotarySteps)
		}
		if a.Encoder == "" {
			a.Encoder = RoleVolume
		}
		return a, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Action into a JSON envelope.
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case VolumeUp:
		env.Type = TypeVolumeUp
	case VolumeDown:
		env.Type = TypeVolumeDown
	case Next:
		env.Type = TypeNext
	case Previous:
		env.Type = TypePrevious
	case Play:
		env.Type = TypePlay
	case Pause:
		env.Type = TypePause
	case TogglePlay:
		env.Type = TypeTogglePlay
	case Stop:
		env.Type = TypeStop
	case ShowPopup:
		env.Type = TypeShowPopup

	case SetVolume:
		env.Type = TypeSetVolume
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetVolume: %w", err)
		}
		env.Data = data

	case Seek:
		env.Type = TypeSeek
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal Seek: %w", err)
		}
		env.Data = data

	case RotaryTurn:
		env.Type = TypeRotaryTurn
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal RotaryTurn: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
