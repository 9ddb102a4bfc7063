package main

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Field names a key of the Volumio pushState record.
type Field string

const (
	FieldAlbum                Field = "album"
	FieldAlbumArt             Field = "albumart"
	FieldArtist               Field = "artist"
	FieldBitDepth             Field = "bitdepth"
	FieldBitRate              Field = "bitrate"
	FieldChannels             Field = "channels"
	FieldConsume              Field = "consume"
	FieldDBVolume             Field = "dbVolume"
	FieldDisableVolumeControl Field = "disableVolumeControl"
	FieldDuration             Field = "duration"
	FieldMute                 Field = "mute"
	FieldPosition             Field = "position"
	FieldRandom               Field = "random"
	FieldRepeat               Field = "repeat"
	FieldRepeatSingle         Field = "repeatSingle"
	FieldSampleRate           Field = "samplerate"
	FieldSeek                 Field = "seek"
	FieldService              Field = "service"
	FieldStatus               Field = "status"
	FieldStream               Field = "stream"
	FieldTitle                Field = "title"
	FieldTrackType            Field = "trackType"
	FieldURI                  Field = "uri"
	FieldUpdateDB             Field = "updatedb"
	FieldVolatile             Field = "volatile"
	FieldVolume               Field = "volume"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindBool
	kindMillis // integer milliseconds, stored as whole seconds
)

type fieldSpec struct {
	name Field
	kind fieldKind
	def  any
}

// playbackSchema is the fixed set of fields every PlaybackState carries.
var playbackSchema = []fieldSpec{
	{FieldAlbum, kindString, ""},
	{FieldAlbumArt, kindString, ""},
	{FieldArtist, kindString, ""},
	{FieldBitDepth, kindString, ""},
	{FieldBitRate, kindString, ""},
	{FieldChannels, kindInt, 0},
	{FieldConsume, kindBool, false},
	{FieldDBVolume, kindBool, false},
	{FieldDisableVolumeControl, kindBool, false},
	{FieldDuration, kindInt, 0},
	{FieldMute, kindBool, false},
	{FieldPosition, kindInt, 0},
	{FieldRandom, kindBool, false},
	{FieldRepeat, kindBool, false},
	{FieldRepeatSingle, kindBool, false},
	{FieldSampleRate, kindString, ""},
	{FieldSeek, kindMillis, 0},
	{FieldService, kindString, ""},
	{FieldStatus, kindString, "stop"},
	{FieldStream, kindString, ""},
	{FieldTitle, kindString, ""},
	{FieldTrackType, kindString, ""},
	{FieldURI, kindString, ""},
	{FieldUpdateDB, kindBool, false},
	{FieldVolatile, kindBool, false},
	{FieldVolume, kindInt, 0},
}

// PlaybackState is a sanitized pushState record. Values are string, int or
// bool according to playbackSchema; every schema field is present.
type PlaybackState map[Field]any

// Str returns a string field, or "" if f is not a string field.
func (p PlaybackState) Str(f Field) string {
	s, _ := p[f].(string)
	return s
}

// Int returns an integer field, or 0 if f is not an integer field.
func (p PlaybackState) Int(f Field) int {
	n, _ := p[f].(int)
	return n
}

// Bool returns a boolean field, or false if f is not a boolean field.
func (p PlaybackState) Bool(f Field) bool {
	b, _ := p[f].(bool)
	return b
}

// Clone returns a shallow copy; values are immutable scalars.
func (p PlaybackState) Clone() PlaybackState {
	out := make(PlaybackState, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Sanitize coerces raw into a fully-populated PlaybackState. Missing, null or
// unconvertible values take the schema default; unknown keys are ignored.
func Sanitize(raw map[string]any) PlaybackState {
	out := make(PlaybackState, len(playbackSchema))
	for _, fd := range playbackSchema {
		v, ok := raw[string(fd.name)]
		if !ok || v == nil {
			out[fd.name] = fd.def
			continue
		}
		if coerced, ok := coerce(fd.kind, v); ok {
			out[fd.name] = coerced
		} else {
			out[fd.name] = fd.def
		}
	}
	return out
}

func coerce(kind fieldKind, v any) (any, bool) {
	switch kind {
	case kindString:
		return coerceString(v)
	case kindInt:
		return coerceInt(v)
	case kindBool:
		return coerceBool(v)
	case kindMillis:
		ms, ok := coerceInt(v)
		if !ok {
			return nil, false
		}
		return ms / 1000, true
	}
	return nil, false
}

func coerceString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case int:
		return strconv.Itoa(x), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

func coerceInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int(x), true
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n), true
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return coerceInt(f)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return n, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func coerceBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, false
		}
		return b, true
	case float64:
		return x != 0, true
	case int:
		return x != 0, true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return false, false
		}
		return f != 0, true
	}
	return false, false
}

// StateSynchronizer keeps the current and previous sanitized records.
//
// It is not safe for concurrent use; the daemon loop owns it.
type StateSynchronizer struct {
	current  PlaybackState
	previous PlaybackState
}

// NewStateSynchronizer starts with both generations at the schema defaults.
func NewStateSynchronizer() StateSynchronizer {
	cur := Sanitize(nil)
	return StateSynchronizer{current: cur, previous: cur}
}

func (s *StateSynchronizer) ensure() {
	if s.current == nil {
		*s = NewStateSynchronizer()
	}
}

// Update replaces the current record wholesale with the sanitized raw record.
func (s *StateSynchronizer) Update(raw map[string]any) {
	s.ensure()
	s.previous = s.current
	s.current = Sanitize(raw)
}

// Delta returns the fields whose value differs between the two generations,
// with their current values.
func (s *StateSynchronizer) Delta() PlaybackState {
	s.ensure()
	out := PlaybackState{}
	for _, fd := range playbackSchema {
		if s.current[fd.name] != s.previous[fd.name] {
			out[fd.name] = s.current[fd.name]
		}
	}
	return out
}

// Changed reports whether a single field differs between generations.
func (s *StateSynchronizer) Changed(f Field) bool {
	s.ensure()
	return s.current[f] != s.previous[f]
}

// Current returns a copy of the latest sanitized record.
func (s *StateSynchronizer) Current() PlaybackState {
	s.ensure()
	return s.current.Clone()
}

// Previous returns a copy of the record before the last update.
func (s *StateSynchronizer) Previous() PlaybackState {
	s.ensure()
	return s.previous.Clone()
}
