package main

import "time"

// ConnState is the Volumio connection state as seen by the daemon.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnReconnecting ConnState = "reconnecting"
)

// DaemonState is the top-level, daemon-owned state container. Only the daemon
// goroutine touches it; other goroutines get copies via StateSnapshot.
type DaemonState struct {
	// Playback is the synchronized Volumio player state.
	Playback StateSynchronizer

	// HasPlayback is set once the first pushState arrived.
	HasPlayback bool

	Connection   ConnState
	ConnectionAt time.Time

	// Rotary tracks recent volume-encoder detents for fast-spin scaling.
	Rotary rotaryWindow

	Battery BatteryState

	// Intent holds requests sent to Volumio but not yet confirmed by a
	// pushState.
	Intent DaemonIntent
}

// BatteryState is the reducer's view of the battery pack.
type BatteryState struct {
	Known  bool
	Volts  float64
	Level  int
	At     time.Time
	Warned bool // low-battery warning shown; cleared when voltage recovers
	Empty  bool // shutdown already requested
}

// DaemonIntent captures pending volume requests.
type DaemonIntent struct {
	// DesiredVolume is the last absolute volume sent while fast spinning. It
	// is the baseline for the next fast-spin step until Volumio reports back.
	DesiredVolume *int
}

// NewDaemonState returns the initial daemon state.
func NewDaemonState() *DaemonState {
	return &DaemonState{
		Playback:   NewStateSynchronizer(),
		Connection: ConnDisconnected,
	}
}

// SetDesiredVolume records an absolute volume request.
func (s *DaemonState) SetDesiredVolume(level int) {
	s.Intent.DesiredVolume = &level
}

// ClearDesiredVolume drops any pending absolute volume request.
func (s *DaemonState) ClearDesiredVolume() {
	s.Intent.DesiredVolume = nil
}

// volumeBaseline returns the pending desired volume if any, else the last
// reported volume. ok is false before the first pushState.
func (s *DaemonState) volumeBaseline() (int, bool) {
	if s.Intent.DesiredVolume != nil {
		return *s.Intent.DesiredVolume, true
	}
	if !s.HasPlayback {
		return 0, false
	}
	return s.Playback.Current().Int(FieldVolume), true
}

// SetObservedBattery updates the cached battery reading.
func (s *DaemonState) SetObservedBattery(volts float64, level int, now time.Time) {
	s.Battery.Known = true
	s.Battery.Volts = volts
	s.Battery.Level = level
	s.Battery.At = now
}

// SetConnection records a connection state transition.
func (s *DaemonState) SetConnection(c ConnState, now time.Time) {
	s.Connection = c
	s.ConnectionAt = now
}

// StateSnapshot is an immutable copy of DaemonState for other goroutines.
type StateSnapshot struct {
	Playback    PlaybackState
	HasPlayback bool
	Connection  ConnState
	Battery     BatteryState
	TakenAt     time.Time
}

// Snapshot copies the externally visible state.
func (s *DaemonState) Snapshot(now time.Time) StateSnapshot {
	return StateSnapshot{
		Playback:    s.Playback.Current(),
		HasPlayback: s.HasPlayback,
		Connection:  s.Connection,
		Battery:     s.Battery,
		TakenAt:     now,
	}
}
