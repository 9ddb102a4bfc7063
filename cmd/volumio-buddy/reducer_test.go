package main

import (
	"math"
	"testing"
	"time"
)

func testReducerConfig() ReducerConfig {
	return ReducerConfig{
		Rotary: RotaryConfig{
			VelocityWindow:     200 * time.Millisecond,
			VelocityThreshold:  3,
			VelocityMultiplier: 2,
		},
		Battery:      testPolicy(),
		ShutdownHost: true,
	}
}

func findCommand[T Command](cmds []Command) (T, bool) {
	for _, c := range cmds {
		if v, ok := c.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func pushState(t *testing.T, s *DaemonState, raw map[string]any) ReduceResult {
	t.Helper()
	return Reduce(s, PushStateReceived{Raw: raw}, testReducerConfig())
}

func TestReduce_PushState_MainScreenAndVolumeModal(t *testing.T) {
	s := NewDaemonState()
	rr := pushState(t, s, map[string]any{
		"artist":   "Miles Davis",
		"album":    "Kind of Blue",
		"title":    "So What",
		"duration": 545.0,
		"seek":     12345.0,
		"volume":   40.0,
		"status":   "play",
	})

	main, ok := findCommand[CmdUpdateMainScreen](rr.Commands)
	if !ok {
		t.Fatalf("expected CmdUpdateMainScreen, got %v", rr.Commands)
	}
	if main.Label != "Miles Davis - Kind of Blue - So What" {
		t.Fatalf("unexpected label %q", main.Label)
	}
	if main.Duration != 545 || main.Seek != 12 {
		t.Fatalf("unexpected timing %d/%d", main.Duration, main.Seek)
	}

	vol, ok := findCommand[CmdShowVolume](rr.Commands)
	if !ok || vol.Level != 40 {
		t.Fatalf("expected volume modal at 40, got %v", rr.Commands)
	}
	// Volume wins the modal on the same update.
	if _, ok := findCommand[CmdShowStatus](rr.Commands); ok {
		t.Fatalf("status modal must not compete with the volume modal")
	}
	if st, ok := findCommand[CmdSetStatus](rr.Commands); !ok || st.Status != StatusPlay {
		t.Fatalf("expected status recorded without modal, got %v", rr.Commands)
	}
	if led, ok := findCommand[CmdSetLED](rr.Commands); !ok || led.Color != LEDGreen {
		t.Fatalf("expected green LED while playing, got %v", rr.Commands)
	}
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("expected one state broadcast, got %d", len(rr.Broadcasts))
	}
}

func TestReduce_PushState_StatusModalWhenVolumeUnchanged(t *testing.T) {
	s := NewDaemonState()
	pushState(t, s, map[string]any{"volume": 40.0, "status": "play"})
	rr := pushState(t, s, map[string]any{"volume": 40.0, "status": "pause"})

	if _, ok := findCommand[CmdShowVolume](rr.Commands); ok {
		t.Fatalf("unchanged volume must not raise the volume modal")
	}
	st, ok := findCommand[CmdShowStatus](rr.Commands)
	if !ok || st.Status != StatusPause {
		t.Fatalf("expected pause status modal, got %v", rr.Commands)
	}
	if led, ok := findCommand[CmdSetLED](rr.Commands); !ok || led.Color != LEDBlue {
		t.Fatalf("expected blue LED when paused")
	}
}

func TestReduce_PushState_IdenticalRecordHasNoBroadcast(t *testing.T) {
	s := NewDaemonState()
	raw := map[string]any{"volume": 10.0, "status": "stop", "title": "x"}
	pushState(t, s, raw)
	rr := pushState(t, s, raw)
	if len(rr.Broadcasts) != 0 {
		t.Fatalf("identical record must not broadcast, got %v", rr.Broadcasts)
	}
	if _, ok := findCommand[CmdUpdateMainScreen](rr.Commands); !ok {
		t.Fatalf("main screen is refreshed on every record")
	}
}

func TestReduce_PushState_MissingPartsSkippedInLabel(t *testing.T) {
	s := NewDaemonState()
	rr := pushState(t, s, map[string]any{"title": "Radio 1", "artist": nil})
	main, _ := findCommand[CmdUpdateMainScreen](rr.Commands)
	if main.Label != "Radio 1" {
		t.Fatalf("unexpected label %q", main.Label)
	}
}

func TestReduce_TogglePlay(t *testing.T) {
	cfg := testReducerConfig()
	s := NewDaemonState()

	rr := Reduce(s, TimedEvent{Event: TogglePlay{}, At: time.Now()}, cfg)
	if _, ok := findCommand[CmdPlay](rr.Commands); !ok {
		t.Fatalf("toggle from stop should play, got %v", rr.Commands)
	}

	pushState(t, s, map[string]any{"status": "play"})
	rr = Reduce(s, TimedEvent{Event: TogglePlay{}, At: time.Now()}, cfg)
	if _, ok := findCommand[CmdPause](rr.Commands); !ok {
		t.Fatalf("toggle while playing should pause, got %v", rr.Commands)
	}
}

func TestReduce_RotaryTrackEncoder(t *testing.T) {
	s := NewDaemonState()
	rr := Reduce(s, RotaryTurn{Encoder: RoleTrack, Steps: -2}, testReducerConfig())
	if len(rr.Commands) != 2 {
		t.Fatalf("expected two commands, got %v", rr.Commands)
	}
	for _, c := range rr.Commands {
		if _, ok := c.(CmdPrevious); !ok {
			t.Fatalf("expected CmdPrevious, got %v", c)
		}
	}
}

func TestReduce_RotaryExtremeStepsAreBounded(t *testing.T) {
	s := NewDaemonState()
	cfg := testReducerConfig()

	rr := Reduce(s, RotaryTurn{Encoder: RoleTrack, Steps: math.MinInt}, cfg)
	if len(rr.Commands) != maxRotarySteps {
		t.Fatalf("expected %d track commands, got %d", maxRotarySteps, len(rr.Commands))
	}
	if _, ok := rr.Commands[0].(CmdPrevious); !ok {
		t.Fatalf("expected CmdPrevious, got %v", rr.Commands[0])
	}

	rr = Reduce(s, TimedEvent{Event: RotaryTurn{Encoder: RoleVolume, Steps: math.MaxInt}, At: time.Unix(1000, 0)}, cfg)
	if len(rr.Commands) > maxRotarySteps {
		t.Fatalf("expected at most %d volume commands, got %d", maxRotarySteps, len(rr.Commands))
	}
	if n := len(s.Rotary.recentSteps); n != maxRotarySteps {
		t.Fatalf("window should hold %d detents, got %d", maxRotarySteps, n)
	}
}

func TestReduce_RotaryVolume_SlowTurnSteps(t *testing.T) {
	s := NewDaemonState()
	cfg := testReducerConfig()
	t0 := time.Unix(1000, 0)

	for i := 0; i < 3; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		rr := Reduce(s, TimedEvent{Event: RotaryTurn{Encoder: RoleVolume, Steps: 1}, At: at}, cfg)
		step, ok := findCommand[CmdVolumeStep](rr.Commands)
		if !ok || !step.Up || len(rr.Commands) != 1 {
			t.Fatalf("turn %d: expected single volume step up, got %v", i, rr.Commands)
		}
	}
}

func TestReduce_RotaryVolume_FastSpinScales(t *testing.T) {
	s := NewDaemonState()
	cfg := testReducerConfig()
	pushState(t, s, map[string]any{"volume": 50.0})

	t0 := time.Unix(1000, 0)
	var last ReduceResult
	for i := 0; i < 3; i++ {
		at := t0.Add(time.Duration(i) * 10 * time.Millisecond)
		last = Reduce(s, TimedEvent{Event: RotaryTurn{Encoder: RoleVolume, Steps: 1}, At: at}, cfg)
	}
	set, ok := findCommand[CmdSetVolume](last.Commands)
	if !ok || set.Level != 52 {
		t.Fatalf("third fast detent should set volume 52, got %v", last.Commands)
	}

	// The next fast detent builds on the pending request, not the stale state.
	next := Reduce(s, TimedEvent{Event: RotaryTurn{Encoder: RoleVolume, Steps: 1}, At: t0.Add(30 * time.Millisecond)}, cfg)
	set, ok = findCommand[CmdSetVolume](next.Commands)
	if !ok || set.Level != 54 {
		t.Fatalf("expected 54, got %v", next.Commands)
	}
}

func TestReduce_RotaryVolume_FastSpinClamps(t *testing.T) {
	s := NewDaemonState()
	cfg := testReducerConfig()
	pushState(t, s, map[string]any{"volume": 99.0})

	t0 := time.Unix(1000, 0)
	var last ReduceResult
	for i := 0; i < 3; i++ {
		last = Reduce(s, TimedEvent{Event: RotaryTurn{Encoder: RoleVolume, Steps: 1}, At: t0.Add(time.Duration(i) * time.Millisecond)}, cfg)
	}
	if set, ok := findCommand[CmdSetVolume](last.Commands); !ok || set.Level != 100 {
		t.Fatalf("expected clamp to 100, got %v", last.Commands)
	}
}

func TestReduce_ConnectionChanged(t *testing.T) {
	s := NewDaemonState()
	cfg := testReducerConfig()

	rr := Reduce(s, ConnectionChanged{State: ConnConnecting}, cfg)
	if st, ok := findCommand[CmdShowStatus](rr.Commands); !ok || st.Status != StatusConnecting {
		t.Fatalf("expected connecting banner, got %v", rr.Commands)
	}
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("expected connection broadcast")
	}

	rr = Reduce(s, ConnectionChanged{State: ConnConnecting}, cfg)
	if len(rr.Commands) != 0 || len(rr.Broadcasts) != 0 {
		t.Fatalf("repeated state must be ignored")
	}

	rr = Reduce(s, ConnectionChanged{State: ConnReconnecting}, cfg)
	if st, ok := findCommand[CmdShowStatus](rr.Commands); !ok || st.Status != StatusReconnecting {
		t.Fatalf("expected reconnecting banner, got %v", rr.Commands)
	}
}

func TestReduce_BatteryWarnOnceAndRearm(t *testing.T) {
	s := NewDaemonState()
	cfg := testReducerConfig()

	rr := Reduce(s, BatteryObserved{Volts: 15.9, Level: 15}, cfg)
	msg, ok := findCommand[CmdShowMessage](rr.Commands)
	if !ok || msg.Lines[0] != "Battery low" || msg.Lines[1] != "15%" {
		t.Fatalf("expected low battery message, got %v", rr.Commands)
	}
	if led, ok := findCommand[CmdSetLED](rr.Commands); !ok || led.Color != LEDRed {
		t.Fatalf("expected red LED")
	}

	rr = Reduce(s, BatteryObserved{Volts: 15.8, Level: 14}, cfg)
	if _, ok := findCommand[CmdShowMessage](rr.Commands); ok {
		t.Fatalf("warning must fire once per crossing")
	}

	rr = Reduce(s, BatteryObserved{Volts: 19.0, Level: 78}, cfg)
	if led, ok := findCommand[CmdSetLED](rr.Commands); !ok || led.Color != LEDBlue {
		t.Fatalf("recovery should restore the status colour, got %v", rr.Commands)
	}

	rr = Reduce(s, BatteryObserved{Volts: 15.9, Level: 15}, cfg)
	if _, ok := findCommand[CmdShowMessage](rr.Commands); !ok {
		t.Fatalf("warning should re-arm after recovery")
	}
}

func TestReduce_BatteryEmptyShutsDownOnce(t *testing.T) {
	s := NewDaemonState()
	cfg := testReducerConfig()

	rr := Reduce(s, BatteryObserved{Volts: 13.9, Level: 0}, cfg)
	if st, ok := findCommand[CmdShowStatus](rr.Commands); !ok || st.Status != StatusShutdown {
		t.Fatalf("expected shutdown banner, got %v", rr.Commands)
	}
	if _, ok := findCommand[CmdShutdownHost](rr.Commands); !ok {
		t.Fatalf("expected host shutdown")
	}

	rr = Reduce(s, BatteryObserved{Volts: 13.8, Level: 0}, cfg)
	if _, ok := findCommand[CmdShutdownHost](rr.Commands); ok {
		t.Fatalf("shutdown must be requested once")
	}

	cfg.ShutdownHost = false
	rr = Reduce(NewDaemonState(), BatteryObserved{Volts: 13.9, Level: 0}, cfg)
	if _, ok := findCommand[CmdShutdownHost](rr.Commands); ok {
		t.Fatalf("no shutdown command configured")
	}
}

func TestReduce_RequestStateSnapshot(t *testing.T) {
	s := NewDaemonState()
	pushState(t, s, map[string]any{"title": "x", "volume": 30.0})

	reply := make(chan StateSnapshot, 1)
	rr := Reduce(s, RequestStateSnapshot{Reply: reply}, testReducerConfig())
	pub, ok := findCommand[CmdPublishStateSnapshot](rr.Commands)
	if !ok {
		t.Fatalf("expected CmdPublishStateSnapshot")
	}
	if pub.Snapshot.Playback.Str(FieldTitle) != "x" || !pub.Snapshot.HasPlayback {
		t.Fatalf("unexpected snapshot %+v", pub.Snapshot)
	}

	// The snapshot must not alias daemon state.
	pub.Snapshot.Playback[FieldTitle] = "mutated"
	if s.Playback.Current().Str(FieldTitle) != "x" {
		t.Fatalf("snapshot aliases daemon state")
	}
}

func TestReduce_SetVolumeClamps(t *testing.T) {
	rr := Reduce(NewDaemonState(), SetVolume{Level: 140}, testReducerConfig())
	if set, ok := findCommand[CmdSetVolume](rr.Commands); !ok || set.Level != 100 {
		t.Fatalf("expected clamp to 100, got %v", rr.Commands)
	}
}
