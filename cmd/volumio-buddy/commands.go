package main

import (
	"fmt"
	"strings"
)

// Command represents a side effect requested by the reducer and executed by
// the daemon loop: Volumio calls, display updates, snapshot replies.
type Command interface {
	commandMarker()
	String() string
}

// ------------------------------------------------------------------
// Player commands
// ------------------------------------------------------------------

type CmdPlay struct{}

func (CmdPlay) commandMarker() {}
func (CmdPlay) String() string { return "CmdPlay()" }

type CmdPause struct{}

func (CmdPause) commandMarker() {}
func (CmdPause) String() string { return "CmdPause()" }

type CmdStop struct{}

func (CmdStop) commandMarker() {}
func (CmdStop) String() string { return "CmdStop()" }

type CmdNext struct{}

func (CmdNext) commandMarker() {}
func (CmdNext) String() string { return "CmdNext()" }

type CmdPrevious struct{}

func (CmdPrevious) commandMarker() {}
func (CmdPrevious) String() string { return "CmdPrevious()" }

// CmdVolumeStep asks Volumio to step volume by its own configured amount.
type CmdVolumeStep struct {
	Up bool
}

func (CmdVolumeStep) commandMarker() {}
func (c CmdVolumeStep) String() string {
	return fmt.Sprintf("CmdVolumeStep(up=%v)", c.Up)
}

// CmdSetVolume sets an absolute volume (0-100).
type CmdSetVolume struct {
	Level int
}

func (CmdSetVolume) commandMarker() {}
func (c CmdSetVolume) String() string {
	return fmt.Sprintf("CmdSetVolume(level=%d)", c.Level)
}

type CmdSeek struct {
	Seconds int
}

func (CmdSeek) commandMarker()   {}
func (c CmdSeek) String() string { return fmt.Sprintf("CmdSeek(seconds=%d)", c.Seconds) }

// ------------------------------------------------------------------
// Display commands
// ------------------------------------------------------------------

// CmdUpdateMainScreen refreshes the now-playing label and timing.
type CmdUpdateMainScreen struct {
	Label    string
	Duration int
	Seek     int
}

func (CmdUpdateMainScreen) commandMarker() {}
func (c CmdUpdateMainScreen) String() string {
	return fmt.Sprintf("CmdUpdateMainScreen(label=%q, duration=%d, seek=%d)", c.Label, c.Duration, c.Seek)
}

// CmdShowVolume raises the volume bar modal.
type CmdShowVolume struct {
	Level int
}

func (CmdShowVolume) commandMarker() {}
func (c CmdShowVolume) String() string {
	return fmt.Sprintf("CmdShowVolume(level=%d)", c.Level)
}

// CmdShowStatus raises a status banner (if the status changed).
type CmdShowStatus struct {
	Status StatusKind
}

func (CmdShowStatus) commandMarker() {}
func (c CmdShowStatus) String() string {
	return fmt.Sprintf("CmdShowStatus(status=%s)", c.Status)
}

// CmdSetStatus records a status without raising a modal.
type CmdSetStatus struct {
	Status StatusKind
}

func (CmdSetStatus) commandMarker() {}
func (c CmdSetStatus) String() string {
	return fmt.Sprintf("CmdSetStatus(status=%s)", c.Status)
}

type CmdShowNextPopup struct{}

func (CmdShowNextPopup) commandMarker() {}
func (CmdShowNextPopup) String() string { return "CmdShowNextPopup()" }

// CmdShowMessage raises a one or two line text modal.
type CmdShowMessage struct {
	Lines []string
}

func (CmdShowMessage) commandMarker() {}
func (c CmdShowMessage) String() string {
	return fmt.Sprintf("CmdShowMessage(%q)", strings.Join(c.Lines, " | "))
}

// CmdSetLED sets the status LED colour.
type CmdSetLED struct {
	Color LEDColor
}

func (CmdSetLED) commandMarker() {}
func (c CmdSetLED) String() string {
	return fmt.Sprintf("CmdSetLED(color=%s)", c.Color)
}

// ------------------------------------------------------------------
// Daemon commands
// ------------------------------------------------------------------

// CmdPublishStateSnapshot delivers a snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Reply    chan<- StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }

// CmdShutdownHost runs the configured battery shutdown command.
type CmdShutdownHost struct{}

func (CmdShutdownHost) commandMarker() {}
func (CmdShutdownHost) String() string { return "CmdShutdownHost()" }
