package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Player is the remote playback transport. *VolumioClient implements it.
type Player interface {
	Play() error
	Pause() error
	Stop() error
	Next() error
	Previous() error
	VolumeStep(up bool) error
	SetVolume(level int) error
	Seek(seconds int) error
}

// displaySurface is the part of *Display the effects layer drives.
type displaySurface interface {
	UpdateMainScreen(label string, duration, seek int)
	TriggerVolume(level int) error
	TriggerStatus(kind StatusKind)
	SetStatus(kind StatusKind)
	TriggerMessage(lines ...string) error
	ShowNextPopup() error
}

// ledSetter is the part of *StatusLED the effects layer drives.
type ledSetter interface {
	Set(c LEDColor) error
}

// Effects holds the targets of reducer commands. Any of them may be nil:
// player commands without a player fail, display and LED commands without a
// surface are dropped.
type Effects struct {
	Player   Player
	Display  displaySurface
	LED      ledSetter
	Shutdown []string // battery shutdown command and arguments
	Logger   *slog.Logger
}

// errNoPlayer indicates a player command was issued without a connection.
var errNoPlayer = errors.New("no player connection")

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }

// runEffect executes a single reducer-emitted Command. Failures are reported
// through onEvent as CommandFailed so the reducer can react.
func (fx *Effects) runEffect(cmd Command, onEvent func(Event)) {
	logger := fx.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fail := func(err error) {
		logger.Warn("command failed", "command", cmd.String(), "error", err)
		if onEvent != nil {
			onEvent(CommandFailed{Command: cmd, Err: err})
		}
	}

	switch c := cmd.(type) {
	case CmdPlay, CmdPause, CmdStop, CmdNext, CmdPrevious, CmdVolumeStep, CmdSetVolume, CmdSeek:
		if fx.Player == nil {
			fail(errNoPlayer)
			return
		}
		if err := fx.runPlayer(c); err != nil {
			fail(err)
		}

	case CmdUpdateMainScreen:
		if fx.Display != nil {
			fx.Display.UpdateMainScreen(c.Label, c.Duration, c.Seek)
		}
	case CmdShowVolume:
		if fx.Display != nil {
			if err := fx.Display.TriggerVolume(c.Level); err != nil {
				fail(err)
			}
		}
	case CmdShowStatus:
		if fx.Display != nil {
			fx.Display.TriggerStatus(c.Status)
		}
	case CmdSetStatus:
		if fx.Display != nil {
			fx.Display.SetStatus(c.Status)
		}
	case CmdShowNextPopup:
		if fx.Display != nil {
			if err := fx.Display.ShowNextPopup(); err != nil {
				fail(err)
			}
		}
	case CmdShowMessage:
		if fx.Display != nil {
			if err := fx.Display.TriggerMessage(c.Lines...); err != nil {
				fail(err)
			}
		}

	case CmdSetLED:
		if fx.LED != nil {
			if err := fx.LED.Set(c.Color); err != nil {
				fail(err)
			}
		}

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		// Never block the daemon loop.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	case CmdShutdownHost:
		if _, err := fx.shutdownHost(logger); err != nil {
			fail(err)
		}

	default:
		fail(errUnknownCommand{cmd: cmd})
	}
}

func (fx *Effects) runPlayer(cmd Command) error {
	switch c := cmd.(type) {
	case CmdPlay:
		return fx.Player.Play()
	case CmdPause:
		return fx.Player.Pause()
	case CmdStop:
		return fx.Player.Stop()
	case CmdNext:
		return fx.Player.Next()
	case CmdPrevious:
		return fx.Player.Previous()
	case CmdVolumeStep:
		return fx.Player.VolumeStep(c.Up)
	case CmdSetVolume:
		return fx.Player.SetVolume(c.Level)
	case CmdSeek:
		return fx.Player.Seek(c.Seconds)
	}
	return errUnknownCommand{cmd: cmd}
}

// shutdownHost starts the configured shutdown command and reaps it in the
// background so the daemon loop keeps running. Start failures are returned;
// the exit status arrives on the returned channel and is logged.
func (fx *Effects) shutdownHost(logger *slog.Logger) (<-chan error, error) {
	if len(fx.Shutdown) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, fx.Shutdown[0], fx.Shutdown[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("shutdown command %q: %w", fx.Shutdown[0], err)
	}
	logger.Info("shutdown command started", "command", fx.Shutdown[0], "pid", cmd.Process.Pid)

	done := make(chan error, 1)
	go func() {
		defer cancel()
		err := cmd.Wait()
		if err != nil {
			err = fmt.Errorf("shutdown command %q: %w (output: %s)", fx.Shutdown[0], err, out.Bytes())
			logger.Error("shutdown command failed", "error", err)
		}
		done <- err
		close(done)
	}()
	return done, nil
}
