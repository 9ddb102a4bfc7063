package main

import (
	"context"
	"log/slog"
	"time"
)

// runDaemon is the central loop. It
//   - receives Events from inputs, IPC, the Volumio client and the battery poller
//   - reduces them into (state, commands, broadcasts)
//   - executes commands via fx and feeds failures back into the reducer
//   - forwards broadcasts to the status websocket without blocking
//
// It returns when ctx is canceled or events is closed.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	fx *Effects,
	cfg ReducerConfig,
	state *DaemonState,
	broadcasts chan<- StateBroadcast,
	logger *slog.Logger,
) error {
	if state == nil {
		state = NewDaemonState()
	}

	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	publish := func(bs []StateBroadcast) {
		if broadcasts == nil {
			return
		}
		for _, b := range bs {
			select {
			case broadcasts <- b:
			default:
				logger.Warn("state broadcast queue full, dropping broadcast")
			}
		}
	}

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev, cfg)
			if rr.State != nil {
				state = rr.State
			}
			cmdQueue = append(cmdQueue, rr.Commands...)
			publish(rr.Broadcasts)
		}
	}

	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			logger.Debug("command", "cmd", cmd.String())
			fx.runEffect(cmd, enqueueEvent)

			flushEvents()
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return nil

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return nil
			}
			enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			flushEvents()
			flushCommands()
		}
	}
}
