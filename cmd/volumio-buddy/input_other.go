//go:build !linux

package main

import (
	"context"
	"errors"
	"os"
)

func readInputEventsEpoll(ctx context.Context, files []*os.File, events chan<- inputEvent, readErr chan<- error) {
	readErr <- errors.New("evdev input is only supported on linux")
}
