package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// ============================================================================
// vb-ctl - Command-line IPC Client
// ============================================================================
// Sends actions to the volumio-buddy daemon over its unix socket, or asks it
// for the current state.
//
// Usage:
//   vb-ctl toggle
//   vb-ctl set-volume 40
//   vb-ctl turn track -1
//   vb-ctl status
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/volumio-buddy.sock)
// ============================================================================

// envelope mirrors the daemon's line-delimited JSON request.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ipcResponse mirrors the daemon's reply.
type ipcResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
}

// simpleCommands map CLI verbs to payload-free action types.
var simpleCommands = map[string]string{
	"play":        "play",
	"pause":       "pause",
	"toggle":      "toggle_play",
	"stop":        "stop",
	"next":        "next",
	"prev":        "previous",
	"previous":    "previous",
	"up":          "volume_up",
	"volume-up":   "volume_up",
	"down":        "volume_down",
	"volume-down": "volume_down",
	"popup":       "show_popup",
}

func main() {
	socketPath := "/tmp/volumio-buddy.sock"

	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "-socket" || args[0] == "--socket") {
		if len(args) < 2 {
			fail("-socket requires an argument")
		}
		socketPath = args[1]
		args = args[2:]
	}
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	req, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}
	if req == nil {
		printUsage()
		return
	}

	resp, err := roundTrip(socketPath, *req)
	if err != nil {
		fail(err.Error())
	}

	if req.Type == "get_state" {
		var pretty any
		if err := json.Unmarshal(resp.State, &pretty); err != nil {
			fail("decode state: " + err.Error())
		}
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Println("ok")
}

// parseCommand builds the request for a CLI invocation. A nil request means
// help was asked for.
func parseCommand(args []string) (*envelope, error) {
	verb := args[0]
	if t, ok := simpleCommands[verb]; ok {
		return &envelope{Type: t}, nil
	}

	intArg := func(what string, idx int) (int, error) {
		if len(args) <= idx {
			return 0, fmt.Errorf("%s requires %s", verb, what)
		}
		n, err := strconv.Atoi(args[idx])
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", what, err)
		}
		return n, nil
	}

	switch verb {
	case "set-volume", "set":
		level, err := intArg("a level (0-100)", 1)
		if err != nil {
			return nil, err
		}
		if level < 0 || level > 100 {
			return nil, fmt.Errorf("volume %d out of range 0..100", level)
		}
		return &envelope{Type: "set_volume", Data: map[string]int{"level": level}}, nil

	case "seek":
		sec, err := intArg("seconds", 1)
		if err != nil {
			return nil, err
		}
		return &envelope{Type: "seek", Data: map[string]int{"seconds": sec}}, nil

	case "turn":
		if len(args) < 2 || (args[1] != "volume" && args[1] != "track") {
			return nil, fmt.Errorf("turn requires an encoder (volume or track)")
		}
		steps, err := intArg("steps", 2)
		if err != nil {
			return nil, err
		}
		return &envelope{Type: "rotary_turn", Data: map[string]any{"encoder": args[1], "steps": steps}}, nil

	case "status", "state":
		return &envelope{Type: "get_state"}, nil

	case "help", "-h", "--help":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown command: %s", verb)
}

func roundTrip(socketPath string, req envelope) (ipcResponse, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	data, err := json.Marshal(req)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return ipcResponse{}, fmt.Errorf("send request: %w", err)
	}

	var resp ipcResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return ipcResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status == "error" {
		return resp, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp, nil
}

func fail(msg string) {
	fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `vb-ctl - Control the volumio-buddy daemon via IPC

Usage:
  vb-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/volumio-buddy.sock)

Commands:
  play, pause, stop           Player transport
  toggle                      Pause when playing, play otherwise
  next, prev                  Skip tracks
  up, down                    One volume step
  set-volume, set <0-100>     Absolute volume
  seek <seconds>              Jump within the current track
  turn <volume|track> <n>     Simulate n encoder detents (negative = left)
  popup                       Show the next menu popup
  status                      Print the daemon state as JSON
  help, -h, --help            Show this help message

Examples:
  vb-ctl toggle
  vb-ctl turn volume 5
  vb-ctl -socket /run/volumio-buddy.sock status
`)
}
