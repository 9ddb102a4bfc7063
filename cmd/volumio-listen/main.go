package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// volumio-listen connects to Volumio's socket.io endpoint and prints every
// pushState record. With -emit it sends one event first, e.g. -emit next or
// -emit 'volume,+'.

func main() {
	var (
		host   = flag.String("host", "localhost", "Volumio host")
		port   = flag.Int("port", 3000, "Volumio port")
		emit   = flag.String("emit", "", "Emit one event after connecting: name[,arg...]")
		fields = flag.String("fields", "", "Comma separated pushState fields to print (default: all)")
	)
	flag.Parse()

	u := url.URL{
		Scheme:   "ws",
		Host:     net.JoinHostPort(*host, strconv.Itoa(*port)),
		Path:     "/socket.io/",
		RawQuery: "EIO=3&transport=websocket",
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(msg string) {
		writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, []byte(msg))
		writeMu.Unlock()
		if err != nil {
			log.Printf("write failed: %v", err)
		}
	}

	var wanted []string
	if *fields != "" {
		wanted = strings.Split(*fields, ",")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var pingOnce sync.Once
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			s := string(msg)
			switch {
			case strings.HasPrefix(s, "0"):
				var open struct {
					PingInterval int `json:"pingInterval"`
				}
				_ = json.Unmarshal(msg[1:], &open)
				if open.PingInterval <= 0 {
					open.PingInterval = 25000
				}
				pingOnce.Do(func() {
					go func() {
						t := time.NewTicker(time.Duration(open.PingInterval) * time.Millisecond)
						defer t.Stop()
						for range t.C {
							write("2")
						}
					}()
				})
			case s == "40":
				log.Printf("connected! (press Ctrl+C to exit)")
				write(`42["getState"]`)
				if *emit != "" {
					frame, err := emitFrame(*emit)
					if err != nil {
						log.Printf("bad -emit: %v", err)
					} else {
						write(frame)
					}
				}
			case s == "2":
				write("3")
			case strings.HasPrefix(s, "42"):
				printEvent(msg[2:], wanted)
			}
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// emitFrame turns "name,arg,..." into a socket.io event frame. Numeric
// arguments are sent as numbers.
func emitFrame(arg string) (string, error) {
	parts := strings.Split(arg, ",")
	if parts[0] == "" {
		return "", fmt.Errorf("missing event name")
	}
	payload := []any{parts[0]}
	for _, p := range parts[1:] {
		if n, err := strconv.Atoi(p); err == nil {
			payload = append(payload, n)
			continue
		}
		payload = append(payload, p)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return "42" + string(b), nil
}

func printEvent(body []byte, wanted []string) {
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil || len(parts) == 0 {
		fmt.Printf("[TEXT] %s\n", body)
		return
	}
	var name string
	_ = json.Unmarshal(parts[0], &name)
	if name != "pushState" || len(parts) < 2 {
		fmt.Printf("[%s] %d args\n", name, len(parts)-1)
		return
	}

	var state map[string]any
	if err := json.Unmarshal(parts[1], &state); err != nil {
		fmt.Printf("[pushState] %s\n", parts[1])
		return
	}
	if len(wanted) > 0 {
		filtered := make(map[string]any, len(wanted))
		for _, f := range wanted {
			filtered[f] = state[f]
		}
		state = filtered
	}
	pretty, _ := json.MarshalIndent(state, "", "  ")
	fmt.Printf("[pushState]\n%s\n\n", pretty)
}
