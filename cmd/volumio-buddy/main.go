package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio"
)

const version = "1.0.0"

const (
	defaultConfigPath = "/etc/volumio-buddy.yml"

	// shutdownBannerHold keeps the Shutdown status on screen before the
	// final clear.
	shutdownBannerHold = time.Second
)

func printVersion() {
	fmt.Printf("volumio-buddy v%s\n", version)
	fmt.Println("Rotary encoder, button and OLED companion for Volumio")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  volumio-buddy [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Flags override values from the config file.")
	fmt.Printf("  - A missing %s means built-in defaults.\n", defaultConfigPath)
	fmt.Println("  - GPIO and I2C access usually needs root or the gpio/i2c groups.")
	fmt.Println()
}

func main() {
	var (
		configPath  = flag.String("config", defaultConfigPath, "Path to YAML config file")
		logLevel    = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		volumioHost = flag.String("volumio-host", defaultVolumioHost, "Volumio host")
		volumioPort = flag.Int("volumio-port", defaultVolumioPort, "Volumio port")
		ipcSocket   = flag.String("ipc-socket", "/tmp/volumio-buddy.sock", "Unix domain socket path for IPC")
		statusPort  = flag.Int("status-port", 3010, "Status HTTP/websocket port (0 disables)")
		pull        = flag.String("pull", "up", "Pull resistor for all encoder and button pins: up, down, none")
		noDisplay   = flag.Bool("no-display", false, "Run without the OLED (frames are kept in memory)")
		showVersion = flag.Bool("version", false, "Print version and exit")
		showHelp    = flag.Bool("help", false, "Print help message")
	)
	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Only explicitly set flags override the config file.
	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			overrides.LogLevel = logLevel
		case "volumio-host":
			overrides.VolumioHost = volumioHost
		case "volumio-port":
			overrides.VolumioPort = volumioPort
		case "ipc-socket":
			overrides.IPCSocket = ipcSocket
		case "status-port":
			overrides.StatusPort = statusPort
		case "pull":
			overrides.Pull = pull
		case "no-display":
			overrides.NoDisplay = noDisplay
		}
	})

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid config: %v\n", err)
		os.Exit(1)
	}

	level, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := setupLogger(level, os.Stdout)
	logger.Debug("starting volumio-buddy", "version", version, "config", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("volumio-buddy stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}

// loadConfig reads path on top of the defaults. A missing file at the
// default location is not an error.
func loadConfig(path string) (Config, error) {
	cfg, err := LoadConfigFile(path)
	if err != nil {
		if path == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return Config{}, err
	}
	return cfg, nil
}

// run wires every component and blocks until ctx is canceled or a component
// fails.
func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	hw, err := InitHardware(logger)
	if err != nil {
		logger.Warn("hardware unavailable; GPIO, OLED, LED and battery disabled", "error", err)
	} else {
		defer hw.Close()
	}

	events := make(chan Event, defaultQueueLength)
	send := func(ev Event) {
		select {
		case events <- ev:
		default:
			logger.Warn("event queue full, dropping event", "event", fmt.Sprintf("%T", ev))
		}
	}

	display := setupDisplay(cfg, hw, logger)

	var battery *BatteryMonitor
	if cfg.Battery.Enabled && hw != nil {
		battery, err = setupBattery(cfg, hw, logger)
		if err != nil {
			logger.Error("battery monitor disabled", "error", err)
		}
	}

	popups, err := buildMenu(cfg.Popups, menuSources{battery: battery, network: LoadNetworkInfo(cfg.Network)})
	if err != nil {
		return fmt.Errorf("popups: %w", err)
	}
	for _, p := range popups {
		display.AddPopup(p)
	}

	client := NewVolumioClient(volumioURL(cfg.Volumio.Host, cfg.Volumio.Port), cfg.Volumio, events, logger)
	fx := &Effects{
		Player:   client,
		Display:  display,
		Shutdown: cfg.Battery.ShutdownCommand,
		Logger:   logger,
	}
	if cfg.LED.Enabled && hw != nil {
		led, err := setupLED(cfg.LED, hw)
		if err != nil {
			logger.Error("status LED disabled", "error", err)
		} else {
			fx.LED = led
		}
	}

	reducerCfg := ReducerConfig{
		Rotary:       cfg.ToRotaryConfig(),
		Battery:      cfg.ToBatteryPolicy(),
		ShutdownHost: len(cfg.Battery.ShutdownCommand) > 0,
	}

	// The display outlives the other workers so it can show the shutdown
	// banner after they stopped.
	displayCtx, stopDisplay := context.WithCancel(context.Background())
	displayDone := make(chan struct{})
	go func() {
		defer close(displayDone)
		_ = display.Run(displayCtx, time.Duration(cfg.Display.UpdateIntervalMS)*time.Millisecond)
	}()

	g, gctx := errgroup.WithContext(ctx)

	var broadcasts chan StateBroadcast
	if cfg.Status.Port > 0 {
		broadcasts = make(chan StateBroadcast, defaultQueueLength)
		ws := NewStatusServer(logger, events, HubConfig{})
		g.Go(func() error {
			ws.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, ws.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			return runStatusServer(gctx, cfg.Status.Port, newStatusMux(ws, events, logger), logger)
		})
	}

	g.Go(func() error {
		return runDaemon(gctx, events, fx, reducerCfg, NewDaemonState(), broadcasts, logger)
	})
	g.Go(func() error { return client.Run(gctx) })
	g.Go(func() error {
		return runIPCServer(gctx, ExpandPath(cfg.IPC.SocketPath), events, logger)
	})
	g.Go(func() error {
		return runInputDevices(gctx, cfg.Input.Devices, events, logger)
	})

	if battery != nil {
		g.Go(func() error {
			return battery.Run(gctx, func(r BatteryReading) {
				send(BatteryObserved{Volts: r.Volts, Level: r.Level})
			})
		})
	}

	if hw != nil {
		if err := startGPIO(gctx, g, cfg, hw, send, logger); err != nil {
			logger.Error("gpio setup failed", "error", err)
		}
	}

	logger.Info("listening",
		"volumio", volumioURL(cfg.Volumio.Host, cfg.Volumio.Port),
		"ipc", cfg.IPC.SocketPath,
		"status_port", cfg.Status.Port,
		"encoders", len(cfg.Encoders),
		"buttons", len(cfg.Buttons),
		"input_devices", len(cfg.Input.Devices),
		"popups", len(popups))

	err = g.Wait()

	logger.Info("shutting down")
	display.TriggerStatus(StatusShutdown)
	display.Tick()
	time.Sleep(shutdownBannerHold)
	stopDisplay()
	<-displayDone

	return err
}

func setupDisplay(cfg Config, hw *Hardware, logger *slog.Logger) *Display {
	var sink PixelSink = newMemorySink(cfg.Display.Width, cfg.Display.Height)
	if cfg.Display.Enabled && hw != nil {
		bus, err := hw.Bus(cfg.Display.Bus)
		if err == nil {
			var dev PixelSink
			if dev, err = openOLED(bus, cfg.Display); err == nil {
				sink = dev
			}
		}
		if err != nil {
			logger.Error("OLED unavailable, rendering to memory", "error", err)
		}
	}

	opts := cfg.ToDisplayOptions()
	opts.Logger = logger
	display := NewDisplay(sink, newTextRasterizer(cfg.Display.Font, cfg.Display.FontSize, logger), opts)
	if cfg.Display.Logo != "" {
		if err := display.LoadLogo(cfg.Display.Logo); err != nil {
			logger.Warn("logo not loaded", "path", cfg.Display.Logo, "error", err)
		}
	}
	return display
}

func setupBattery(cfg Config, hw *Hardware, logger *slog.Logger) (*BatteryMonitor, error) {
	bus, err := hw.Bus(cfg.Battery.Bus)
	if err != nil {
		return nil, err
	}
	sensor, err := openBatterySensor(bus, cfg.Battery)
	if err != nil {
		return nil, err
	}
	interval := time.Duration(cfg.Battery.PollIntervalMS) * time.Millisecond
	return NewBatteryMonitor(sensor, cfg.ToBatteryPolicy(), interval, logger), nil
}

func setupLED(cfg LEDConfig, hw *Hardware) (*StatusLED, error) {
	var pins [3]gpio.PinIO
	for i, name := range []string{cfg.Red, cfg.Green, cfg.Blue} {
		p, err := hw.OutputPin(name)
		if err != nil {
			return nil, err
		}
		pins[i] = p
	}
	led := NewStatusLED(pins[0], pins[1], pins[2])
	if err := led.Set(LEDBlue); err != nil {
		return nil, err
	}
	return led, nil
}

// startGPIO opens encoder and button pins and runs their watchers in g.
func startGPIO(ctx context.Context, g *errgroup.Group, cfg Config, hw *Hardware, send func(Event), logger *slog.Logger) error {
	for _, ec := range cfg.Encoders {
		pull, err := parsePull(ec.Pull)
		if err != nil {
			return fmt.Errorf("encoder %s: %w", ec.Name, err)
		}
		a, err := hw.InputPin(ec.PinA, pull, gpio.BothEdges)
		if err != nil {
			return fmt.Errorf("encoder %s: %w", ec.Name, err)
		}
		b, err := hw.InputPin(ec.PinB, pull, gpio.BothEdges)
		if err != nil {
			return fmt.Errorf("encoder %s: %w", ec.Name, err)
		}

		role := ec.Role
		enc := NewRotaryEncoder(ec.Name, a, b, time.Duration(ec.DebounceMS)*time.Millisecond, func(d Direction) {
			send(RotaryTurn{Encoder: role, Steps: d.Steps()})
		})
		g.Go(func() error { return enc.Run(ctx) })
		logger.Debug("encoder ready", "name", ec.Name, "role", role, "pin_a", ec.PinA, "pin_b", ec.PinB)
	}

	for _, bc := range cfg.Buttons {
		pull, err := parsePull(bc.Pull)
		if err != nil {
			return fmt.Errorf("button %s: %w", bc.Name, err)
		}
		edge, err := parseEdge(bc.Edge)
		if err != nil {
			return fmt.Errorf("button %s: %w", bc.Name, err)
		}
		pin, err := hw.InputPin(bc.Pin, pull, edge)
		if err != nil {
			return fmt.Errorf("button %s: %w", bc.Name, err)
		}
		action, ok := actionByName(buttonActions[bc.Action])
		if !ok {
			return fmt.Errorf("button %s: unknown action %q", bc.Name, bc.Action)
		}

		btn := NewPushButton(bc.Name, pin, time.Duration(bc.DebounceMS)*time.Millisecond, func() {
			send(action)
		})
		g.Go(func() error { return btn.Run(ctx) })
		logger.Debug("button ready", "name", bc.Name, "pin", bc.Pin, "action", bc.Action)
	}
	return nil
}
