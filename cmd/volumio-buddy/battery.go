package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ina219"
)

// powerSensor is satisfied by *ina219.Dev.
type powerSensor interface {
	Sense() (ina219.PowerMonitor, error)
}

// BatteryReading is one sample of the pack.
type BatteryReading struct {
	Volts float64
	Level int
	At    time.Time
}

// BatteryPolicy holds the pack geometry and per-cell thresholds.
type BatteryPolicy struct {
	Cells int
	Full  float64
	Low   float64
	Warn  float64
	Empty float64
}

// Level converts pack voltage into a 0..100 charge estimate.
func (p BatteryPolicy) Level(volts float64) int {
	if p.Cells <= 0 || p.Full <= p.Low {
		return 0
	}
	perCell := volts / float64(p.Cells)
	level := int(100 * (perCell - p.Low) / (p.Full - p.Low))
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}

// IsWarn reports whether the pack is at or below the warning threshold.
func (p BatteryPolicy) IsWarn(volts float64) bool {
	return volts <= float64(p.Cells)*p.Warn
}

// IsEmpty reports whether the pack is at or below the cut-off threshold.
func (p BatteryPolicy) IsEmpty(volts float64) bool {
	return volts <= float64(p.Cells)*p.Empty
}

// BatteryMonitor polls an INA219 and keeps the latest reading.
type BatteryMonitor struct {
	sensor   powerSensor
	policy   BatteryPolicy
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	last BatteryReading
	ok   bool
}

// openBatterySensor opens an INA219 on bus.
func openBatterySensor(bus i2c.Bus, cfg BatteryConfig) (*ina219.Dev, error) {
	opts := ina219.DefaultOpts
	opts.Address = cfg.Address
	opts.SenseResistor = physic.ElectricResistance(cfg.ShuntOhms * float64(physic.Ohm))
	dev, err := ina219.New(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("ina219: %w", err)
	}
	return dev, nil
}

// NewBatteryMonitor returns a monitor polling sensor every interval.
func NewBatteryMonitor(sensor powerSensor, policy BatteryPolicy, interval time.Duration, logger *slog.Logger) *BatteryMonitor {
	return &BatteryMonitor{sensor: sensor, policy: policy, interval: interval, logger: logger}
}

// Sample reads the sensor once. Pack voltage is bus voltage plus the drop
// across the shunt.
func (m *BatteryMonitor) Sample() (BatteryReading, error) {
	pm, err := m.sensor.Sense()
	if err != nil {
		return BatteryReading{}, fmt.Errorf("battery sense: %w", err)
	}
	volts := float64(pm.Voltage+pm.Shunt) / float64(physic.Volt)
	r := BatteryReading{Volts: volts, Level: m.policy.Level(volts), At: time.Now()}

	m.mu.Lock()
	m.last = r
	m.ok = true
	m.mu.Unlock()
	return r, nil
}

// Last returns the most recent reading and whether one exists.
func (m *BatteryMonitor) Last() (BatteryReading, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.ok
}

// Run samples immediately and then every interval, handing each reading to
// onReading. Sensor errors are logged and skipped.
func (m *BatteryMonitor) Run(ctx context.Context, onReading func(BatteryReading)) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if r, err := m.Sample(); err != nil {
			m.logger.Warn("battery read failed", "error", err)
		} else {
			m.logger.Debug("battery", "volts", r.Volts, "level", r.Level)
			if onReading != nil {
				onReading(r)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// levelLabel and voltageLabel feed popup providers.
func (m *BatteryMonitor) levelLabel() string {
	r, ok := m.Last()
	if !ok {
		return "?"
	}
	return fmt.Sprintf("%d", r.Level)
}

func (m *BatteryMonitor) voltageLabel() string {
	r, ok := m.Last()
	if !ok {
		return "?"
	}
	return fmt.Sprintf("%.2f", r.Volts)
}
