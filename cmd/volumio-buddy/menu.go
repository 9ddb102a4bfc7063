package main

import "fmt"

// menuSources are the values popup providers may read. Both are safe to use
// from the display goroutine. battery is nil when the sensor is disabled or
// failed to open; battery providers then render "?".
type menuSources struct {
	battery *BatteryMonitor
	network *NetworkInfo
}

func (s menuSources) provider(name string) (func() string, error) {
	switch name {
	case "battery.level", "battery.voltage":
		if s.battery == nil {
			return unknownLabel, nil
		}
		if name == "battery.level" {
			return s.battery.levelLabel, nil
		}
		return s.battery.voltageLabel, nil
	case "wifi.ssid":
		return func() string { return s.network.WifiSSID }, nil
	case "net.ip":
		return s.network.IP, nil
	case "hotspot.ssid":
		return func() string { return s.network.HotspotSSID }, nil
	case "hotspot.passphrase":
		return func() string { return s.network.HotspotPassphrase }, nil
	case "hostname":
		return hostnameLabel, nil
	}
	return nil, fmt.Errorf("unknown popup provider %q", name)
}

func isBatteryProvider(name string) bool {
	return name == "battery.level" || name == "battery.voltage"
}

func unknownLabel() string { return "?" }

// defaultMenu is installed when the config lists no popups.
func defaultMenu(withBattery bool) []PopupConfig {
	p := func(name string) PopupArgConfig { return PopupArgConfig{Provider: name} }
	var menu []PopupConfig
	if withBattery {
		menu = append(menu, PopupConfig{
			Lines: []string{"Battery: {}%", "Voltage: {} V"},
			Args:  []PopupArgConfig{p("battery.level"), p("battery.voltage")},
		})
	}
	return append(menu,
		PopupConfig{
			Lines: []string{"ssid: {}", "ip: {}"},
			Args:  []PopupArgConfig{p("wifi.ssid"), p("net.ip")},
		},
		PopupConfig{
			Lines: []string{"ssid: {}", "pw: {}"},
			Args:  []PopupArgConfig{p("hotspot.ssid"), p("hotspot.passphrase")},
		},
	)
}

// buildMenu turns popup configuration into popups. An empty configuration
// yields the default menu.
func buildMenu(cfgs []PopupConfig, src menuSources) ([]*Popup, error) {
	if len(cfgs) == 0 {
		cfgs = defaultMenu(src.battery != nil)
	}
	popups := make([]*Popup, 0, len(cfgs))
	for i, pc := range cfgs {
		args := make([]PopupArg, 0, len(pc.Args))
		for _, a := range pc.Args {
			if a.Text != nil {
				args = append(args, Literal(*a.Text))
				continue
			}
			fn, err := src.provider(a.Provider)
			if err != nil {
				return nil, fmt.Errorf("popups[%d]: %w", i, err)
			}
			args = append(args, Provider(fn))
		}
		p, err := NewPopup(pc.Lines, args...)
		if err != nil {
			return nil, fmt.Errorf("popups[%d]: %w", i, err)
		}
		popups = append(popups, p)
	}
	return popups, nil
}
