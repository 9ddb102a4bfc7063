package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
)

const unknownValue = "unknown"

// NetworkInfo holds the Wi-Fi client and hotspot settings shown in popups.
type NetworkInfo struct {
	WifiSSID          string
	WifiPSK           string
	HotspotSSID       string
	HotspotPassphrase string

	// ipProbe resolves the outbound address. Replaced in tests.
	ipProbe func() (string, error)
}

// parseKeyValues reads key=value lines. Lines without '=' are skipped, as
// are comments. Surrounding whitespace and double quotes are stripped. The
// first occurrence of a key wins.
func parseKeyValues(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, seen := out[key]; seen {
			continue
		}
		out[key] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return out, sc.Err()
}

func readKeyValueFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseKeyValues(f)
}

func valueOr(m map[string]string, key string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return unknownValue
}

// LoadNetworkInfo reads hostapd and wpa_supplicant configuration. Missing
// or unreadable files leave the fields as "unknown".
func LoadNetworkInfo(cfg NetworkConfig) *NetworkInfo {
	hostapd, _ := readKeyValueFile(ExpandPath(cfg.HostapdConf))
	wpa, _ := readKeyValueFile(ExpandPath(cfg.WpaSupplicantConf))
	return &NetworkInfo{
		WifiSSID:          valueOr(wpa, "ssid"),
		WifiPSK:           valueOr(wpa, "psk"),
		HotspotSSID:       valueOr(hostapd, "ssid"),
		HotspotPassphrase: valueOr(hostapd, "wpa_passphrase"),
		ipProbe:           outboundIP,
	}
}

// outboundIP returns the local address the kernel would route external
// traffic from. UDP connect sends no packets.
func outboundIP() (string, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:53")
	if err != nil {
		return "", fmt.Errorf("route probe: %w", err)
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.IsLoopback() {
		return "", fmt.Errorf("no routable address")
	}
	return addr.IP.String(), nil
}

// IP returns the current outbound address or "none".
func (n *NetworkInfo) IP() string {
	probe := n.ipProbe
	if probe == nil {
		probe = outboundIP
	}
	ip, err := probe()
	if err != nil || ip == "" {
		return "none"
	}
	return ip
}

func hostnameLabel() string {
	h, err := os.Hostname()
	if err != nil {
		return unknownValue
	}
	return h
}
