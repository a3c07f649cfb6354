package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
target_host: "collector.local"
target_port: 6000
packet_size_bytes: 1024
packets_per_device: 100
send_interval: "1s"
device_count: 1000
start_stagger: "100ms"
window_start: "2s"
window_stop: "20s"
horizon: "25s"
io_timeout: "5s"
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	path := writeTemp(t, "simulation.yaml", validYAML)
	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TargetHost != "collector.local" || cfg.TargetPort != 6000 {
		t.Errorf("target = %s:%d", cfg.TargetHost, cfg.TargetPort)
	}
	if cfg.SendInterval.Std() != time.Second {
		t.Errorf("send_interval = %v, want 1s", cfg.SendInterval.Std())
	}
	if cfg.DeviceCount != 1000 || cfg.PacketsPerDevice != 100 {
		t.Errorf("device_count=%d packets_per_device=%d", cfg.DeviceCount, cfg.PacketsPerDevice)
	}
	if cfg.StartStagger.Std() != 100*time.Millisecond {
		t.Errorf("start_stagger = %v", cfg.StartStagger.Std())
	}
}

func TestLoadValidatesAgainstSchema(t *testing.T) {
	path := writeTemp(t, "simulation.yaml", validYAML)
	cfg, err := Load(path, "../../schemas/simulation.cue")
	if err != nil {
		t.Fatalf("Load with schema: %v", err)
	}
	if cfg.Horizon.Std() != 25*time.Second {
		t.Errorf("horizon = %v", cfg.Horizon.Std())
	}
}

func TestLoadSchemaRejectsBadPort(t *testing.T) {
	bad := `
target_host: "collector.local"
target_port: 99999
packet_size_bytes: 1024
packets_per_device: 100
send_interval: "1s"
device_count: 10
horizon: "25s"
`
	path := writeTemp(t, "simulation.yaml", bad)
	if _, err := Load(path, "../../schemas/simulation.cue"); err == nil {
		t.Fatal("expected schema validation error for port 99999")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	minimal := `
target_host: "collector.local"
target_port: 6000
packet_size_bytes: 1024
packets_per_device: 10
send_interval: "1s"
device_count: 5
horizon: "25s"
`
	path := writeTemp(t, "simulation.yaml", minimal)
	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IOTimeout.Std() != DefaultIOTimeout {
		t.Errorf("io_timeout default = %v, want %v", cfg.IOTimeout.Std(), DefaultIOTimeout)
	}
	if cfg.WindowStop != cfg.Horizon {
		t.Errorf("window_stop default = %v, want horizon %v", cfg.WindowStop.Std(), cfg.Horizon.Std())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() SimulationConfig {
		return SimulationConfig{
			TargetHost:       "h",
			TargetPort:       6000,
			PacketSizeBytes:  1024,
			PacketsPerDevice: 10,
			SendInterval:     Duration(time.Second),
			DeviceCount:      5,
			Horizon:          Duration(25 * time.Second),
			IOTimeout:        Duration(5 * time.Second),
		}
	}

	cases := []struct {
		name   string
		mutate func(*SimulationConfig)
		field  string
	}{
		{"empty host", func(c *SimulationConfig) { c.TargetHost = "" }, "target_host"},
		{"port too high", func(c *SimulationConfig) { c.TargetPort = 70000 }, "target_port"},
		{"zero packet size", func(c *SimulationConfig) { c.PacketSizeBytes = 0 }, "packet_size_bytes"},
		{"negative quota", func(c *SimulationConfig) { c.PacketsPerDevice = -1 }, "packets_per_device"},
		{"zero interval", func(c *SimulationConfig) { c.SendInterval = 0 }, "send_interval"},
		{"zero devices", func(c *SimulationConfig) { c.DeviceCount = 0 }, "device_count"},
		{"negative stagger", func(c *SimulationConfig) { c.StartStagger = Duration(-time.Second) }, "start_stagger"},
		{"zero horizon", func(c *SimulationConfig) { c.Horizon = 0 }, "horizon"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *ConfigurationError, got %v", err)
			}
			if cerr.Field != tc.field {
				t.Errorf("error field = %q, want %q", cerr.Field, tc.field)
			}
		})
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	bad := `
target_host: "collector.local"
target_port: 6000
packet_size_bytes: 1024
packets_per_device: 10
send_interval: "fast"
device_count: 5
horizon: "25s"
`
	path := writeTemp(t, "simulation.yaml", bad)
	if _, err := Load(path, ""); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
