package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete portal configuration
type Config struct {
	InstanceID       string          `yaml:"instance_id"`
	Station          string          `yaml:"station"` // archway label shown on order reports
	ShutdownTimeoutS int             `yaml:"shutdown_timeout_s"`
	Manifest         ManifestConfig  `yaml:"manifest"`
	Proximity        ProximityConfig `yaml:"proximity"`
	Scanner          ScannerConfig   `yaml:"scanner"`
	Orders           OrdersConfig    `yaml:"orders"`
	MQTT             MQTTConfig      `yaml:"mqtt"`
}

// ManifestConfig contains manifest discovery settings
type ManifestConfig struct {
	MountRoots []string `yaml:"mount_roots"` // empty: guess from the host
	Filenames  []string `yaml:"filenames"`   // empty: barcode.txt, barcodes.txt, manifest.txt
	PollMS     int      `yaml:"poll_ms"`     // scan cadence (default 1000)
	MaxDepth   int      `yaml:"max_depth"`   // walk depth under each root (default 2)
}

// ProximityConfig contains rangefinder settings
type ProximityConfig struct {
	HardMinIn     float64 `yaml:"hard_min_in"`     // minimum reliable distance (default 6.0)
	MaxIn         float64 `yaml:"max_in"`          // maximum reliable distance (default 254.0)
	TriggerIn     float64 `yaml:"trigger_in"`      // scan trigger distance (default 13.0)
	ReadTimeoutMS int     `yaml:"read_timeout_ms"` // single read bound (default 50)
	SettleMS      int     `yaml:"settle_ms"`       // delay between the two sensors (default 100)
	CycleMS       int     `yaml:"cycle_ms"`        // pause between reading cycles (default 3000)
	Simulate      bool    `yaml:"simulate"`        // scripted sensors instead of hardware
}

// ScannerConfig contains decode stream settings
type ScannerConfig struct {
	Streams       int  `yaml:"streams"`         // number of decode streams (default 2)
	StopTimeoutMS int  `yaml:"stop_timeout_ms"` // bounded worker stop (default 2000)
	Simulate      bool `yaml:"simulate"`        // scripted decode sources instead of cameras
}

// OrdersConfig contains completed-order history settings
type OrdersConfig struct {
	DBPath string `yaml:"db_path"` // empty: in-memory only
}

// MQTTConfig contains MQTT broker settings. An empty broker disables the
// MQTT surfaces and the portal runs with log-only events.
type MQTTConfig struct {
	Broker string          `yaml:"broker"`
	Topics MQTTTopics      `yaml:"topics"`
	QoS    map[string]byte `yaml:"qos"`
}

// MQTTTopics contains topic templates
type MQTTTopics struct {
	Control string `yaml:"control"`
	Events  string `yaml:"events"`
	Health  string `yaml:"health"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
