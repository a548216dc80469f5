package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks if the configuration is valid and fills defaults
func Validate(cfg *Config) error {
	// Validate instance_id
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.Station == "" {
		cfg.Station = "Archway 1"
	}

	// Manifest discovery defaults
	if cfg.Manifest.PollMS <= 0 {
		cfg.Manifest.PollMS = 1000
	}
	if cfg.Manifest.MaxDepth <= 0 {
		cfg.Manifest.MaxDepth = 2
	}

	// Proximity thresholds: defaults, then sanity
	if cfg.Proximity.HardMinIn == 0 {
		cfg.Proximity.HardMinIn = 6.0
	}
	if cfg.Proximity.MaxIn == 0 {
		cfg.Proximity.MaxIn = 254.0
	}
	if cfg.Proximity.TriggerIn == 0 {
		cfg.Proximity.TriggerIn = 13.0
	}
	if cfg.Proximity.HardMinIn < 0 {
		return fmt.Errorf("proximity.hard_min_in must be >= 0")
	}
	if cfg.Proximity.MaxIn <= cfg.Proximity.HardMinIn {
		return fmt.Errorf("proximity.max_in must be greater than hard_min_in")
	}
	if cfg.Proximity.TriggerIn < cfg.Proximity.HardMinIn || cfg.Proximity.TriggerIn > cfg.Proximity.MaxIn {
		return fmt.Errorf("proximity.trigger_in must lie within [hard_min_in, max_in]")
	}
	if cfg.Proximity.ReadTimeoutMS <= 0 {
		cfg.Proximity.ReadTimeoutMS = 50
	}
	if cfg.Proximity.SettleMS <= 0 {
		cfg.Proximity.SettleMS = 100
	}
	if cfg.Proximity.CycleMS <= 0 {
		cfg.Proximity.CycleMS = 3000
	}

	// Scanner defaults
	if cfg.Scanner.Streams == 0 {
		cfg.Scanner.Streams = 2
	}
	if cfg.Scanner.Streams < 1 {
		return fmt.Errorf("scanner.streams must be >= 1")
	}
	if cfg.Scanner.StopTimeoutMS <= 0 {
		cfg.Scanner.StopTimeoutMS = 2000
	}

	// MQTT is optional; defaults only apply when a broker is configured
	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topics.Control == "" {
			cfg.MQTT.Topics.Control = fmt.Sprintf("portal/control/%s", cfg.InstanceID)
		}
		if cfg.MQTT.Topics.Events == "" {
			cfg.MQTT.Topics.Events = fmt.Sprintf("portal/events/%s", cfg.InstanceID)
		}
		if cfg.MQTT.Topics.Health == "" {
			cfg.MQTT.Topics.Health = fmt.Sprintf("portal/health/%s", cfg.InstanceID)
		}
		if cfg.MQTT.QoS == nil {
			cfg.MQTT.QoS = map[string]byte{
				"control": 1,
				"events":  1,
				"health":  0,
			}
		}
	}

	return nil
}
