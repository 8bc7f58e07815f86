package config

import (
	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration.
type Config struct {
	Logger LogConf   // Logger - log level settings.
	Device DeviceCon // Device - mixer channel layout.
	OSC    OSCConf   // OSC - device and listen endpoints.
	Meter  MeterConf // Meter - meter forwarding rate.
	MQTT   MQTTConf  // MQTT - bridge client settings.
}

// LogConf holds the logger settings.
type LogConf struct {
	Level string `toml:"log-level"` // Level - logging level (debug, info, warn, error).
}

// DeviceCon describes the channel layout of the controlled mixer.
type DeviceCon struct {
	Inputs    int `toml:"inputs"`    // Inputs - hardware input channel count.
	Outputs   int `toml:"outputs"`   // Outputs - hardware output channel count.
	Playbacks int `toml:"playbacks"` // Playbacks - software playback channel count.
}

// OSCConf holds the UDP endpoints for the OSC session.
type OSCConf struct {
	DeviceHost string `toml:"device-host"` // DeviceHost - where oscmix listens for commands.
	DevicePort string `toml:"device-port"`
	ListenHost string `toml:"listen-host"` // ListenHost - local address for device reports.
	ListenPort string `toml:"listen-port"`
}

// MeterConf holds the meter aggregator settings.
type MeterConf struct {
	RateHz int `toml:"rate-hz"` // RateHz - meter emission rate, samples per second.
}

// MQTTConf holds the MQTT bridge settings.
type MQTTConf struct {
	ClientID string `toml:"clientID"` // ClientID - client name for the broker.
	Host     string `toml:"server"`   // Host - MQTT server address.
	Port     string `toml:"port"`     // Port - MQTT server port.
	User     string `toml:"user"`     // User - login for the MQTT server.
	Password string `toml:"password"` // Password - password for the MQTT server.
	Prefix   string `toml:"prefix"`   // Prefix - topic prefix, default "oscmix".
	Qos      byte   `toml:"qos"`      // Qos - quality of service.
}

// NewConfig reads the TOML file at path over the built-in defaults.
func NewConfig(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns the configuration used when a field is absent from the file.
func Default() *Config {
	return &Config{
		Logger: LogConf{Level: "info"},
		Device: DeviceCon{Inputs: 20, Outputs: 20, Playbacks: 20},
		OSC: OSCConf{
			DeviceHost: "127.0.0.1",
			DevicePort: "8000",
			ListenHost: "0.0.0.0",
			ListenPort: "9001",
		},
		Meter: MeterConf{RateHz: 25},
		MQTT: MQTTConf{
			ClientID: "oscmix2mqtt",
			Host:     "127.0.0.1",
			Port:     "1883",
			Prefix:   "oscmix",
		},
	}
}
