package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaunagostinho/dht22/internal/dht"
	"github.com/shaunagostinho/dht22/internal/sink"
)

// Config holds all daemon configuration.
type Config struct {
	mu sync.RWMutex

	Sensor SensorConfig      `yaml:"sensor" json:"sensor"`
	MQTT   sink.MQTTConfig   `yaml:"mqtt" json:"mqtt"`
	Serial sink.SerialConfig `yaml:"serial" json:"serial"`
	Modbus sink.ModbusConfig `yaml:"modbus" json:"modbus"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Server  ServerConfig  `yaml:"server" json:"server"`

	path string // file path for save/load
}

type SensorConfig struct {
	Driver          string `yaml:"driver" json:"driver"` // "periph", "rpio" or "demo"
	Pin             string `yaml:"pin" json:"pin"`       // header position or GPIO<n>
	Station         string `yaml:"station" json:"station"`
	IntervalS       int    `yaml:"interval_s" json:"intervalS"`
	MaxRetries      int    `yaml:"max_retries" json:"maxRetries"`
	RetryDelayMs    int    `yaml:"retry_delay_ms" json:"retryDelayMs"`
	StartLowMs      int    `yaml:"start_low_ms" json:"startLowMs"`
	WatchdogTicks   int    `yaml:"watchdog_ticks" json:"watchdogTicks"`
	PulseAbortTicks int    `yaml:"pulse_abort_ticks" json:"pulseAbortTicks"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`     // debug, info, warn, error
	AppEnv string `yaml:"app_env" json:"appEnv"` // "dev" for colour output
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

const (
	minIntervalS      = int(dht.MinInterval / time.Second)
	defaultConfigPath = "/etc/dht22/config.yaml"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		path: defaultConfigPath,
		Sensor: SensorConfig{
			Driver:          "periph",
			Pin:             "7",
			Station:         "dht22",
			IntervalS:       60,
			MaxRetries:      dht.DefaultMaxRetries,
			RetryDelayMs:    int(dht.DefaultRetryDelay / time.Millisecond),
			StartLowMs:      int(dht.DefaultStartLow / time.Millisecond),
			WatchdogTicks:   dht.DefaultWatchdogTicks,
			PulseAbortTicks: dht.DefaultPulseAbortTicks,
		},
		MQTT: sink.MQTTConfig{
			Enabled:  false,
			Broker:   "localhost",
			Port:     1883,
			ClientID: "dht22d",
		},
		Serial: sink.SerialConfig{
			Enabled:  false,
			PortPath: "/dev/ttyAMA0",
			BaudRate: 9600,
		},
		Modbus: sink.ModbusConfig{
			Enabled:   false,
			Endpoint:  "localhost:502",
			UnitID:    1,
			Address:   0,
			TimeoutMs: 2000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			AppEnv: "prod",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and environment
// variable overrides. Falls back to defaults if YAML not found.
func LoadConfig(path string, logger *slog.Logger) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Info("no config file, using defaults", "path", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		logger.Warn("config parse failed, using defaults", "path", path, "error", err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		logger.Info("config loaded", "path", path)
	}

	// .env next to the config, then in CWD
	for _, ep := range []string{filepath.Join(filepath.Dir(path), ".env"), ".env"} {
		loadEnvFile(ep, logger)
	}

	cfg.applyEnvOverrides(os.Getenv)
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
// Variables already present in the real environment win.
func loadEnvFile(path string, logger *slog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	logger.Info("loading .env", "path", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides overrides config values from the environment.
// Supported: DHT22_DRIVER, DHT22_PIN, DHT22_STATION, DHT22_INTERVAL_S,
// MQTT_ENABLED, MQTT_BROKER, MQTT_PORT, MQTT_CLIENT_ID, SERIAL_ENABLED,
// SERIAL_PORT, SERIAL_BAUD, MODBUS_ENABLED, MODBUS_ENDPOINT, LISTEN_ADDR,
// LOG_LEVEL, APP_ENV
func (c *Config) applyEnvOverrides(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			*dst = v == "1" || v == "true" || v == "yes"
		}
	}

	str("DHT22_DRIVER", &c.Sensor.Driver)
	str("DHT22_PIN", &c.Sensor.Pin)
	str("DHT22_STATION", &c.Sensor.Station)
	num("DHT22_INTERVAL_S", &c.Sensor.IntervalS)

	flag("MQTT_ENABLED", &c.MQTT.Enabled)
	str("MQTT_BROKER", &c.MQTT.Broker)
	num("MQTT_PORT", &c.MQTT.Port)
	str("MQTT_CLIENT_ID", &c.MQTT.ClientID)

	flag("SERIAL_ENABLED", &c.Serial.Enabled)
	str("SERIAL_PORT", &c.Serial.PortPath)
	num("SERIAL_BAUD", &c.Serial.BaudRate)

	flag("MODBUS_ENABLED", &c.Modbus.Enabled)
	str("MODBUS_ENDPOINT", &c.Modbus.Endpoint)

	str("LISTEN_ADDR", &c.Server.ListenAddr)
	str("LOG_LEVEL", &c.Logging.Level)
	str("APP_ENV", &c.Logging.AppEnv)
}

// Validate reports every problem in the config. It does not modify it.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs []error
	switch c.Sensor.Driver {
	case "periph", "rpio", "demo":
	default:
		errs = append(errs, fmt.Errorf("sensor.driver: unknown driver %q", c.Sensor.Driver))
	}
	if c.Sensor.Pin == "" {
		errs = append(errs, errors.New("sensor.pin: required"))
	}
	if c.Sensor.Station == "" || strings.ContainsAny(c.Sensor.Station, "/+#") {
		errs = append(errs, fmt.Errorf("sensor.station: %q is not a valid topic segment", c.Sensor.Station))
	}
	if c.Sensor.IntervalS < minIntervalS {
		errs = append(errs, fmt.Errorf("sensor.interval_s: %d below minimum %d", c.Sensor.IntervalS, minIntervalS))
	}
	if c.Sensor.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("sensor.max_retries: must be >= 1, got %d", c.Sensor.MaxRetries))
	}
	if c.MQTT.Enabled && (c.MQTT.Broker == "" || c.MQTT.Port <= 0 || c.MQTT.Port > 65535) {
		errs = append(errs, fmt.Errorf("mqtt: invalid broker %q port %d", c.MQTT.Broker, c.MQTT.Port))
	}
	if c.Serial.Enabled && c.Serial.PortPath == "" {
		errs = append(errs, errors.New("serial.port_path: required when enabled"))
	}
	if c.Modbus.Enabled && c.Modbus.Endpoint == "" {
		errs = append(errs, errors.New("modbus.endpoint: required when enabled"))
	}
	if c.Modbus.Enabled && int(c.Modbus.Address)+sink.RegisterCount > 0x10000 {
		errs = append(errs, fmt.Errorf("modbus.address: block at %d exceeds register space", c.Modbus.Address))
	}
	return errors.Join(errs...)
}

// DHT returns the acquisition settings.
func (c *Config) DHT() dht.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return dht.Config{
		MaxRetries:      c.Sensor.MaxRetries,
		StartLow:        time.Duration(c.Sensor.StartLowMs) * time.Millisecond,
		RetryDelay:      time.Duration(c.Sensor.RetryDelayMs) * time.Millisecond,
		WatchdogTicks:   c.Sensor.WatchdogTicks,
		PulseAbortTicks: c.Sensor.PulseAbortTicks,
	}
}

// Interval is the acquisition period.
func (c *Config) Interval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.Sensor.IntervalS
	if s < minIntervalS {
		s = minIntervalS
	}
	return time.Duration(s) * time.Second
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// UpdateFromJSON applies a partial JSON config update by deep-merging
// incoming fields into the existing config. Fields not present in the
// incoming JSON are preserved. The merged result must pass Validate
// before it replaces the current values.
//
// Only sensor.station and sensor.intervalS are read on every acquisition.
// The returned names are the changed fields that take effect on the next
// start, since the driver, sensor and sinks are built once.
func (c *Config) UpdateFromJSON(data []byte) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentBytes, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal current config: %w", err)
	}
	var base map[string]interface{}
	if err := json.Unmarshal(currentBytes, &base); err != nil {
		return nil, fmt.Errorf("unmarshal current config: %w", err)
	}

	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return nil, fmt.Errorf("unmarshal patch: %w", err)
	}

	deepMerge(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("marshal merged config: %w", err)
	}
	var next Config
	if err := json.Unmarshal(merged, &next); err != nil {
		return nil, fmt.Errorf("unmarshal merged config: %w", err)
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	restart := restartFields(c, &next)
	c.Sensor, c.MQTT, c.Serial, c.Modbus = next.Sensor, next.MQTT, next.Serial, next.Modbus
	c.Logging, c.Server = next.Logging, next.Server
	return restart, nil
}

// restartFields lists the fields that differ between cur and next and are
// only read at startup.
func restartFields(cur, next *Config) []string {
	var out []string
	add := func(changed bool, name string) {
		if changed {
			out = append(out, name)
		}
	}
	a, b := cur.Sensor, next.Sensor
	add(a.Driver != b.Driver, "sensor.driver")
	add(a.Pin != b.Pin, "sensor.pin")
	add(a.MaxRetries != b.MaxRetries, "sensor.maxRetries")
	add(a.RetryDelayMs != b.RetryDelayMs, "sensor.retryDelayMs")
	add(a.StartLowMs != b.StartLowMs, "sensor.startLowMs")
	add(a.WatchdogTicks != b.WatchdogTicks, "sensor.watchdogTicks")
	add(a.PulseAbortTicks != b.PulseAbortTicks, "sensor.pulseAbortTicks")
	add(cur.MQTT != next.MQTT, "mqtt")
	add(cur.Serial != next.Serial, "serial")
	add(cur.Modbus != next.Modbus, "modbus")
	add(cur.Logging != next.Logging, "logging")
	add(cur.Server != next.Server, "server")
	return out
}

// deepMerge recursively merges src into dst. For nested maps, values are
// merged rather than replaced. For all other types, src overwrites dst.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}
