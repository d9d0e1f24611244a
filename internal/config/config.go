package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDTracker string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string

	// Topics
	TopicMinute     string
	TopicSessions   string
	TopicSteps      string
	TelemetryPrefix string

	// Hardware
	AccelSPIDevice string
	GPSSerialPort  string
	GPSBaudRate    int

	// Minute record store
	StorePath       string
	StoreMaxRecords int

	// Wearer profile
	ProfileWeightKG uint16
	ProfileHeightCM uint16
	ProfileAgeYears uint8
	ProfileMale     bool

	// Static heart rate source, beats per minute
	HeartRateBPM uint8

	// Local time, minutes east of UTC; must be a multiple of 15
	LocalUTCOffsetMinutes int

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // console or json
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		MQTTClientIDTracker:   "tracker-daemon",
		MQTTClientIDConsole:   "tracker-console",
		MQTTClientIDWeb:       "tracker-web",
		MQTTClientIDDisplay:   "tracker-display",
		TopicMinute:           "tracker/minute",
		TopicSessions:         "tracker/sessions",
		TopicSteps:            "tracker/steps",
		TelemetryPrefix:       "tracker/telemetry",
		GPSBaudRate:           9600,
		StoreMaxRecords:       4096,
		HeartRateBPM:          60,
		WebServerPort:         8080,
		DisplayUpdateInterval: 1000,
		LogLevel:              "info",
		LogFormat:             "console",
	}
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_TRACKER":
		c.MQTTClientIDTracker = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_MINUTE":
		c.TopicMinute = value
	case "TOPIC_SESSIONS":
		c.TopicSessions = value
	case "TOPIC_STEPS":
		c.TopicSteps = value
	case "TELEMETRY_PREFIX":
		c.TelemetryPrefix = value

	// Hardware
	case "ACCEL_SPI_DEVICE":
		c.AccelSPIDevice = value
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		baud, err := strconv.Atoi(value)
		if err != nil || baud <= 0 {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q", value)
		}
		c.GPSBaudRate = baud

	// Store
	case "STORE_PATH":
		c.StorePath = value
	case "STORE_MAX_RECORDS":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid STORE_MAX_RECORDS %q", value)
		}
		c.StoreMaxRecords = n

	// Profile
	case "PROFILE_WEIGHT_KG":
		v, err := strconv.ParseUint(value, 10, 16)
		if err != nil || v == 0 || v > 400 {
			return fmt.Errorf("invalid PROFILE_WEIGHT_KG %q", value)
		}
		c.ProfileWeightKG = uint16(v)
	case "PROFILE_HEIGHT_CM":
		v, err := strconv.ParseUint(value, 10, 16)
		if err != nil || v == 0 || v > 300 {
			return fmt.Errorf("invalid PROFILE_HEIGHT_CM %q", value)
		}
		c.ProfileHeightCM = uint16(v)
	case "PROFILE_AGE_YEARS":
		v, err := strconv.ParseUint(value, 10, 8)
		if err != nil || v == 0 {
			return fmt.Errorf("invalid PROFILE_AGE_YEARS %q", value)
		}
		c.ProfileAgeYears = uint8(v)
	case "PROFILE_MALE":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid PROFILE_MALE %q", value)
		}
		c.ProfileMale = v

	case "HEART_RATE_BPM":
		v, err := strconv.ParseUint(value, 10, 8)
		if err != nil || v == 0 {
			return fmt.Errorf("invalid HEART_RATE_BPM %q", value)
		}
		c.HeartRateBPM = uint8(v)

	case "LOCAL_UTC_OFFSET_MINUTES":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LOCAL_UTC_OFFSET_MINUTES %q", value)
		}
		if v%15 != 0 || v < -12*60 || v > 14*60 {
			return fmt.Errorf("LOCAL_UTC_OFFSET_MINUTES must be a multiple of 15 in [-720, 840], got %d", v)
		}
		c.LocalUTCOffsetMinutes = v

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q", value)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil || interval <= 0 {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q", value)
		}
		c.DisplayUpdateInterval = interval

	// Logging
	case "LOG_LEVEL":
		switch value {
		case "debug", "info", "warn", "error":
			c.LogLevel = value
		default:
			return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", value)
		}
	case "LOG_FORMAT":
		switch value {
		case "console", "json":
			c.LogFormat = value
		default:
			return fmt.Errorf("LOG_FORMAT must be console or json, got %q", value)
		}

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.StorePath == "" {
		return fmt.Errorf("STORE_PATH is required")
	}
	return nil
}

// LocalOffset15Min is the local offset in quarter-hour units, the form
// the minute record header carries.
func (c *Config) LocalOffset15Min() int8 {
	return int8(c.LocalUTCOffsetMinutes / 15)
}

// InitGlobal initializes the global configuration from file, once.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance. InitGlobal must be
// called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
