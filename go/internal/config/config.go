package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when TABLET_CONFIG is unset. It is optional.
const DefaultPath = "tablet.yaml"

// Config is the tablet process configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	GameAPI GameAPIConfig `yaml:"game_api"`
	Session SessionConfig `yaml:"session"`
	Serial  SerialConfig  `yaml:"serial"`
	NATS    NATSConfig    `yaml:"nats"`
	Log     LogConfig     `yaml:"log"`
	Debug   bool          `yaml:"debug"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GameAPIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	PopupDuration    time.Duration `yaml:"popup_duration"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"` // 0 keeps sessions until removed
	InteractionItems []string      `yaml:"interaction_items"`
}

type SerialConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Port        string `yaml:"port"`
	BaudRate    int    `yaml:"baud_rate"`
	AutoConnect bool   `yaml:"auto_connect"`
}

// NATSConfig enables event publication when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8090",
			ShutdownTimeout: 10 * time.Second,
		},
		GameAPI: GameAPIConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: 10 * time.Second,
		},
		Session: SessionConfig{
			PollInterval:     time.Second,
			PopupDuration:    5 * time.Second,
			IdleTimeout:      5 * time.Minute,
			InteractionItems: []string{"handcuffs"},
		},
		Serial: SerialConfig{
			BaudRate: 9600,
		},
		NATS: NATSConfig{
			SubjectPrefix: "tablet.events",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is only an error when it was asked for explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = getEnv("TABLET_CONFIG", DefaultPath)
		explicit = os.Getenv("TABLET_CONFIG") != ""
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("TABLET_PORT", c.Server.Port)
	c.GameAPI.BaseURL = getEnv("GAME_API_URL", c.GameAPI.BaseURL)
	c.Serial.Port = getEnv("SERIAL_PORT", c.Serial.Port)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	if v := os.Getenv("INTERACTION_ITEMS"); v != "" {
		c.Session.InteractionItems = splitList(v)
	}

	var err error
	if c.GameAPI.Timeout, err = getEnvAsDuration("GAME_API_TIMEOUT", c.GameAPI.Timeout); err != nil {
		return err
	}
	if c.Session.PollInterval, err = getEnvAsDuration("POLL_INTERVAL", c.Session.PollInterval); err != nil {
		return err
	}
	if c.Session.PopupDuration, err = getEnvAsDuration("POPUP_DURATION", c.Session.PopupDuration); err != nil {
		return err
	}
	if c.Session.IdleTimeout, err = getEnvAsDuration("SESSION_IDLE_TIMEOUT", c.Session.IdleTimeout); err != nil {
		return err
	}
	if c.Serial.BaudRate, err = getEnvAsInt("SERIAL_BAUD_RATE", c.Serial.BaudRate); err != nil {
		return err
	}
	if c.Debug, err = getEnvAsBool("TABLET_DEBUG", c.Debug); err != nil {
		return err
	}
	if c.Serial.Enabled, err = getEnvAsBool("SERIAL_ENABLED", c.Serial.Enabled); err != nil {
		return err
	}
	if c.Serial.AutoConnect, err = getEnvAsBool("SERIAL_AUTO_CONNECT", c.Serial.AutoConnect); err != nil {
		return err
	}
	return nil
}

// Validate rejects values the process cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if !c.Debug && c.GameAPI.BaseURL == "" {
		return fmt.Errorf("game_api.base_url is required outside debug mode")
	}
	if c.Session.PollInterval <= 0 {
		return fmt.Errorf("session.poll_interval must be positive, got %s", c.Session.PollInterval)
	}
	if c.Session.PopupDuration <= 0 {
		return fmt.Errorf("session.popup_duration must be positive, got %s", c.Session.PopupDuration)
	}
	if c.Session.IdleTimeout < 0 {
		return fmt.Errorf("session.idle_timeout must not be negative, got %s", c.Session.IdleTimeout)
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive, got %d", c.Serial.BaudRate)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
