// Package config loads the runtime settings of the sound interpreter.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/milk9111/dosound/sound"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid")

const (
	PlayerEbiten = "ebiten"
	PlayerNull   = "null"

	DefaultMaxTicks = 60 * 60
)

type Config struct {
	Variant      string `yaml:"variant"`
	DigitalAudio bool   `yaml:"digital_audio"`
	TickRate     int    `yaml:"tick_rate"`
	SampleRate   int    `yaml:"sample_rate"`
	Polyphony    int    `yaml:"polyphony"`
	Player       string `yaml:"player"`

	// Bank is a bank directory on disk; empty selects the bundled bank.
	Bank string `yaml:"bank"`
	// Script is a tengo script on disk; empty selects the bundled demo.
	Script   string `yaml:"script"`
	MaxTicks int    `yaml:"max_ticks"`
	Watch    bool   `yaml:"watch"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	c := Config{}
	c.ApplyDefaults()
	return c
}

// Load reads a YAML config file, fills unset fields with defaults and
// validates the result.
func Load(path string) (Config, error) {
	c, err := loadSpec[Config](path)
	if err != nil {
		return Config{}, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func loadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := os.ReadFile(filename)
	if err != nil {
		return zero, fmt.Errorf("config: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("config: unmarshal %s: %w", filename, err)
	}
	return spec, nil
}

func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Variant) == "" {
		c.Variant = sound.SCI1Late.String()
	}
	if c.TickRate <= 0 {
		c.TickRate = sound.DefaultTickRateHz
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
	if c.Polyphony <= 0 {
		c.Polyphony = 16
	}
	if strings.TrimSpace(c.Player) == "" {
		c.Player = PlayerNull
	}
	if c.MaxTicks <= 0 {
		c.MaxTicks = DefaultMaxTicks
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
}

func (c Config) Validate() error {
	if _, err := sound.ParseVariant(c.Variant); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch strings.ToLower(c.Player) {
	case PlayerEbiten, PlayerNull:
	default:
		return fmt.Errorf("%w: player %q", ErrInvalid, c.Player)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Watch && c.Bank == "" {
		return fmt.Errorf("%w: watch needs a bank directory", ErrInvalid)
	}
	return nil
}

// SoundVariant returns the parsed protocol variant.
func (c Config) SoundVariant() sound.Variant {
	v, _ := sound.ParseVariant(c.Variant)
	return v
}

func (c Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, s)
	}
	return l, nil
}
