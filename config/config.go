// Package config loads perfexport settings from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/weiihann/perfexport/profile"
)

const (
	DefaultServiceKind = "triton"
	DefaultVersion     = "dev"

	DefaultInfluxHost      = "http://localhost:8181"
	DefaultInfluxDatabase  = "perfexport"
	DefaultInfluxBatchSize = 5000

	DefaultSynthRequests     = 100
	DefaultSynthMaxResponses = 8
	DefaultSynthPromptWords  = 32
	DefaultSynthWindows      = 4
	DefaultSynthArrival      = "poisson"

	envPrefix = "PERFEXPORT_"
)

// Config holds all settings for a perfexport invocation.
type Config struct {
	Version         string `yaml:"version"`
	ServiceKind     string `yaml:"service_kind"`
	Endpoint        string `yaml:"endpoint"`
	Output          string `yaml:"output"`
	Indent          bool   `yaml:"indent"`
	MetricsTextfile string `yaml:"metrics_textfile"`

	Influx InfluxConfig `yaml:"influx"`
	Synth  SynthConfig  `yaml:"synth"`
}

// InfluxConfig selects the InfluxDB 3 database samples are written to.
type InfluxConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Token     string `yaml:"token"`
	Database  string `yaml:"database"`
	BatchSize int    `yaml:"batch_size"`
}

// SynthConfig holds defaults for synthetic snapshot generation.
type SynthConfig struct {
	Concurrency  []uint64  `yaml:"concurrency"`
	RequestRates []float64 `yaml:"request_rates"`
	Requests     int       `yaml:"requests"`
	MaxResponses int       `yaml:"max_responses"`
	PromptWords  int       `yaml:"prompt_words"`
	Windows      int       `yaml:"windows"`
	Sequenced    bool      `yaml:"sequenced"`
	Arrival      string    `yaml:"arrival"`
	Seed         int64     `yaml:"seed"`
}

// Load reads the YAML file at path, if any, applies PERFEXPORT_*
// environment overrides and fills defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse YAML config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if _, err := profile.ParseServiceKind(c.ServiceKind); err != nil {
		return err
	}

	if c.Influx.Enabled && c.Influx.Host == "" {
		return fmt.Errorf("influx enabled without host")
	}

	if c.Influx.BatchSize < 0 {
		return fmt.Errorf("influx batch_size must be positive, got %d", c.Influx.BatchSize)
	}

	return c.Synth.Validate()
}

// Validate rejects negative counts.
func (s SynthConfig) Validate() error {
	counts := []struct {
		name  string
		value int
	}{
		{"requests", s.Requests},
		{"max_responses", s.MaxResponses},
		{"prompt_words", s.PromptWords},
		{"windows", s.Windows},
	}

	for _, c := range counts {
		if c.value < 0 {
			return fmt.Errorf("synth %s must not be negative, got %d", c.name, c.value)
		}
	}

	return nil
}

// Kind returns the parsed service kind.
func (c *Config) Kind() profile.ServiceKind {
	kind, _ := profile.ParseServiceKind(c.ServiceKind)

	return kind
}

func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.ServiceKind == "" {
		cfg.ServiceKind = DefaultServiceKind
	}

	if cfg.Influx.Host == "" {
		cfg.Influx.Host = DefaultInfluxHost
	}
	if cfg.Influx.Database == "" {
		cfg.Influx.Database = DefaultInfluxDatabase
	}
	if cfg.Influx.BatchSize == 0 {
		cfg.Influx.BatchSize = DefaultInfluxBatchSize
	}

	s := &cfg.Synth
	if len(s.Concurrency) == 0 && len(s.RequestRates) == 0 {
		s.Concurrency = []uint64{1, 2, 4}
	}
	if s.Requests == 0 {
		s.Requests = DefaultSynthRequests
	}
	if s.MaxResponses == 0 {
		s.MaxResponses = DefaultSynthMaxResponses
	}
	if s.PromptWords == 0 {
		s.PromptWords = DefaultSynthPromptWords
	}
	if s.Windows == 0 {
		s.Windows = DefaultSynthWindows
	}
	if s.Arrival == "" {
		s.Arrival = DefaultSynthArrival
	}
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Version, "VERSION")
	setString(&cfg.ServiceKind, "SERVICE_KIND")
	setString(&cfg.Endpoint, "ENDPOINT")
	setString(&cfg.Output, "OUTPUT")
	setString(&cfg.MetricsTextfile, "METRICS_TEXTFILE")
	setString(&cfg.Influx.Host, "INFLUX_HOST")
	setString(&cfg.Influx.Token, "INFLUX_TOKEN")
	setString(&cfg.Influx.Database, "INFLUX_DATABASE")

	if err := setBool(&cfg.Indent, "INDENT"); err != nil {
		return err
	}
	if err := setBool(&cfg.Influx.Enabled, "INFLUX_ENABLED"); err != nil {
		return err
	}

	if v, ok := lookup("INFLUX_BATCH_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sINFLUX_BATCH_SIZE: %w", envPrefix, err)
		}
		cfg.Influx.BatchSize = n
	}

	if v, ok := lookup("SYNTH_SEED"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSYNTH_SEED: %w", envPrefix, err)
		}
		cfg.Synth.Seed = n
	}

	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return "", false
	}

	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = b

	return nil
}
