// Package config loads transcriber settings from a .env file, an optional
// YAML file and environment variables, in increasing order of precedence.
// Command-line flags are applied on top by each binary.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fpang/gemini-transcriber/internal/assets"
	"github.com/fpang/gemini-transcriber/internal/transcribe"
)

// Environment variables read by Load.
const (
	EnvModels         = "TRANSCRIBE_MODELS"
	EnvPreset         = "TRANSCRIBE_PRESET"
	EnvPollInterval   = "TRANSCRIBE_POLL_INTERVAL"
	EnvMaxWait        = "TRANSCRIBE_MAX_WAIT"
	EnvCandidatePause = "TRANSCRIBE_CANDIDATE_PAUSE"
	EnvDeleteRemote   = "TRANSCRIBE_DELETE_REMOTE"
	EnvRateLimit      = "TRANSCRIBE_RATE_LIMIT"
	EnvQuotaCooldown  = "TRANSCRIBE_QUOTA_COOLDOWN"
	EnvPort           = "PORT"
	EnvBucket         = "TRANSCRIBE_BUCKET"
	EnvTable          = "TRANSCRIBE_TABLE"
)

// Config holds every tunable of a transcription deployment.
type Config struct {
	Preset string `yaml:"preset"`
	// Models overrides the preset's candidate list when non-empty.
	Models []string `yaml:"models"`
	// Instruction overrides the preset's prompt when non-empty.
	Instruction string `yaml:"instruction"`

	PollInterval   time.Duration `yaml:"poll_interval"`
	MaxWait        time.Duration `yaml:"max_wait"`
	CandidatePause time.Duration `yaml:"candidate_pause"`
	DeleteRemote   bool          `yaml:"delete_remote"`

	RateLimit     float64       `yaml:"rate_limit"` // calls per second per credential, 0 = unlimited
	QuotaCooldown time.Duration `yaml:"quota_cooldown"`

	Port   int    `yaml:"port"`
	Bucket string `yaml:"bucket"` // S3 bucket for transcript copies (optional)
	Table  string `yaml:"table"`  // DynamoDB run history table (optional)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Preset:         assets.DefaultPreset,
		PollInterval:   transcribe.DefaultPollInterval,
		MaxWait:        transcribe.DefaultMaxWait,
		CandidatePause: transcribe.DefaultCandidatePause,
		RateLimit:      transcribe.DefaultRateLimit,
		QuotaCooldown:  transcribe.DefaultQuotaCooldown,
		Port:           3000,
	}
}

// Load builds the configuration. A missing .env file is ignored; path may
// be empty to skip the YAML file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		defer f.Close()
		if err := cfg.decode(f); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// decode merges YAML from r into c. Unknown keys are rejected.
func (c *Config) decode(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup(EnvPreset); ok && v != "" {
		c.Preset = v
	}
	if v, ok := lookup(EnvModels); ok && v != "" {
		c.Models = SplitList(v)
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{EnvPollInterval, &c.PollInterval},
		{EnvMaxWait, &c.MaxWait},
		{EnvCandidatePause, &c.CandidatePause},
		{EnvQuotaCooldown, &c.QuotaCooldown},
	}
	for _, d := range durations {
		v, ok := lookup(d.name)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, v, err)
		}
		*d.dst = parsed
	}

	if v, ok := lookup(EnvDeleteRemote); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvDeleteRemote, v, err)
		}
		c.DeleteRemote = b
	}
	if v, ok := lookup(EnvRateLimit); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRateLimit, v, err)
		}
		c.RateLimit = f
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Port = p
	}
	if v, ok := lookup(EnvBucket); ok {
		c.Bucket = v
	}
	if v, ok := lookup(EnvTable); ok {
		c.Table = v
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if _, err := assets.LookupPreset(c.Preset); err != nil {
		return err
	}
	for _, m := range c.Models {
		if strings.TrimSpace(m) == "" {
			return errors.New("models must not contain empty names")
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.MaxWait < c.PollInterval {
		return fmt.Errorf("max_wait (%s) must be at least poll_interval (%s)", c.MaxWait, c.PollInterval)
	}
	if c.CandidatePause < 0 {
		return fmt.Errorf("candidate_pause must not be negative, got %s", c.CandidatePause)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %g", c.RateLimit)
	}
	if c.QuotaCooldown < 0 {
		return fmt.Errorf("quota_cooldown must not be negative, got %s", c.QuotaCooldown)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Resolve returns the effective preset after applying the Models and
// Instruction overrides.
func (c *Config) Resolve() (assets.Preset, error) {
	p, err := assets.LookupPreset(c.Preset)
	if err != nil {
		return assets.Preset{}, err
	}
	if len(c.Models) > 0 {
		p.Candidates = append([]string(nil), c.Models...)
	}
	if c.Instruction != "" {
		p.Instruction = c.Instruction
	}
	return p, nil
}

// PipelineOptions converts the configuration into pipeline options. gate is
// the shared gate for the credential the pipeline will use.
func (c *Config) PipelineOptions(gate *transcribe.Gate) ([]transcribe.Option, error) {
	p, err := c.Resolve()
	if err != nil {
		return nil, err
	}
	return []transcribe.Option{
		transcribe.WithInstruction(p.Instruction),
		transcribe.WithCandidates(p.Candidates...),
		transcribe.WithPollInterval(c.PollInterval),
		transcribe.WithMaxWait(c.MaxWait),
		transcribe.WithCandidatePause(c.CandidatePause),
		transcribe.WithDeleteRemote(c.DeleteRemote),
		transcribe.WithGate(gate),
	}, nil
}

// SplitList parses a comma-separated model list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
