// Package config loads axiom's YAML configuration.
//
// A file is first validated against an embedded CUE schema, then decoded,
// then completed with defaults. Relative paths in a file are resolved
// against the file's directory. AXIOM_SECRET_KEY overrides audit.secret_key.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/axiom/internal/audit"
	"github.com/roach88/axiom/internal/inference"
	"github.com/roach88/axiom/internal/pipeline"
	"github.com/roach88/axiom/internal/verify"
)

// SecretKeyEnv overrides audit.secret_key when set.
const SecretKeyEnv = "AXIOM_SECRET_KEY"

// DefaultStorePath is the run database used when none is configured.
const DefaultStorePath = "axiom.db"

// Config is the full axiom configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Audit    AuditConfig    `yaml:"audit"`
	Verifier VerifierConfig `yaml:"verifier"`
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type EngineConfig struct {
	HiddenSize int `yaml:"hidden_size"`
}

type PipelineConfig struct {
	DefaultMode string `yaml:"default_mode"`
}

type AuditConfig struct {
	Dir       string       `yaml:"dir"`
	Label     string       `yaml:"label"`
	SecretKey string       `yaml:"secret_key"`
	Mirror    MirrorConfig `yaml:"mirror"`
}

type MirrorConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig enables the audit mirror when Address is non-empty.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	List     string `yaml:"list"`
}

type VerifierConfig struct {
	Tool       string   `yaml:"tool"`
	SpecPath   string   `yaml:"spec_path"`
	ConfigPath string   `yaml:"config_path"`
	Timeout    Duration `yaml:"timeout"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults("")
	cfg.applyEnv()
	return cfg
}

// Load reads, validates and completes the configuration at path.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.applyDefaults(filepath.Dir(path))
	cfg.applyEnv()
	return cfg, nil
}

// Parse validates and decodes content without applying defaults.
func Parse(content []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &cfg, nil
}

// applyDefaults fills unset fields. Relative paths are joined to baseDir.
func (c *Config) applyDefaults(baseDir string) {
	if c.Engine.HiddenSize == 0 {
		c.Engine.HiddenSize = inference.DefaultHiddenSize
	}
	if c.Pipeline.DefaultMode == "" {
		c.Pipeline.DefaultMode = string(pipeline.ModeFast)
	}

	if c.Audit.Dir == "" {
		c.Audit.Dir = audit.DefaultDir
	}
	c.Audit.Dir = resolve(baseDir, c.Audit.Dir)
	if c.Audit.Label == "" {
		c.Audit.Label = pipeline.DefaultLabel
	}
	if c.Audit.Mirror.Redis.List == "" {
		c.Audit.Mirror.Redis.List = audit.DefaultMirrorList
	}

	if c.Verifier.Tool == "" {
		c.Verifier.Tool = verify.DefaultTool
	}
	if c.Verifier.SpecPath == "" {
		c.Verifier.SpecPath = verify.DefaultSpecPath
	}
	c.Verifier.SpecPath = resolve(baseDir, c.Verifier.SpecPath)
	if c.Verifier.ConfigPath == "" {
		c.Verifier.ConfigPath = verify.DefaultConfigPath
	}
	c.Verifier.ConfigPath = resolve(baseDir, c.Verifier.ConfigPath)
	if c.Verifier.Timeout <= 0 {
		c.Verifier.Timeout = Duration(verify.DefaultTimeout)
	}

	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}
	c.Store.Path = resolve(baseDir, c.Store.Path)

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) applyEnv() {
	if key := os.Getenv(SecretKeyEnv); key != "" {
		c.Audit.SecretKey = key
	}
}

func resolve(baseDir, path string) string {
	if baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// SecretKey returns the configured audit key. The boolean is false when no
// key is configured and the caller must fall back to an ephemeral one.
func (c *Config) SecretKey() (audit.Key, bool, error) {
	if c.Audit.SecretKey == "" {
		return nil, false, nil
	}
	key, err := audit.ParseKey(c.Audit.SecretKey)
	if err != nil {
		return nil, false, err
	}
	return key, true, nil
}
