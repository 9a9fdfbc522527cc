// Package config loads the optional YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults used when neither the file nor a flag sets a value.
const (
	DefaultDatabase     = "contract.db"
	DefaultOwner        = "alice"
	DefaultHistoryLimit = 5
)

// Config is the contents of a configuration file.
type Config struct {
	// Database is the SQLite database path.
	Database string `yaml:"database" validate:"required"`

	// Owner is the account owner used when --owner is not given.
	Owner string `yaml:"owner" validate:"required,max=256"`

	// Manifest is an optional migration manifest (YAML or CUE). Empty means
	// the built-in manifest.
	Manifest string `yaml:"manifest,omitempty"`

	// HistoryLimit is how many transactions `history` shows by default.
	HistoryLimit int `yaml:"history_limit" validate:"min=1,max=1000"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:     DefaultDatabase,
		Owner:        DefaultOwner,
		HistoryLimit: DefaultHistoryLimit,
	}
}

var validate = validator.New()

// Load reads a configuration file. Fields missing from the file keep their
// defaults; unknown fields are rejected.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates configuration YAML from r.
func Parse(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
