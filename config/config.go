// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/Noofbiz/studentSeq/records"
	"gopkg.in/yaml.v3"
)

// Config defines the structure for all application configuration.
type Config struct {
	Source   SourceConf  `yaml:"source"`
	Dataset  DatasetConf `yaml:"dataset"`
	Model    ModelConf   `yaml:"model"`
	LogLevel string      `yaml:"log_level"`
}

// SourceConf selects where the raw tables are read from.
type SourceConf struct {
	Driver string `yaml:"driver"` // sqlite, postgres or csv
	Path   string `yaml:"path"`   // sqlite file or csv directory
	DSN    string `yaml:"dsn"`    // postgres connection string
	Schema string `yaml:"schema"` // legacy, current or empty to detect
}

// DatasetConf holds the windowing and split parameters.
type DatasetConf struct {
	SeqLen     int              `yaml:"seq_len"`
	TestRatio  float64          `yaml:"test_ratio"`
	Seed       int64            `yaml:"seed"`
	Target     string           `yaml:"target"` // risk, next_grade or empty for the schema default
	WeekPeriod int              `yaml:"week_period"`
	BatchSize  int              `yaml:"batch_size"`
	Risk       records.RiskRule `yaml:"risk"`
}

// ModelConf holds the sequence model and baseline parameters.
type ModelConf struct {
	EmbedDim  int    `yaml:"embed_dim"`
	HiddenDim int    `yaml:"hidden_dim"`
	MaxSeqLen int    `yaml:"max_seq_len"`
	PredType  string `yaml:"pred_type"` // binary or regression
	Pooling   string `yaml:"pooling"`   // last or mean
	Seed      int64  `yaml:"seed"`
	Neighbors int    `yaml:"neighbors"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Source: SourceConf{
			Driver: "sqlite",
			Path:   "student_data.db",
		},
		Dataset: DatasetConf{
			SeqLen:     8,
			TestRatio:  0.2,
			Seed:       42,
			WeekPeriod: 52,
			BatchSize:  32,
			Risk:       records.DefaultRiskRule(),
		},
		Model: ModelConf{
			EmbedDim:  64,
			HiddenDim: 32,
			MaxSeqLen: 52,
			Pooling:   "last",
			Seed:      42,
			Neighbors: 5,
		},
		LogLevel: "info",
	}
}

// LoadConfig loads configuration from the specified YAML file path and
// environment variables. An empty path keeps the defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	if path := os.Getenv("STUDENTSEQ_DB_PATH"); path != "" {
		cfg.Source.Path = path
	}
	if driver := os.Getenv("STUDENTSEQ_DB_DRIVER"); driver != "" {
		cfg.Source.Driver = driver
	}
	if dsn := os.Getenv("STUDENTSEQ_DB_DSN"); dsn != "" {
		cfg.Source.DSN = dsn
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Source.Driver) {
	case "sqlite", "csv":
		if c.Source.Path == "" {
			return fmt.Errorf("config: source.path is required for driver %q", c.Source.Driver)
		}
	case "postgres":
		if c.Source.DSN == "" {
			return fmt.Errorf("config: source.dsn is required for driver postgres")
		}
	default:
		return fmt.Errorf("config: unknown source.driver %q", c.Source.Driver)
	}
	if _, err := records.ParseSchema(c.Source.Schema); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	d := c.Dataset
	if d.SeqLen < 1 {
		return fmt.Errorf("config: dataset.seq_len must be positive, got %d", d.SeqLen)
	}
	if d.TestRatio < 0 || d.TestRatio > 1 {
		return fmt.Errorf("config: dataset.test_ratio must be in [0, 1], got %g", d.TestRatio)
	}
	if d.WeekPeriod < 0 {
		return fmt.Errorf("config: dataset.week_period must not be negative, got %d", d.WeekPeriod)
	}
	if d.BatchSize < 1 {
		return fmt.Errorf("config: dataset.batch_size must be positive, got %d", d.BatchSize)
	}
	switch d.Target {
	case "", "risk", "next_grade":
	default:
		return fmt.Errorf("config: unknown dataset.target %q", d.Target)
	}
	if err := d.Risk.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	m := c.Model
	if m.EmbedDim < 1 || m.HiddenDim < 1 {
		return fmt.Errorf("config: model dimensions must be positive")
	}
	if m.MaxSeqLen < d.SeqLen {
		return fmt.Errorf("config: model.max_seq_len %d shorter than dataset.seq_len %d", m.MaxSeqLen, d.SeqLen)
	}
	switch m.PredType {
	case "", "binary", "regression":
	default:
		return fmt.Errorf("config: unknown model.pred_type %q", m.PredType)
	}
	switch m.Pooling {
	case "", "last", "mean":
	default:
		return fmt.Errorf("config: unknown model.pooling %q", m.Pooling)
	}
	if m.Neighbors < 1 {
		return fmt.Errorf("config: model.neighbors must be positive, got %d", m.Neighbors)
	}
	return nil
}
