// Package config loads the pipeline configuration file and environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/animus-labs/animus-audit/internal/compliance"
	"github.com/animus-labs/animus-audit/internal/model"
	"github.com/animus-labs/animus-audit/internal/platform/env"
	"github.com/animus-labs/animus-audit/internal/platform/objectstore"
	"github.com/animus-labs/animus-audit/internal/platform/postgres"
)

type Config struct {
	ArtifactsDir  string                      `yaml:"artifacts_dir"`
	DatasetPath   string                      `yaml:"dataset_path"`
	TargetColumn  string                      `yaml:"target_column"`
	PositiveLabel string                      `yaml:"positive_label"`
	TestFraction  float64                     `yaml:"test_fraction"`
	Seed          int64                       `yaml:"seed"`
	Model         ModelConfig                 `yaml:"model"`
	Rules         []compliance.ExprDefinition `yaml:"rules"`

	ObjectStore objectstore.Config `yaml:"-"`
	Database    postgres.Config    `yaml:"-"`
}

type ModelConfig struct {
	MaxIter      int     `yaml:"max_iter"`
	LearningRate float64 `yaml:"learning_rate"`
	L2           float64 `yaml:"l2"`
	Tolerance    float64 `yaml:"tol"`
}

func Default() Config {
	p := model.DefaultParams()
	return Config{
		ArtifactsDir:  "artifacts",
		DatasetPath:   "data/bank.csv",
		TargetColumn:  "deposit",
		PositiveLabel: "yes",
		TestFraction:  0.2,
		Seed:          42,
		Model: ModelConfig{
			MaxIter:      p.MaxIter,
			LearningRate: p.LearningRate,
			L2:           p.L2,
			Tolerance:    p.Tolerance,
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies AUDIT_*
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config file %s not found", path)
			}
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("object store: %w", err)
	}
	cfg.ObjectStore = storeCfg
	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("database: %w", err)
	}
	cfg.Database = dbCfg

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, rejecting unknown keys.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.ArtifactsDir = env.String("AUDIT_ARTIFACTS_DIR", c.ArtifactsDir)
	c.DatasetPath = env.String("AUDIT_DATASET_PATH", c.DatasetPath)
	c.TargetColumn = env.String("AUDIT_TARGET_COLUMN", c.TargetColumn)
	c.PositiveLabel = env.String("AUDIT_POSITIVE_LABEL", c.PositiveLabel)

	var err error
	if c.TestFraction, err = env.Float("AUDIT_TEST_FRACTION", c.TestFraction); err != nil {
		return err
	}
	seed, err := env.Int("AUDIT_SEED", int(c.Seed))
	if err != nil {
		return err
	}
	c.Seed = int64(seed)
	if c.Model.MaxIter, err = env.Int("AUDIT_MODEL_MAX_ITER", c.Model.MaxIter); err != nil {
		return err
	}
	if c.Model.LearningRate, err = env.Float("AUDIT_MODEL_LEARNING_RATE", c.Model.LearningRate); err != nil {
		return err
	}
	if c.Model.L2, err = env.Float("AUDIT_MODEL_L2", c.Model.L2); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ArtifactsDir) == "" {
		return errors.New("artifacts_dir is required")
	}
	if strings.TrimSpace(c.TargetColumn) == "" {
		return errors.New("target_column is required")
	}
	if strings.TrimSpace(c.PositiveLabel) == "" {
		return errors.New("positive_label is required")
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return fmt.Errorf("test_fraction must be in (0,1), got %v", c.TestFraction)
	}
	if err := c.ModelParams().Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if _, err := c.ComplianceRules(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	if c.ObjectStore.Enabled() {
		if err := c.ObjectStore.Validate(); err != nil {
			return fmt.Errorf("object store: %w", err)
		}
	}
	if c.Database.Enabled() {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	return nil
}

func (c Config) ModelParams() model.Params {
	return model.Params{
		MaxIter:      c.Model.MaxIter,
		LearningRate: c.Model.LearningRate,
		L2:           c.Model.L2,
		Tolerance:    c.Model.Tolerance,
	}
}

// ComplianceRules returns the built-in checklist followed by the configured
// expression rules.
func (c Config) ComplianceRules() ([]compliance.Rule, error) {
	extra := make([]compliance.Rule, 0, len(c.Rules))
	for _, def := range c.Rules {
		r, err := compliance.NewExprRule(def)
		if err != nil {
			return nil, err
		}
		if err := r.CompileErr(); err != nil {
			return nil, fmt.Errorf("rule %s: %w", def.ID, err)
		}
		extra = append(extra, r)
	}
	return compliance.WithDefaults(extra...)
}
