// Package config loads the YAML run configuration of the convkit CLI.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	Data      DataConfig      `yaml:"data"`
	Model     ModelConfig     `yaml:"model"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Schedule  ScheduleConfig  `yaml:"schedule"`

	Epochs    int    `yaml:"epochs"`
	BatchSize int    `yaml:"batch_size"`
	LogEvery  int    `yaml:"log_every"`
	Seed      int64  `yaml:"seed"`
	Save      bool   `yaml:"save"`
	Metrics   string `yaml:"metrics"` // JSON-lines output path; empty disables
}

// DataConfig selects the dataset.
type DataConfig struct {
	Dir         string  `yaml:"dir"`          // MNIST IDX directory
	Synthetic   bool    `yaml:"synthetic"`    // ignore Dir and generate data
	Name        string  `yaml:"name"`         // dataset name used in checkpoint file names
	MaxSamples  int     `yaml:"max_samples"`  // 0 = all
	ValFraction float64 `yaml:"val_fraction"` // held out of the training split
}

// ModelConfig sizes the classifier.
type ModelConfig struct {
	Type     string `yaml:"type"`     // recorded in checkpoint names
	Channels int    `yaml:"channels"` // conv block output channels
	Kernel   int    `yaml:"kernel"`
	Classes  int    `yaml:"classes"`
}

// OptimizerConfig selects and tunes the optimizer.
type OptimizerConfig struct {
	Name        string  `yaml:"name"` // "sgd" or "adam"
	LR          float64 `yaml:"lr"`
	Momentum    float64 `yaml:"momentum"`
	WeightDecay float64 `yaml:"weight_decay"`
}

// ScheduleConfig tunes cosine annealing with warm restarts.
type ScheduleConfig struct {
	T0     int     `yaml:"t0"`
	TMult  int     `yaml:"t_mult"`
	EtaMin float64 `yaml:"eta_min"`
}

// Overrides captures CLI supplied values. Zero values leave the config alone.
type Overrides struct {
	DataDir   string
	Synthetic bool
	Epochs    int
	BatchSize int
	LogEvery  int
	LR        float64
	Seed      int64
	Save      bool
	Metrics   string
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Data: DataConfig{
			Name:        "mnist",
			ValFraction: 0.1,
		},
		Model: ModelConfig{
			Type:     "convbnrelu",
			Channels: 8,
			Kernel:   3,
			Classes:  10,
		},
		Optimizer: OptimizerConfig{
			Name:     "sgd",
			LR:       0.05,
			Momentum: 0.9,
		},
		Schedule: ScheduleConfig{
			T0:    1,
			TMult: 1,
		},
		Epochs:    2,
		BatchSize: 64,
		LogEvery:  10,
		Seed:      1,
	}
}

// Load reads a YAML file on top of Defaults and validates the result.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	//nolint:gosec // G304: config path is a CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of Defaults without validating.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.WithStack(err)
	}
	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DataDir != "" {
		c.Data.Dir = o.DataDir
	}
	if o.Synthetic {
		c.Data.Synthetic = true
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.LR > 0 {
		c.Optimizer.LR = o.LR
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.Save {
		c.Save = true
	}
	if o.Metrics != "" {
		c.Metrics = o.Metrics
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if !c.Data.Synthetic && c.Data.Dir == "" {
		return errors.New("data.dir must be set unless data.synthetic is true")
	}
	if c.Data.ValFraction <= 0 || c.Data.ValFraction >= 1 {
		return errors.Errorf("data.val_fraction must be in (0, 1) (got %v)", c.Data.ValFraction)
	}
	if c.Data.MaxSamples < 0 {
		return errors.Errorf("data.max_samples must be >= 0 (got %d)", c.Data.MaxSamples)
	}
	if c.Model.Channels <= 0 || c.Model.Kernel <= 0 {
		return errors.Errorf("model.channels and model.kernel must be > 0 (got %d, %d)", c.Model.Channels, c.Model.Kernel)
	}
	if c.Model.Classes < 2 {
		return errors.Errorf("model.classes must be >= 2 (got %d)", c.Model.Classes)
	}
	switch c.Optimizer.Name {
	case "sgd", "adam":
	default:
		return errors.Errorf("optimizer.name must be sgd or adam (got %q)", c.Optimizer.Name)
	}
	if c.Optimizer.LR <= 0 {
		return errors.Errorf("optimizer.lr must be > 0 (got %v)", c.Optimizer.LR)
	}
	if c.Schedule.T0 <= 0 || c.Schedule.TMult < 1 {
		return errors.Errorf("schedule.t0 must be > 0 and schedule.t_mult >= 1 (got %d, %d)", c.Schedule.T0, c.Schedule.TMult)
	}
	if c.Epochs <= 0 {
		return errors.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 10
	}
	return nil
}
