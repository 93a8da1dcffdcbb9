// Command convkit trains a small convolutional classifier on MNIST or on
// generated data and optionally saves a checkpoint.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/config"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (built-in defaults when empty)")
	dataDir := flag.String("data", "", "Override MNIST IDX directory")
	synthetic := flag.Bool("synthetic", false, "Use generated data instead of MNIST")
	epochs := flag.Int("epochs", 0, "Number of training epochs")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	logEvery := flag.Int("log-every", 0, "Check accuracy every N batches")
	lr := flag.Float64("lr", 0, "Initial learning rate")
	seed := flag.Int64("seed", 0, "PRNG seed")
	save := flag.Bool("save", false, "Save a checkpoint under saved_models/")
	metricsPath := flag.String("metrics", "", "Write JSON-lines metrics to this file")

	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		DataDir:   *dataDir,
		Synthetic: *synthetic,
		Epochs:    *epochs,
		BatchSize: *batchSize,
		LogEvery:  *logEvery,
		LR:        *lr,
		Seed:      *seed,
		Save:      *save,
		Metrics:   *metricsPath,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := run(cfg, os.Stdout); err != nil {
		log.Fatalf("training failed: %+v", err)
	}
}

// loadConfig parses path on top of the defaults. Validation waits until the
// command-line overrides are applied.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Defaults(), nil
	}
	//nolint:gosec // G304: config path is a CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	return config.Parse(data)
}
