package dataset

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/tensor"
)

// SyntheticConfig describes a generated classification dataset.
type SyntheticConfig struct {
	Samples  int     // total samples (default 256)
	Classes  int     // number of classes (default 10)
	Channels int     // default 1
	Height   int     // default 8
	Width    int     // default 8
	Noise    float64 // stddev of per-pixel noise around the class prototype (default 0.1)
	Seed     int64
}

func (c *SyntheticConfig) applyDefaults() {
	if c.Samples == 0 {
		c.Samples = 256
	}
	if c.Classes == 0 {
		c.Classes = 10
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.Height == 0 {
		c.Height = 8
	}
	if c.Width == 0 {
		c.Width = 8
	}
	if c.Noise == 0 {
		c.Noise = 0.1
	}
}

// Synthetic builds a dataset where each class is a random prototype image
// and samples are noisy copies of their class prototype. Labels are Int32
// and cycle through the classes, so every class is represented.
func Synthetic(cfg SyntheticConfig) (*TensorDataset, error) {
	cfg.applyDefaults()
	if cfg.Samples < 0 || cfg.Classes < 2 || cfg.Channels < 0 || cfg.Height < 0 || cfg.Width < 0 || cfg.Noise < 0 {
		return nil, errors.Errorf("synthetic: invalid config %+v", cfg)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	sample := cfg.Channels * cfg.Height * cfg.Width

	prototypes := make([][]float32, cfg.Classes)
	for c := range prototypes {
		prototypes[c] = make([]float32, sample)
		for i := range prototypes[c] {
			prototypes[c][i] = rng.Float32()
		}
	}

	inputs, err := tensor.NewRaw(tensor.Shape{cfg.Samples, cfg.Channels, cfg.Height, cfg.Width}, tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	labels, err := tensor.NewRaw(tensor.Shape{cfg.Samples}, tensor.Int32, tensor.CPU)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	x := inputs.AsFloat32()
	y := labels.AsInt32()
	for n := 0; n < cfg.Samples; n++ {
		class := n % cfg.Classes
		y[n] = int32(class)
		row := x[n*sample : (n+1)*sample]
		for i, p := range prototypes[class] {
			row[i] = p + float32(rng.NormFloat64()*cfg.Noise)
		}
	}

	return NewTensorDataset(inputs, labels)
}
