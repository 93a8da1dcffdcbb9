package dataset

import (
	"iter"
	"math/rand"

	"github.com/pkg/errors"
)

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	BatchSize int   // samples per batch (default 64)
	Shuffle   bool  // reshuffle on every pass
	Seed      int64 // shuffle seed
	DropLast  bool  // drop the final short batch
}

// Loader batches a TensorDataset. Every call to Batches starts a fresh pass.
type Loader struct {
	ds  *TensorDataset
	cfg LoaderConfig
	rng *rand.Rand
}

// NewLoader creates a loader over ds.
func NewLoader(ds *TensorDataset, cfg LoaderConfig) (*Loader, error) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 64
	}
	if cfg.BatchSize < 0 {
		return nil, errors.Errorf("loader: negative batch size %d", cfg.BatchSize)
	}
	return &Loader{
		ds:  ds,
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Len returns the number of batches per pass.
func (l *Loader) Len() int {
	n := l.ds.Len()
	if l.cfg.DropLast {
		return n / l.cfg.BatchSize
	}
	return (n + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// BatchSize returns the configured batch size.
func (l *Loader) BatchSize() int {
	return l.cfg.BatchSize
}

// Dataset returns the underlying dataset.
func (l *Loader) Dataset() *TensorDataset {
	return l.ds
}

// Batches yields one pass over the dataset.
func (l *Loader) Batches() iter.Seq[Batch] {
	return func(yield func(Batch) bool) {
		order := l.order()
		for b := range l.Len() {
			end := min((b+1)*l.cfg.BatchSize, len(order))
			if !yield(l.ds.Gather(order[b*l.cfg.BatchSize : end])) {
				return
			}
		}
	}
}

func (l *Loader) order() []int {
	if l.cfg.Shuffle {
		return l.rng.Perm(l.ds.Len())
	}
	order := make([]int, l.ds.Len())
	for i := range order {
		order[i] = i
	}
	return order
}
