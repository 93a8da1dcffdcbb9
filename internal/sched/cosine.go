// Package sched implements learning-rate schedulers that drive optimizer
// parameter groups.
package sched

import (
	"math"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/optim"
)

// GroupedOptimizer is anything that exposes parameter groups.
type GroupedOptimizer interface {
	ParamGroups() []*optim.ParamGroup
}

// CosineConfig configures CosineWarmRestarts.
type CosineConfig struct {
	T0     int     // epochs in the first cycle; must be positive
	TMult  int     // cycle length multiplier after each restart (default 1)
	EtaMin float64 // floor learning rate
}

// CosineWarmRestarts anneals each group's learning rate along a cosine from
// its initial value down to EtaMin, restarting after T0, T0*TMult, ...
// epochs (SGDR, Loshchilov & Hutter). Epochs may be fractional, so the
// schedule can be stepped once per batch with epoch + batch/len(loader).
type CosineWarmRestarts struct {
	groups []*optim.ParamGroup
	base   []float64
	t0     float64
	tMult  int
	etaMin float64

	epoch float64
	tCur  float64
	tI    float64
}

// NewCosineWarmRestarts attaches a scheduler to opt and sets every group to
// its epoch-0 learning rate.
func NewCosineWarmRestarts(opt GroupedOptimizer, cfg CosineConfig) (*CosineWarmRestarts, error) {
	if cfg.T0 <= 0 {
		return nil, errors.Errorf("cosine: expected positive T0, got %d", cfg.T0)
	}
	if cfg.TMult == 0 {
		cfg.TMult = 1
	}
	if cfg.TMult < 1 {
		return nil, errors.Errorf("cosine: expected TMult >= 1, got %d", cfg.TMult)
	}

	groups := opt.ParamGroups()
	base := make([]float64, len(groups))
	for i, g := range groups {
		base[i] = g.InitialLR
	}

	s := &CosineWarmRestarts{
		groups: groups,
		base:   base,
		t0:     float64(cfg.T0),
		tMult:  cfg.TMult,
		etaMin: cfg.EtaMin,
	}
	s.Step(0)
	return s, nil
}

// Step moves the schedule to the given (possibly fractional) epoch.
func (s *CosineWarmRestarts) Step(epoch float64) {
	if epoch < 0 {
		epoch = 0
	}
	s.epoch = epoch

	switch {
	case epoch < s.t0:
		s.tI = s.t0
		s.tCur = epoch
	case s.tMult == 1:
		s.tI = s.t0
		s.tCur = math.Mod(epoch, s.t0)
	default:
		// Walk the geometric cycle boundaries; exact at integer restarts.
		start, length := 0.0, s.t0
		for epoch >= start+length {
			start += length
			length *= float64(s.tMult)
		}
		s.tCur = epoch - start
		s.tI = length
	}

	cos := (1 + math.Cos(math.Pi*s.tCur/s.tI)) / 2
	for i, g := range s.groups {
		g.LR = s.etaMin + (s.base[i]-s.etaMin)*cos
	}
}

// LastLR returns the learning rate Step last set for each group.
func (s *CosineWarmRestarts) LastLR() []float64 {
	lrs := make([]float64, len(s.groups))
	for i, g := range s.groups {
		lrs[i] = g.LR
	}
	return lrs
}

// Epoch returns the epoch of the last Step.
func (s *CosineWarmRestarts) Epoch() float64 {
	return s.epoch
}

// Cycle returns the position within the current cycle and its length.
func (s *CosineWarmRestarts) Cycle() (tCur, tI float64) {
	return s.tCur, s.tI
}
