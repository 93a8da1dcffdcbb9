package sched

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convkit/convkit/internal/backend/cpu"
	"github.com/convkit/convkit/internal/optim"
)

type fakeOptimizer struct {
	groups []*optim.ParamGroup
}

func (f *fakeOptimizer) ParamGroups() []*optim.ParamGroup {
	return f.groups
}

func newFake(lr float64) *fakeOptimizer {
	return &fakeOptimizer{groups: []*optim.ParamGroup{{LR: lr, InitialLR: lr}}}
}

func TestCosine_StartsAtBaseLR(t *testing.T) {
	opt := newFake(0.1)
	opt.groups[0].LR = 0.5

	s, err := NewCosineWarmRestarts(opt, CosineConfig{T0: 4})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, opt.groups[0].LR, 1e-12)
	assert.Equal(t, []float64{0.1}, s.LastLR())
}

func TestCosine_HalfCycleIsMidpoint(t *testing.T) {
	opt := newFake(1.0)
	s, err := NewCosineWarmRestarts(opt, CosineConfig{T0: 4, EtaMin: 0.2})
	require.NoError(t, err)

	s.Step(2)
	assert.InDelta(t, 0.6, opt.groups[0].LR, 1e-12)
}

func TestCosine_RestartsAtT0(t *testing.T) {
	opt := newFake(1.0)
	s, err := NewCosineWarmRestarts(opt, CosineConfig{T0: 2, EtaMin: 0.1})
	require.NoError(t, err)

	s.Step(1.999999)
	assert.InDelta(t, 0.1, opt.groups[0].LR, 1e-6, "end of cycle approaches eta_min")

	s.Step(2)
	assert.InDelta(t, 1.0, opt.groups[0].LR, 1e-12, "restart returns to base lr")

	s.Step(4.5)
	tCur, tI := s.Cycle()
	assert.InDelta(t, 0.5, tCur, 1e-12)
	assert.Equal(t, 2.0, tI)
}

func TestCosine_TMultGrowsCycles(t *testing.T) {
	opt := newFake(1.0)
	s, err := NewCosineWarmRestarts(opt, CosineConfig{T0: 1, TMult: 2})
	require.NoError(t, err)

	// Cycles: [0,1), [1,3), [3,7)
	for _, tc := range []struct {
		epoch, tCur, tI float64
	}{
		{0.5, 0.5, 1},
		{1, 0, 2},
		{2, 1, 2},
		{3, 0, 4},
		{6, 3, 4},
	} {
		s.Step(tc.epoch)
		tCur, tI := s.Cycle()
		assert.InDelta(t, tc.tCur, tCur, 1e-9, "epoch %v", tc.epoch)
		assert.InDelta(t, tc.tI, tI, 1e-9, "epoch %v", tc.epoch)
	}

	s.Step(2)
	assert.InDelta(t, 0.5, opt.groups[0].LR, 1e-12)
}

func TestCosine_FractionalBatchSteps(t *testing.T) {
	opt := newFake(0.1)
	s, err := NewCosineWarmRestarts(opt, CosineConfig{T0: 1})
	require.NoError(t, err)

	const batches = 20
	for step := 1; step <= batches; step++ {
		s.Step(float64(step) / batches)
		e := math.Mod(float64(step)/batches, 1)
		want := 0.1 * (1 + math.Cos(math.Pi*e)) / 2
		assert.InDelta(t, want, opt.groups[0].LR, 1e-12)
	}
	assert.Equal(t, 1.0, s.Epoch())
}

func TestCosine_InvalidConfig(t *testing.T) {
	_, err := NewCosineWarmRestarts(newFake(0.1), CosineConfig{})
	assert.Error(t, err)

	_, err = NewCosineWarmRestarts(newFake(0.1), CosineConfig{T0: 1, TMult: -1})
	assert.Error(t, err)
}

func TestCosine_DrivesRealOptimizerGroups(t *testing.T) {
	opt := optim.NewSGD[*cpu.CPUBackend](nil, optim.SGDConfig{LR: 0.4}, cpu.New())
	s, err := NewCosineWarmRestarts(opt, CosineConfig{T0: 2})
	require.NoError(t, err)

	s.Step(1)
	assert.InDelta(t, 0.2, opt.LR(), 1e-12)
}
