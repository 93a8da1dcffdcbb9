package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convkit/convkit/internal/nn"
	"github.com/convkit/convkit/internal/tensor"
)

func TestDevice_FirstParameter(t *testing.T) {
	backend := tensor.NewMockBackendOn(tensor.Metal)
	model := nn.NewConvBNReLU(nn.BlockConfig{InChannels: 1, OutChannels: 2}, backend)

	device, err := Device[*tensor.MockBackend](model)
	require.NoError(t, err)
	assert.Equal(t, tensor.Metal, device)
}

func TestDevice_NoParameters(t *testing.T) {
	model := nn.NewSequential[*tensor.MockBackend](nn.NewReLU[*tensor.MockBackend](), nn.NewFlatten[*tensor.MockBackend]())

	_, err := Device[*tensor.MockBackend](model)
	assert.ErrorIs(t, err, ErrNoParameters)
}
