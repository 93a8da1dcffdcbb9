package nn

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/convkit/convkit/internal/tensor"
)

// Loss is the result of a loss function: a scalar value plus the ability to
// push its gradient back into the parameters that produced the scores.
type Loss interface {
	// Item returns the scalar loss value.
	Item() float64

	// Backward writes gradients into the relevant parameters.
	Backward() error
}

// LossFunc computes a Loss from class scores [N, C] and integer labels [N].
type LossFunc[B tensor.Backend] func(scores *tensor.Tensor[float32, B], labels *tensor.Tensor[int64, B]) (Loss, error)

// CrossEntropyLoss returns mean softmax cross-entropy whose Backward
// propagates into head, the Linear layer that produced the scores.
//
//	loss = -mean_i log(softmax(scores_i)[label_i])
//	dL/dscores = (softmax(scores) - onehot(labels)) / N
func CrossEntropyLoss[B tensor.Backend](head *Linear[B]) LossFunc[B] {
	return func(scores *tensor.Tensor[float32, B], labels *tensor.Tensor[int64, B]) (Loss, error) {
		shape := scores.Shape()
		if len(shape) != 2 {
			return nil, errors.Errorf("cross entropy: expected scores [N,C], got %v", shape)
		}
		n, c := shape[0], shape[1]
		if n == 0 {
			return nil, errors.New("cross entropy: empty batch")
		}
		if labels.NumElements() != n {
			return nil, errors.Errorf("cross entropy: %d labels for %d samples", labels.NumElements(), n)
		}

		s := scores.Data()
		y := labels.Data()
		grad := make([]float32, n*c)
		row := make([]float64, c)
		var total float64
		for i := 0; i < n; i++ {
			label := int(y[i])
			if label < 0 || label >= c {
				return nil, errors.Errorf("cross entropy: label %d out of range [0, %d)", label, c)
			}
			for j := 0; j < c; j++ {
				row[j] = float64(s[i*c+j])
			}
			lse := floats.LogSumExp(row)
			total += lse - row[label]
			for j := 0; j < c; j++ {
				p := math.Exp(row[j] - lse)
				if j == label {
					p--
				}
				grad[i*c+j] = float32(p / float64(n))
			}
		}

		return &crossEntropy[B]{value: total / float64(n), grad: grad, head: head}, nil
	}
}

type crossEntropy[B tensor.Backend] struct {
	value float64
	grad  []float32
	head  *Linear[B]
}

func (l *crossEntropy[B]) Item() float64 {
	return l.value
}

func (l *crossEntropy[B]) Backward() error {
	return l.head.Backward(l.grad)
}
