package training

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/nn"
	"github.com/convkit/convkit/internal/tensor"
)

// CheckAccuracy returns the fraction of samples in loader whose arg-max
// score matches the label.
//
// The model is switched to evaluation mode and left there. Gradient
// recording is off on the model's backend for the duration of the call.
// Inputs are moved to the model's device as Float32 and labels as Int32.
// A loader that yields no samples is an error.
func CheckAccuracy[B tensor.Backend](model Model[B], loader DataLoader) (float64, error) {
	device, backend, err := placement[B](model)
	if err != nil {
		return 0, err
	}

	model.Eval()
	defer nn.NoGrad(backend)()

	var correct, samples int
	for batch := range loader.Batches() {
		x := tensor.New[float32](batch.Inputs.To(device, tensor.Float32), backend)
		y := batch.Labels.To(device, tensor.Int32).AsInt32()

		scores := model.Forward(x)
		pred := scores.Argmax(1).Data()
		if len(pred) != len(y) {
			return 0, errors.Errorf("accuracy: %d predictions for %d labels", len(pred), len(y))
		}
		for i, p := range pred {
			if p == int64(y[i]) {
				correct++
			}
		}
		samples += scores.Shape()[0]
	}

	if samples == 0 {
		return 0, errors.New("accuracy: loader yielded no samples")
	}
	return float64(correct) / float64(samples), nil
}

// ReportAccuracy runs CheckAccuracy, prints the result and the elapsed
// time to w and returns the accuracy:
//
//	Test accuracy is : 97.25%	Infer time: 1.234
func ReportAccuracy[B tensor.Backend](w io.Writer, model Model[B], loader DataLoader) (float64, error) {
	tic := time.Now()
	acc, err := CheckAccuracy[B](model, loader)
	if err != nil {
		return 0, err
	}
	if _, err := fmt.Fprintf(w, "Test accuracy is : %.2f%%\tInfer time: %v\n", 100*acc, time.Since(tic).Seconds()); err != nil {
		return acc, errors.WithStack(err)
	}
	return acc, nil
}
