package training

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/nn"
	"github.com/convkit/convkit/internal/serialization"
	"github.com/convkit/convkit/internal/tensor"
)

// Checkpoint layout.
const (
	CheckpointDir   = "saved_models"
	ModelPrefix     = "model_paras."
	OptimPrefix     = "optim_paras."
	timestampLayout = "2006_01_02_15_04_05"
)

// SaveOptions holds the optional SaveCheckpoint arguments.
type SaveOptions struct {
	Dataset  string           // default "unfilled"
	Accuracy float64          // default 0
	Out      io.Writer        // manifest output, default os.Stdout
	Now      func() time.Time // default time.Now
}

func (o *SaveOptions) applyDefaults() {
	if o.Dataset == "" {
		o.Dataset = "unfilled"
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// CheckpointName returns "{acc}_{dataset}_{modelType}_{YYYY_MM_DD_HH_MM_SS}.born"
// for the given local time. The accuracy uses the shortest decimal form.
func CheckpointName(accuracy float64, dataset, modelType string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s.born",
		strconv.FormatFloat(accuracy, 'f', -1, 64), dataset, modelType, at.Local().Format(timestampLayout))
}

// SaveCheckpoint writes the model and optimizer state to one file under
// saved_models/ and returns its path.
//
// Before writing it prints a manifest to opts.Out: every model state entry
// with its shape, then every optimizer state key, both in key order. The
// directory is not created; a missing directory is returned as an error.
// The file appears atomically.
func SaveCheckpoint[B tensor.Backend](model nn.Module[B], optimizer Optimizer, modelType string, opts SaveOptions) (string, error) {
	opts.applyDefaults()

	modelState := model.StateDict()
	optimState := optimizer.StateDict()

	var b strings.Builder
	b.WriteString("Model parameters:\n")
	for _, name := range sortedKeys(modelState) {
		fmt.Fprintf(&b, "%s:\t %v\n", name, modelState[name].Shape())
	}
	b.WriteString("\nOptimizer parameters:\n")
	for _, name := range sortedKeys(optimState) {
		fmt.Fprintf(&b, "%s\n", name)
	}
	if _, err := io.WriteString(opts.Out, b.String()); err != nil {
		return "", errors.WithStack(err)
	}

	record := make(map[string]*tensor.RawTensor, len(modelState)+len(optimState))
	for name, raw := range modelState {
		record[ModelPrefix+name] = raw
	}
	for name, raw := range optimState {
		record[OptimPrefix+name] = raw
	}

	path := filepath.Join(CheckpointDir, CheckpointName(opts.Accuracy, opts.Dataset, modelType, opts.Now()))
	header := serialization.Header{
		ModelType: modelType,
		Checkpoint: &serialization.CheckpointMeta{
			Dataset:       opts.Dataset,
			Accuracy:      opts.Accuracy,
			OptimizerType: fmt.Sprintf("%T", optimizer),
			ModelPrefix:   ModelPrefix,
			OptimPrefix:   OptimPrefix,
		},
	}
	if err := serialization.WriteFile(path, record, header); err != nil {
		return "", errors.WithStack(err)
	}

	if _, err := fmt.Fprintf(opts.Out, "\nSuccessfully saved to %s\n", path); err != nil {
		return "", errors.WithStack(err)
	}
	return path, nil
}

// LoadCheckpoint restores a file written by SaveCheckpoint into model and,
// when optimizer is non-nil, into optimizer. Tensors are placed on the
// model's device.
func LoadCheckpoint[B tensor.Backend](path string, model nn.Module[B], optimizer StatefulOptimizer) (*serialization.Header, error) {
	device, err := Device[B](model)
	if err != nil {
		return nil, err
	}
	file, err := serialization.ReadFile(path, device)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	modelState := make(map[string]*tensor.RawTensor)
	optimState := make(map[string]*tensor.RawTensor)
	for name, raw := range file.Tensors {
		if rest, ok := strings.CutPrefix(name, ModelPrefix); ok {
			modelState[rest] = raw
		} else if rest, ok := strings.CutPrefix(name, OptimPrefix); ok {
			optimState[rest] = raw
		} else {
			return nil, errors.Errorf("checkpoint %s: unexpected entry %q", path, name)
		}
	}

	if err := model.LoadStateDict(modelState); err != nil {
		return nil, errors.Wrapf(err, "checkpoint %s: model state", path)
	}
	if optimizer != nil {
		if err := optimizer.LoadStateDict(optimState); err != nil {
			return nil, errors.Wrapf(err, "checkpoint %s: optimizer state", path)
		}
	}
	return &file.Header, nil
}

// sortedKeys orders state-dict names the way the layers are laid out:
// dotted segments that are both integers compare numerically, so layer 2
// comes before layer 10.
func sortedKeys(m map[string]*tensor.RawTensor) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		x, errX := strconv.Atoi(as[i])
		y, errY := strconv.Atoi(bs[i])
		var c int
		if errX == nil && errY == nil {
			c = cmp.Compare(x, y)
		} else {
			c = strings.Compare(as[i], bs[i])
		}
		if c != 0 {
			return c
		}
	}
	return cmp.Compare(len(as), len(bs))
}
