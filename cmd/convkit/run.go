package main

import (
	"io"
	"log"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/backend/cpu"
	"github.com/convkit/convkit/internal/config"
	"github.com/convkit/convkit/internal/dataset"
	"github.com/convkit/convkit/internal/metrics"
	"github.com/convkit/convkit/internal/nn"
	"github.com/convkit/convkit/internal/optim"
	"github.com/convkit/convkit/internal/sched"
	"github.com/convkit/convkit/internal/tensor"
	"github.com/convkit/convkit/internal/training"
)

type backendT = *cpu.CPUBackend

// syntheticTestFraction is the share of generated samples kept for the final test.
const syntheticTestFraction = 0.2

type splits struct {
	train, val, test *dataset.TensorDataset
}

func run(cfg *config.Config, out io.Writer) error {
	data, err := loadData(cfg)
	if err != nil {
		return err
	}
	log.Printf("samples train=%d val=%d test=%d shape=%v", data.train.Len(), data.val.Len(), data.test.Len(), data.train.SampleShape())

	backend := cpu.New()
	model, head, err := buildModel(cfg, data.train.SampleShape(), backend)
	if err != nil {
		return err
	}
	opt := buildOptimizer(cfg, model.Parameters(), backend)
	scheduler, err := sched.NewCosineWarmRestarts(opt, sched.CosineConfig{
		T0:     cfg.Schedule.T0,
		TMult:  cfg.Schedule.TMult,
		EtaMin: cfg.Schedule.EtaMin,
	})
	if err != nil {
		return err
	}

	trainLoader, err := dataset.NewLoader(data.train, dataset.LoaderConfig{BatchSize: cfg.BatchSize, Shuffle: true, Seed: cfg.Seed})
	if err != nil {
		return err
	}
	trainCheck, err := dataset.NewLoader(data.train, dataset.LoaderConfig{BatchSize: cfg.BatchSize})
	if err != nil {
		return err
	}
	valLoader, err := dataset.NewLoader(data.val, dataset.LoaderConfig{BatchSize: cfg.BatchSize})
	if err != nil {
		return err
	}
	testLoader, err := dataset.NewLoader(data.test, dataset.LoaderConfig{BatchSize: cfg.BatchSize})
	if err != nil {
		return err
	}

	job := training.TrainJob[backendT]{
		Model:        model,
		Optimizer:    opt,
		Scheduler:    scheduler,
		Loss:         nn.CrossEntropyLoss(head),
		TrainLoader:  trainLoader,
		CheckLoaders: training.CheckLoaders{Train: trainCheck, Val: valLoader},
		Config:       training.LoopConfig{Epochs: cfg.Epochs, LogEvery: cfg.LogEvery, Out: out},
	}
	if cfg.Metrics != "" {
		rec, err := metrics.CreateJSONL(cfg.Metrics)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := rec.Close(); cerr != nil {
				log.Printf("close metrics: %v", cerr)
			}
		}()
		job.Recorder = rec
	}

	step, err := training.Train(job, 0)
	if err != nil {
		return err
	}
	log.Printf("trained %d batches, final lr=%g", step, opt.LR())

	acc, err := training.ReportAccuracy[backendT](out, model, testLoader)
	if err != nil {
		return err
	}

	if !cfg.Save {
		return nil
	}
	if err := os.MkdirAll(training.CheckpointDir, 0o750); err != nil {
		return errors.WithStack(err)
	}
	_, err = training.SaveCheckpoint[backendT](model, opt, cfg.Model.Type, training.SaveOptions{
		Dataset:  cfg.Data.Name,
		Accuracy: math.Round(acc*1e4) / 1e4,
		Out:      out,
	})
	return err
}

func loadData(cfg *config.Config) (splits, error) {
	var all, test *dataset.TensorDataset
	var err error
	if cfg.Data.Synthetic {
		var ds *dataset.TensorDataset
		ds, err = dataset.Synthetic(dataset.SyntheticConfig{
			Samples: cfg.Data.MaxSamples,
			Classes: cfg.Model.Classes,
			Seed:    cfg.Seed,
		})
		if err != nil {
			return splits{}, err
		}
		all, test, err = ds.Split(1 - syntheticTestFraction)
		if err != nil {
			return splits{}, err
		}
	} else {
		if all, err = dataset.LoadMNIST(cfg.Data.Dir, true, cfg.Data.MaxSamples); err != nil {
			return splits{}, err
		}
		if test, err = dataset.LoadMNIST(cfg.Data.Dir, false, cfg.Data.MaxSamples); err != nil {
			return splits{}, err
		}
	}

	train, val, err := all.Split(1 - cfg.Data.ValFraction)
	if err != nil {
		return splits{}, err
	}
	return splits{train: train, val: val, test: test}, nil
}

// buildModel returns Sequential(ConvBNReLU(stride 2), Flatten, Linear) and its head.
func buildModel(cfg *config.Config, sample tensor.Shape, backend backendT) (*nn.Sequential[backendT], *nn.Linear[backendT], error) {
	if len(sample) != 3 {
		return nil, nil, errors.Errorf("expected [C, H, W] samples, got %v", sample)
	}
	k := cfg.Model.Kernel
	if k > sample[1] || k > sample[2] {
		return nil, nil, errors.Errorf("kernel %d too large for %dx%d input", k, sample[1], sample[2])
	}
	oh, ow := tensor.ConvOutputSize(sample[1], sample[2], k, k, 2, tensor.Padding2D{})

	head := nn.NewLinear(cfg.Model.Channels*oh*ow, cfg.Model.Classes, backend)
	model := nn.NewSequential[backendT](
		nn.NewConvBNReLU(nn.BlockConfig{
			InChannels:  sample[0],
			OutChannels: cfg.Model.Channels,
			KernelSize:  [2]int{k, k},
			Stride:      2,
		}, backend),
		nn.NewFlatten[backendT](),
		head,
	)
	return model, head, nil
}

func buildOptimizer(cfg *config.Config, params []*nn.Parameter[backendT], backend backendT) optim.Optimizer {
	if cfg.Optimizer.Name == "adam" {
		return optim.NewAdam(params, optim.AdamConfig{LR: cfg.Optimizer.LR}, backend)
	}
	return optim.NewSGD(params, optim.SGDConfig{
		LR:          cfg.Optimizer.LR,
		Momentum:    cfg.Optimizer.Momentum,
		WeightDecay: cfg.Optimizer.WeightDecay,
	}, backend)
}
