// Package training holds the helpers that drive a classifier through
// training and evaluation: device lookup, accuracy checks, the epoch loop,
// checkpointing and activation/image similarity scoring.
//
// The helpers only see the model, optimizer, scheduler, loaders and metrics
// recorder through the small interfaces declared in this package. Everything
// runs synchronously on the caller's goroutine.
//
// Example:
//
//	job := training.TrainJob[B]{
//	    Model:        model,
//	    Optimizer:    opt,
//	    Scheduler:    sched,
//	    Loss:         nn.CrossEntropyLoss(head),
//	    TrainLoader:  trainLoader,
//	    CheckLoaders: training.CheckLoaders{Train: trainCheck, Val: valLoader},
//	}
//	step, err := training.Train(job, 0)
package training
