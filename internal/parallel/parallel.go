// Package parallel splits index ranges across goroutines for the CPU backend.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how work is split.
type Config struct {
	Enabled      bool // run chunks on goroutines; false runs inline
	NumWorkers   int  // upper bound on concurrent chunks
	MinChunkSize int  // items per goroutine below which splitting does not pay
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4,
	}
}

// Sequential never starts goroutines.
func Sequential() Config {
	return Config{NumWorkers: 1, MinChunkSize: 1}
}

// For calls f(i) for every i in [0, n). Calls for distinct i may run
// concurrently, so f must only write state owned by i.
func For(n int, f func(i int), cfg Config) {
	if n <= 0 {
		return
	}
	workers := max(cfg.NumWorkers, 1)
	chunk := max((n+workers-1)/workers, cfg.MinChunkSize, 1)
	if !cfg.Enabled || chunk >= n {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := start; i < end; i++ {
				f(i)
			}
		}()
	}
	wg.Wait()
}

// ForBatch calls f(b, c) for every sample b and channel c, the
// [N, C, ...] loop of convolution outputs.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	if channels <= 0 {
		return
	}
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
