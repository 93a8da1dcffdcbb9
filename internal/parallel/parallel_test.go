package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor_VisitsEveryIndexOnce(t *testing.T) {
	for name, cfg := range map[string]Config{
		"default":    DefaultConfig(),
		"sequential": Sequential(),
		"forced":     {Enabled: true, NumWorkers: 3, MinChunkSize: 1},
	} {
		t.Run(name, func(t *testing.T) {
			hits := make([]int32, 1000)
			For(len(hits), func(i int) {
				atomic.AddInt32(&hits[i], 1)
			}, cfg)
			for i, h := range hits {
				assert.Equal(t, int32(1), h, "index %d", i)
			}
		})
	}
}

func TestFor_EmptyRange(t *testing.T) {
	called := false
	For(0, func(int) { called = true }, DefaultConfig())
	assert.False(t, called)
}

func TestFor_ZeroWorkersRunsInline(t *testing.T) {
	var count int
	For(10, func(int) { count++ }, Config{Enabled: true})
	assert.Equal(t, 10, count)
}

func TestForBatch(t *testing.T) {
	batch, channels := 4, 8
	seen := make([][]int32, batch)
	for b := range seen {
		seen[b] = make([]int32, channels)
	}

	ForBatch(batch, channels, func(b, c int) {
		atomic.AddInt32(&seen[b][c], 1)
	}, Config{Enabled: true, NumWorkers: 5, MinChunkSize: 1})

	for b := range seen {
		for c := range seen[b] {
			assert.Equal(t, int32(1), seen[b][c], "[%d][%d]", b, c)
		}
	}
}

func BenchmarkFor(b *testing.B) {
	n := 10000
	for name, cfg := range map[string]Config{"parallel": DefaultConfig(), "sequential": Sequential()} {
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				var sum int64
				For(n, func(i int) {
					atomic.AddInt64(&sum, int64(i))
				}, cfg)
			}
		})
	}
}
