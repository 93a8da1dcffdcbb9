package metrics

import (
	"bufio"
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, os.ErrClosed
}

func TestJSONL_WritesOneObjectPerCall(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONL(&buf)
	r.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, r.AddScalar("Metric/loss", 0.5, 3))
	require.NoError(t, r.AddScalars("Metric/acc", map[string]float64{"train": 0.9, "val": 0.8}, 3))

	scanner := bufio.NewScanner(&buf)
	var lines []map[string]any
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)

	assert.Equal(t, "Metric/loss", lines[0]["tag"])
	assert.Equal(t, 0.5, lines[0]["value"])
	assert.Equal(t, float64(3), lines[0]["step"])
	assert.Equal(t, "2024-01-02T03:04:05Z", lines[0]["time"])

	assert.Equal(t, map[string]any{"train": 0.9, "val": 0.8}, lines[1]["values"])
	assert.NotContains(t, lines[1], "value")
}

func TestJSONL_ZeroValueIsKept(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONL(&buf).AddScalar("Hpara/lr", 0, 1))
	assert.Contains(t, buf.String(), `"value":0`)
}

func TestJSONL_NonFiniteValues(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONL(&buf)

	require.NoError(t, r.AddScalar("Metric/loss", math.NaN(), 1))
	require.NoError(t, r.AddScalars("Metric/acc", map[string]float64{"train": math.Inf(1), "val": math.Inf(-1)}, 2))
	require.NoError(t, r.AddScalar("Metric/loss", 0.25, 3), "a non-finite value does not poison the recorder")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)

	var first, second, third map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	require.NoError(t, json.Unmarshal(lines[2], &third))
	assert.Equal(t, "NaN", first["value"])
	assert.Equal(t, map[string]any{"train": "+Inf", "val": "-Inf"}, second["values"])
	assert.Equal(t, 0.25, third["value"])
}

func TestJSONL_StickyError(t *testing.T) {
	r := NewJSONL(failingWriter{})
	err := r.AddScalar("a", 1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.Equal(t, err, r.AddScalar("b", 2, 2))
}

func TestCreateJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	r, err := CreateJSONL(path)
	require.NoError(t, err)
	require.NoError(t, r.AddScalar("x", 1, 1))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tag":"x"`)

	_, err = CreateJSONL(filepath.Join(t.TempDir(), "missing", "m.jsonl"))
	assert.Error(t, err)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.AddScalar("Metric/loss", 1.5, 1))
	require.NoError(t, m.AddScalars("Metric/acc", map[string]float64{"val": 0.2, "train": 0.4}, 1))
	require.NoError(t, m.AddScalar("Metric/loss", 1.0, 2))

	assert.Equal(t, []Point{
		{Tag: "Metric/loss", Step: 1, Value: 1.5},
		{Tag: "Metric/acc/train", Step: 1, Value: 0.4},
		{Tag: "Metric/acc/val", Step: 1, Value: 0.2},
		{Tag: "Metric/loss", Step: 2, Value: 1.0},
	}, m.Points())
	assert.Len(t, m.Series("Metric/loss"), 2)
}
