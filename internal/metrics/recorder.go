// Package metrics records scalar training metrics.
//
// JSONL appends one JSON object per call, which is easy to tail or load into
// a notebook. Non-finite values are written as "NaN", "+Inf" or "-Inf". Memory keeps everything in process for tests and summaries.
package metrics

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Point is one recorded value.
type Point struct {
	Tag   string  `json:"tag"`
	Step  int     `json:"step"`
	Value float64 `json:"value"`
}

type record struct {
	Time   time.Time         `json:"time"`
	Tag    string            `json:"tag"`
	Step   int               `json:"step"`
	Value  *scalar           `json:"value,omitempty"`
	Values map[string]scalar `json:"values,omitempty"`
}

// scalar encodes NaN and the infinities, which JSON numbers cannot hold,
// as the strings "NaN", "+Inf" and "-Inf".
type scalar float64

func (s scalar) MarshalJSON() ([]byte, error) {
	v := float64(s)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

// JSONL writes records as JSON lines.
type JSONL struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	now    func() time.Time
	err    error
}

// NewJSONL writes records to w.
func NewJSONL(w io.Writer) *JSONL {
	return &JSONL{enc: json.NewEncoder(w), now: time.Now}
}

// CreateJSONL truncates or creates path and writes records to it.
func CreateJSONL(path string) (*JSONL, error) {
	//nolint:gosec // G304: metrics path comes from the run configuration
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	r := NewJSONL(f)
	r.closer = f
	return r, nil
}

// AddScalar records value under tag at step.
func (r *JSONL) AddScalar(tag string, value float64, step int) error {
	v := scalar(value)
	return r.write(record{Tag: tag, Step: step, Value: &v})
}

// AddScalars records several values under one tag, keyed by series name.
func (r *JSONL) AddScalars(tag string, values map[string]float64, step int) error {
	vs := make(map[string]scalar, len(values))
	for name, v := range values {
		vs[name] = scalar(v)
	}
	return r.write(record{Tag: tag, Step: step, Values: vs})
}

func (r *JSONL) write(rec record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	rec.Time = r.now().UTC()
	if err := r.enc.Encode(rec); err != nil {
		r.err = errors.Wrapf(err, "metrics: write %s", rec.Tag)
		return r.err
	}
	return nil
}

// Close closes the underlying file if CreateJSONL opened it.
func (r *JSONL) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return errors.WithStack(err)
}

// Memory keeps recorded points in order.
type Memory struct {
	mu     sync.Mutex
	points []Point
}

// NewMemory creates an empty in-memory recorder.
func NewMemory() *Memory {
	return &Memory{}
}

// AddScalar records value under tag at step.
func (m *Memory) AddScalar(tag string, value float64, step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, Point{Tag: tag, Step: step, Value: value})
	return nil
}

// AddScalars records each series as "<tag>/<name>", in name order.
func (m *Memory) AddScalars(tag string, values map[string]float64, step int) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		m.points = append(m.points, Point{Tag: tag + "/" + name, Step: step, Value: values[name]})
	}
	return nil
}

// Points returns a copy of everything recorded so far.
func (m *Memory) Points() []Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Point(nil), m.points...)
}

// Series returns the points recorded under tag.
func (m *Memory) Series(tag string) []Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Point
	for _, p := range m.points {
		if p.Tag == tag {
			out = append(out, p)
		}
	}
	return out
}
