package seqmodel

import (
	"errors"
	"math"
	"testing"

	"github.com/Noofbiz/studentSeq/datasets"
	"github.com/Noofbiz/studentSeq/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBatch builds a batch of size samples with valid codes for schema.
func testBatch(t *testing.T, schema records.Schema, size, seqLen int) *datasets.Batch {
	t.Helper()
	features := len(datasets.NumericColumns(schema))
	samples := make([]datasets.Sample, size)
	for i := range samples {
		s := datasets.Sample{
			Subject: int32(i % 5),
			Absence: make([]int32, seqLen),
			Club:    make([]int32, seqLen),
			Event:   make([]int32, seqLen),
			Week:    make([]int32, seqLen),
			Numeric: make([][]float32, seqLen),
			Target:  float32(i % 2),
		}
		for st := 0; st < seqLen; st++ {
			s.Absence[st] = int32((i + st) % 4)
			s.Club[st] = int32(st % 2)
			s.Event[st] = int32(st % 3)
			s.Week[st] = int32(st)
			s.Numeric[st] = make([]float32, features)
			s.Numeric[st][0] = float32(3 + (i+st)%3)
			s.Numeric[st][1] = 1
		}
		if schema == records.SchemaCurrent {
			s.Aux = &datasets.AuxScalars{TotalClubHours: float32(i), ClubIntensity: 0.5}
		}
		samples[i] = s
	}
	b, err := datasets.Collate(samples)
	require.NoError(t, err)
	return b
}

func newTestEncoder(t *testing.T, schema records.Schema, mutate func(*Config)) *Encoder {
	t.Helper()
	cfg, err := ConfigForSchema(schema)
	require.NoError(t, err)
	cfg.Seed = 42
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEncoder(cfg)
	require.NoError(t, err)
	return e
}

func TestEncoder_BinaryOutputsProbabilities(t *testing.T) {
	e := newTestEncoder(t, records.SchemaLegacy, nil)
	assert.Equal(t, PredBinary, e.Config.PredType)
	assert.Equal(t, 64, e.Config.EmbedDim)

	preds, err := e.Predict(testBatch(t, records.SchemaLegacy, 5, 8))
	require.NoError(t, err)
	require.Len(t, preds, 5)
	for i, p := range preds {
		if p <= 0 || p >= 1 || math.IsNaN(float64(p)) {
			t.Fatalf("prediction %d = %v is not a probability", i, p)
		}
	}
}

func TestEncoder_DeterministicForSeed(t *testing.T) {
	b := testBatch(t, records.SchemaCurrent, 4, 8)
	first, err := newTestEncoder(t, records.SchemaCurrent, nil).Predict(b)
	require.NoError(t, err)
	second, err := newTestEncoder(t, records.SchemaCurrent, nil).Predict(b)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := newTestEncoder(t, records.SchemaCurrent, func(c *Config) { c.Seed = 7 }).Predict(b)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestEncoder_PoolingAndAuxMatter(t *testing.T) {
	b := testBatch(t, records.SchemaCurrent, 3, 6)
	last, err := newTestEncoder(t, records.SchemaCurrent, nil).Predict(b)
	require.NoError(t, err)
	mean, err := newTestEncoder(t, records.SchemaCurrent, func(c *Config) { c.Pooling = PoolMean }).Predict(b)
	require.NoError(t, err)
	assert.NotEqual(t, last, mean)

	// same sequences, different aux scalars
	b.Aux[0] += 10
	changed, err := newTestEncoder(t, records.SchemaCurrent, nil).Predict(b)
	require.NoError(t, err)
	assert.NotEqual(t, last[0], changed[0])
	assert.Equal(t, last[1], changed[1])
}

func TestEncoder_InputValidation(t *testing.T) {
	e := newTestEncoder(t, records.SchemaLegacy, func(c *Config) { c.MaxSeqLen = 8 })

	tests := []struct {
		name  string
		batch func() *datasets.Batch
	}{
		{"too long", func() *datasets.Batch { return testBatch(t, records.SchemaLegacy, 2, 9) }},
		{"subject code", func() *datasets.Batch {
			b := testBatch(t, records.SchemaLegacy, 2, 8)
			b.Subject[1] = 99
			return b
		}},
		{"negative absence", func() *datasets.Batch {
			b := testBatch(t, records.SchemaLegacy, 2, 8)
			b.Absence[3] = -1
			return b
		}},
		{"club flag", func() *datasets.Batch {
			b := testBatch(t, records.SchemaLegacy, 2, 8)
			b.Club[0] = 2
			return b
		}},
		{"feature count", func() *datasets.Batch { return testBatch(t, records.SchemaCurrent, 2, 8) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Predict(tt.batch())
			assert.True(t, errors.Is(err, ErrInputShape), "got %v", err)
		})
	}

	preds, err := e.Predict(&datasets.Batch{})
	assert.NoError(t, err)
	assert.Empty(t, preds)
}

func TestNewEncoder_RejectsBadConfig(t *testing.T) {
	_, err := NewEncoder(Config{})
	assert.Error(t, err)

	cfg, err := ConfigForSchema(records.SchemaLegacy)
	require.NoError(t, err)
	cfg.PredType = "softmax"
	_, err = NewEncoder(cfg)
	assert.Error(t, err)

	_, err = ConfigForSchema(records.Schema(0))
	assert.Error(t, err)
}

func TestPositionalEncoding(t *testing.T) {
	pe := positionalEncoding(4, 6)
	assert.Equal(t, []float32{0, 1, 0, 1, 0, 1}, pe[0])
	assert.InDelta(t, math.Sin(1), pe[1][0], 1e-6)
	assert.InDelta(t, math.Cos(1), pe[1][1], 1e-6)
}

func TestLayerNorm(t *testing.T) {
	x := []float32{1, 2, 3, 4}
	layerNorm(x, []float32{1, 1, 1, 1}, []float32{0, 0, 0, 0})
	var sum float32
	for _, v := range x {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-5)
	assert.Greater(t, x[3], x[0])
}

type constPredictor float32

func (c constPredictor) Predict(b *datasets.Batch) ([]float32, error) {
	out := make([]float32, b.Size)
	for i := range out {
		out[i] = float32(c)
	}
	return out, nil
}

func TestEvaluate(t *testing.T) {
	b := testBatch(t, records.SchemaLegacy, 4, 8) // targets 0,1,0,1
	m, err := Evaluate(constPredictor(0.75), []*datasets.Batch{b, b})
	require.NoError(t, err)
	assert.Equal(t, 8, m.N)
	assert.InDelta(t, (0.75*0.75+0.25*0.25)/2, m.MSE, 1e-9)
	assert.InDelta(t, 0.5, m.MAE, 1e-9)
	assert.InDelta(t, 0.5, m.Accuracy, 1e-9)

	empty, err := Evaluate(constPredictor(1), nil)
	require.NoError(t, err)
	assert.Equal(t, Metrics{}, empty)
}
