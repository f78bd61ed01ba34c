// Package seqmodel defines the contract between encoded batches and sequence
// models, a pure-Go reference encoder honouring it, and evaluation metrics.
package seqmodel

import (
	"errors"
	"fmt"
	"math"

	"github.com/Noofbiz/studentSeq/datasets"
	"github.com/Noofbiz/studentSeq/records"
	"github.com/Noofbiz/studentSeq/vocab"
)

// ErrInputShape is returned when a batch does not fit the model.
var ErrInputShape = errors.New("input shape")

// Predictor returns one scalar per sequence of the batch.
type Predictor interface {
	Predict(b *datasets.Batch) ([]float32, error)
}

// PredType selects the output head.
type PredType string

const (
	// PredBinary squashes the output through a sigmoid.
	PredBinary PredType = "binary"
	// PredRegression leaves the output linear.
	PredRegression PredType = "regression"
)

// Pooling selects how step states become one sequence vector.
type Pooling string

const (
	PoolLast Pooling = "last"
	PoolMean Pooling = "mean"
)

// Config holds the model dimensions.
type Config struct {
	// EmbedDim is the width of every step state. Default 64.
	EmbedDim int
	// HiddenDim is the width of the feed-forward and head hidden layers. Default 32.
	HiddenDim int
	// MaxSeqLen bounds the positional table. Default 52.
	MaxSeqLen int

	PredType PredType // default binary
	Pooling  Pooling  // default last

	// Seed controls weight init. If zero, a time-based seed is used.
	Seed int64

	SubjectVocab int
	AbsenceVocab int
	ClubVocab    int
	EventVocab   int // 0 disables the event embedding

	NumFeatures int
	AuxFeatures int // 0 when batches carry no aux scalars
}

// ConfigForSchema returns a default Config sized for the vocabularies and
// numeric columns of schema.
func ConfigForSchema(schema records.Schema) (Config, error) {
	set, err := vocab.ForSchema(int(schema))
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		SubjectVocab: set.Subject.Size(),
		AbsenceVocab: set.Absence.Size(),
		ClubVocab:    set.ClubSize(),
		EventVocab:   set.Event.Size(),
		NumFeatures:  len(datasets.NumericColumns(schema)),
		PredType:     PredRegression,
	}
	if schema == records.SchemaCurrent {
		cfg.AuxFeatures = datasets.AuxFeatures
	} else {
		cfg.PredType = PredBinary
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.EmbedDim == 0 {
		c.EmbedDim = 64
	}
	if c.HiddenDim == 0 {
		c.HiddenDim = 32
	}
	if c.MaxSeqLen == 0 {
		c.MaxSeqLen = 52
	}
	if c.PredType == "" {
		c.PredType = PredBinary
	}
	if c.Pooling == "" {
		c.Pooling = PoolLast
	}
}

func (c *Config) validate() error {
	if c.SubjectVocab < 1 || c.AbsenceVocab < 1 || c.ClubVocab < 1 || c.EventVocab < 0 {
		return fmt.Errorf("vocabulary sizes must be positive: subject=%d absence=%d club=%d event=%d",
			c.SubjectVocab, c.AbsenceVocab, c.ClubVocab, c.EventVocab)
	}
	if c.NumFeatures < 1 {
		return fmt.Errorf("numeric feature count must be positive, got %d", c.NumFeatures)
	}
	if c.EmbedDim < 1 || c.HiddenDim < 1 || c.MaxSeqLen < 1 || c.AuxFeatures < 0 {
		return errors.New("model dimensions must be positive")
	}
	switch c.PredType {
	case PredBinary, PredRegression:
	default:
		return fmt.Errorf("unknown prediction type %q", c.PredType)
	}
	switch c.Pooling {
	case PoolLast, PoolMean:
	default:
		return fmt.Errorf("unknown pooling %q", c.Pooling)
	}
	return nil
}

// Metrics summarises predictions against targets.
type Metrics struct {
	N        int
	MSE      float64
	MAE      float64
	Accuracy float64 // share of predictions on the same side of 0.5 as the target
}

// Evaluate runs p over every batch and aggregates the errors.
func Evaluate(p Predictor, batches []*datasets.Batch) (Metrics, error) {
	var m Metrics
	var se, ae float64
	correct := 0
	for bi, b := range batches {
		preds, err := p.Predict(b)
		if err != nil {
			return Metrics{}, fmt.Errorf("batch %d: %w", bi, err)
		}
		if len(preds) != b.Size {
			return Metrics{}, fmt.Errorf("%w: batch %d got %d predictions for %d samples", ErrInputShape, bi, len(preds), b.Size)
		}
		for i, pred := range preds {
			d := float64(pred) - float64(b.Target[i])
			se += d * d
			ae += math.Abs(d)
			if (pred >= 0.5) == (b.Target[i] >= 0.5) {
				correct++
			}
		}
		m.N += b.Size
	}
	if m.N == 0 {
		return m, nil
	}
	n := float64(m.N)
	m.MSE = se / n
	m.MAE = ae / n
	m.Accuracy = float64(correct) / n
	return m, nil
}
