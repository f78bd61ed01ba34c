package datasets

import (
	"errors"
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// ErrShapeMismatch is returned when samples in one batch disagree on shape.
var ErrShapeMismatch = errors.New("shape mismatch")

// Batch stores B samples in flat batch-major buffers.
type Batch struct {
	Size     int // B
	SeqLen   int // L
	Features int // F

	Subject []int32   // [B]
	Absence []int32   // [B*L]
	Club    []int32   // [B*L]
	Event   []int32   // [B*L]
	Week    []int32   // [B*L]
	Numeric []float32 // [B*L*F]
	Aux     []float32 // [B*AuxFeatures], nil when the samples carry none
	Target  []float32 // [B]
}

// Collate stacks samples along a new leading dimension. Every sample must
// match the first one in step count, feature count and aux presence; nothing
// is padded or truncated.
func Collate(samples []Sample) (*Batch, error) {
	if len(samples) == 0 {
		return &Batch{}, nil
	}
	first := &samples[0]
	seqLen := len(first.Absence)
	features := 0
	if len(first.Numeric) > 0 {
		features = len(first.Numeric[0])
	}
	hasAux := first.Aux != nil

	b := &Batch{
		Size:     len(samples),
		SeqLen:   seqLen,
		Features: features,
		Subject:  make([]int32, len(samples)),
		Absence:  make([]int32, len(samples)*seqLen),
		Club:     make([]int32, len(samples)*seqLen),
		Event:    make([]int32, len(samples)*seqLen),
		Week:     make([]int32, len(samples)*seqLen),
		Numeric:  make([]float32, len(samples)*seqLen*features),
		Target:   make([]float32, len(samples)),
	}
	if hasAux {
		b.Aux = make([]float32, len(samples)*AuxFeatures)
	}

	for i := range samples {
		s := &samples[i]
		if len(s.Absence) != seqLen || len(s.Club) != seqLen || len(s.Event) != seqLen ||
			len(s.Week) != seqLen || len(s.Numeric) != seqLen {
			return nil, fmt.Errorf("%w: sample %d has %d steps, sample 0 has %d", ErrShapeMismatch, i, len(s.Numeric), seqLen)
		}
		if (s.Aux != nil) != hasAux {
			return nil, fmt.Errorf("%w: sample %d aux presence differs from sample 0", ErrShapeMismatch, i)
		}
		b.Subject[i] = s.Subject
		b.Target[i] = s.Target
		copy(b.Absence[i*seqLen:], s.Absence)
		copy(b.Club[i*seqLen:], s.Club)
		copy(b.Event[i*seqLen:], s.Event)
		copy(b.Week[i*seqLen:], s.Week)
		for t, row := range s.Numeric {
			if len(row) != features {
				return nil, fmt.Errorf("%w: sample %d step %d has %d features, sample 0 has %d",
					ErrShapeMismatch, i, t, len(row), features)
			}
			copy(b.Numeric[(i*seqLen+t)*features:], row)
		}
		if hasAux {
			b.Aux[i*AuxFeatures] = s.Aux.TotalClubHours
			b.Aux[i*AuxFeatures+1] = s.Aux.ClubIntensity
		}
	}
	return b, nil
}

// NumericAt returns the feature row of sample i at step t.
func (b *Batch) NumericAt(i, t int) []float32 {
	off := (i*b.SeqLen + t) * b.Features
	return b.Numeric[off : off+b.Features]
}

// AuxAt returns the aux scalars of sample i, or nil.
func (b *Batch) AuxAt(i int) []float32 {
	if b.Aux == nil {
		return nil
	}
	return b.Aux[i*AuxFeatures : (i+1)*AuxFeatures]
}

// BatchTensors holds a Batch as gomlx tensors. Subject is broadcast to [B, L]
// so every categorical input shares one shape.
type BatchTensors struct {
	Subject *tensors.Tensor // [B, L] int32
	Absence *tensors.Tensor // [B, L] int32
	Club    *tensors.Tensor // [B, L] int32
	Event   *tensors.Tensor // [B, L] int32
	Week    *tensors.Tensor // [B, L] int32
	Numeric *tensors.Tensor // [B, L, F] float32
	Aux     *tensors.Tensor // [B, AuxFeatures] float32, nil without aux
	Target  *tensors.Tensor // [B] float32
}

// Inputs returns the model inputs in a fixed order: subject, absence, club,
// event, week, numeric and aux when present.
func (bt *BatchTensors) Inputs() []*tensors.Tensor {
	in := []*tensors.Tensor{bt.Subject, bt.Absence, bt.Club, bt.Event, bt.Week, bt.Numeric}
	if bt.Aux != nil {
		in = append(in, bt.Aux)
	}
	return in
}

func reshapeCodes(flat []int32, rows, cols int) [][]int32 {
	out := make([][]int32, rows)
	for i := range out {
		out[i] = flat[i*cols : (i+1)*cols]
	}
	return out
}

// ToGomlxTensors converts the flat buffers into tensors.
func (b *Batch) ToGomlxTensors() (*BatchTensors, error) {
	if b.Size == 0 || b.SeqLen == 0 || b.Features == 0 {
		return nil, fmt.Errorf("%w: cannot build tensors from an empty batch", ErrShapeMismatch)
	}

	subject := make([]int32, b.Size*b.SeqLen)
	for i, code := range b.Subject {
		for t := 0; t < b.SeqLen; t++ {
			subject[i*b.SeqLen+t] = code
		}
	}

	numeric := make([][][]float32, b.Size)
	for i := range numeric {
		numeric[i] = make([][]float32, b.SeqLen)
		for t := range numeric[i] {
			numeric[i][t] = b.NumericAt(i, t)
		}
	}

	bt := &BatchTensors{
		Subject: tensors.FromAnyValue(reshapeCodes(subject, b.Size, b.SeqLen)),
		Absence: tensors.FromAnyValue(reshapeCodes(b.Absence, b.Size, b.SeqLen)),
		Club:    tensors.FromAnyValue(reshapeCodes(b.Club, b.Size, b.SeqLen)),
		Event:   tensors.FromAnyValue(reshapeCodes(b.Event, b.Size, b.SeqLen)),
		Week:    tensors.FromAnyValue(reshapeCodes(b.Week, b.Size, b.SeqLen)),
		Numeric: tensors.FromAnyValue(numeric),
		Target:  tensors.FromAnyValue(b.Target),
	}
	if b.Aux != nil {
		aux := make([][]float32, b.Size)
		for i := range aux {
			aux[i] = b.AuxAt(i)
		}
		bt.Aux = tensors.FromAnyValue(aux)
	}
	return bt, nil
}
