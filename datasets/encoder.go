package datasets

import (
	"errors"
	"fmt"

	"github.com/Noofbiz/studentSeq/records"
	"github.com/Noofbiz/studentSeq/vocab"
)

// ErrMalformedWindow is returned when a window does not have the shape the
// encoder was built for.
var ErrMalformedWindow = errors.New("malformed window")

// Sample is the encoded form of a Window. Every per-step slice has SeqLen
// entries and Numeric is SeqLen x len(NumericColumns(schema)).
type Sample struct {
	StudentID int64
	Subject   int32
	Absence   []int32
	Club      []int32
	Event     []int32
	Week      []int32
	Numeric   [][]float32
	Aux       *AuxScalars // current schema only
	Target    float32
}

// NumericColumns lists the per-step numeric columns in matrix order.
func NumericColumns(schema records.Schema) []string {
	if schema == records.SchemaLegacy {
		return []string{"grade", "attendance", "club_attended"}
	}
	return []string{"grade", "attended"}
}

// Encoder turns windows into samples for one schema version.
type Encoder struct {
	Vocab      vocab.Set
	Schema     records.Schema
	SeqLen     int
	WeekPeriod int // 0 keeps raw week numbers
}

// NewEncoder returns an encoder using the built-in vocabularies of schema.
func NewEncoder(schema records.Schema, seqLen, weekPeriod int) (*Encoder, error) {
	set, err := vocab.ForSchema(int(schema))
	if err != nil {
		return nil, err
	}
	if seqLen < 1 {
		return nil, fmt.Errorf("sequence length must be positive, got %d", seqLen)
	}
	if weekPeriod < 0 {
		return nil, fmt.Errorf("week period must not be negative, got %d", weekPeriod)
	}
	return &Encoder{Vocab: set, Schema: schema, SeqLen: seqLen, WeekPeriod: weekPeriod}, nil
}

// Features is the width of the numeric matrix.
func (e *Encoder) Features() int { return len(NumericColumns(e.Schema)) }

func flag(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

// Encode maps w to a Sample. Unknown categorical values resolve to the
// vocabulary fallback; only structural problems are errors.
func (e *Encoder) Encode(w Window) (Sample, error) {
	if len(w.Steps) != e.SeqLen {
		return Sample{}, fmt.Errorf("%w: %d steps, want %d", ErrMalformedWindow, len(w.Steps), e.SeqLen)
	}
	if w.Label == nil {
		return Sample{}, fmt.Errorf("%w: no label row", ErrMalformedWindow)
	}
	legacy := e.Schema == records.SchemaLegacy
	if e.Vocab.Subject == nil || e.Vocab.Absence == nil || e.Vocab.Event == nil || (!legacy && e.Vocab.Club == nil) {
		return Sample{}, fmt.Errorf("%w: vocabulary set incomplete for %s", ErrMalformedWindow, e.Schema)
	}

	s := Sample{
		StudentID: w.StudentID,
		Subject:   int32(e.Vocab.Subject.Code(w.Subject)),
		Absence:   make([]int32, e.SeqLen),
		Club:      make([]int32, e.SeqLen),
		Event:     make([]int32, e.SeqLen),
		Week:      make([]int32, e.SeqLen),
		Numeric:   make([][]float32, e.SeqLen),
		Target:    w.Target,
	}
	features := e.Features()
	numeric := make([]float32, e.SeqLen*features)
	for t := range w.Steps {
		ev := &w.Steps[t]
		s.Absence[t] = int32(e.Vocab.Absence.Lookup(ev.AbsenceReason))
		s.Event[t] = int32(e.Vocab.Event.Lookup(ev.Event))

		week := ev.Week
		if e.WeekPeriod > 0 {
			week %= e.WeekPeriod
		}
		s.Week[t] = int32(week)

		row := numeric[t*features : (t+1)*features : (t+1)*features]
		if ev.Grade.Valid {
			row[0] = float32(ev.Grade.Float64)
		}
		row[1] = flag(ev.Attended)
		if legacy {
			s.Club[t] = int32(flag(ev.ClubAttended))
			row[2] = flag(ev.ClubAttended)
		} else {
			s.Club[t] = int32(e.Vocab.Club.Lookup(ev.Club))
		}
		s.Numeric[t] = row
	}
	if !legacy && w.Aux != nil {
		aux := *w.Aux
		s.Aux = &aux
	}
	return s, nil
}
