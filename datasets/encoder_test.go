package datasets_test

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/Noofbiz/studentSeq/datasets"
	"github.com/Noofbiz/studentSeq/records"
	"github.com/Noofbiz/studentSeq/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleWindow(t *testing.T, events []records.RawEvent, seqLen int, mode datasets.TargetMode) datasets.Window {
	t.Helper()
	windows, _, err := datasets.BuildWindows(events, seqLen, mode)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	return windows[0]
}

func TestEncoder_Legacy(t *testing.T) {
	events := weekly(1, "physics", 5, constGrade(4))
	events[0].AbsenceReason = ns("expelled")
	events[1].AbsenceReason = ns("illness")
	events[2].ClubAttended = true
	events[2].Event = ns("olympiad")
	events[3].Grade = sql.NullFloat64{}
	for i := range events {
		events[i].Week += 50 // weeks 51..55
	}

	enc, err := datasets.NewEncoder(records.SchemaLegacy, 4, 52)
	require.NoError(t, err)
	s, err := enc.Encode(singleWindow(t, events, 4, datasets.TargetRiskFlag))
	require.NoError(t, err)

	assert.Equal(t, int32(vocab.Subject.Code("physics")), s.Subject)
	assert.Equal(t, []int32{
		int32(vocab.AbsenceReason.FallbackCode()),
		int32(vocab.AbsenceReason.Code("illness")),
		int32(vocab.AbsenceReason.NullCode()),
		int32(vocab.AbsenceReason.NullCode()),
	}, s.Absence)
	assert.Equal(t, []int32{0, 0, 1, 0}, s.Club, "legacy club is the attended flag")
	assert.Equal(t, int32(vocab.Event.Code("olympiad")), s.Event[2])
	assert.Equal(t, []int32{51, 0, 1, 2}, s.Week)

	assert.Equal(t, []string{"grade", "attendance", "club_attended"}, datasets.NumericColumns(records.SchemaLegacy))
	require.Len(t, s.Numeric, 4)
	assert.Equal(t, []float32{4, 1, 0}, s.Numeric[0])
	assert.Equal(t, []float32{4, 0, 1}, s.Numeric[2], "week 53 is not attended")
	assert.Equal(t, []float32{0, 1, 0}, s.Numeric[3], "missing grade encodes as 0")

	assert.Nil(t, s.Aux, "legacy samples carry no aux scalars")
	assert.Equal(t, float32(1), s.Target, "label week 55 is odd")
}

func TestEncoder_Current(t *testing.T) {
	events := weekly(2, "chemistry", 3, constGrade(3.5))
	events[0].Club = ns("arts")
	events[1].Club = ns("chess")
	events[0].TotalClubHours = sql.NullInt64{Int64: 2, Valid: true}
	events[1].ClubIntensity = nf(0.75)

	enc, err := datasets.NewEncoder(records.SchemaCurrent, 2, 0)
	require.NoError(t, err)
	s, err := enc.Encode(singleWindow(t, events, 2, datasets.TargetNextGrade))
	require.NoError(t, err)

	decoded, err := vocab.Subject.Decode(int(s.Subject))
	require.NoError(t, err)
	assert.Equal(t, "other", decoded, "unknown subject decodes to the fallback")

	assert.Equal(t, []int32{int32(vocab.Club.Code("arts")), int32(vocab.Club.FallbackCode())}, s.Club)
	assert.Equal(t, []int32{1, 2}, s.Week, "week period 0 keeps raw weeks")
	assert.Equal(t, []float32{3.5, 1}, s.Numeric[0])
	require.NotNil(t, s.Aux)
	assert.Equal(t, datasets.AuxScalars{TotalClubHours: 2, ClubIntensity: 0.75}, *s.Aux)
	assert.Equal(t, float32(3.5), s.Target)
	assert.Equal(t, 2, enc.Features())
}

func TestEncoder_Malformed(t *testing.T) {
	enc, err := datasets.NewEncoder(records.SchemaLegacy, 8, 52)
	require.NoError(t, err)

	w := singleWindow(t, weekly(1, "math", 5, constGrade(4)), 4, datasets.TargetRiskFlag)
	_, err = enc.Encode(w)
	assert.True(t, errors.Is(err, datasets.ErrMalformedWindow))

	w = singleWindow(t, weekly(1, "math", 9, constGrade(4)), 8, datasets.TargetRiskFlag)
	w.Label = nil
	_, err = enc.Encode(w)
	assert.True(t, errors.Is(err, datasets.ErrMalformedWindow))

	incomplete := &datasets.Encoder{Vocab: vocab.LegacySet(), Schema: records.SchemaCurrent, SeqLen: 8}
	w = singleWindow(t, weekly(1, "math", 9, constGrade(4)), 8, datasets.TargetRiskFlag)
	_, err = incomplete.Encode(w)
	assert.True(t, errors.Is(err, datasets.ErrMalformedWindow))

	_, err = datasets.NewEncoder(records.Schema(9), 8, 52)
	assert.Error(t, err)
	_, err = datasets.NewEncoder(records.SchemaLegacy, 0, 52)
	assert.Error(t, err)
}
