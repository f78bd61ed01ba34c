package records

import (
	"database/sql"
	"fmt"
)

type subjectKey struct {
	student int64
	subject string
	week    int
	day     int
}

type timeKey struct {
	student int64
	week    int
	day     int
}

type gradeAgg struct {
	sum float64
	n   int
}

// Join merges the tables into one sorted row per (student, subject, week, day).
//
// For the current schema, attendance is left-joined with grades on the full
// key and then with clubs_events on (student, week, day); club data fans out
// to every subject sharing the time key. Duplicate keys are aggregated so the
// result never contains two rows with the same key.
func Join(t *Tables) ([]RawEvent, error) {
	if t == nil {
		return nil, fmt.Errorf("join: nil tables")
	}
	var out []RawEvent
	switch t.Schema {
	case SchemaLegacy:
		out = joinLegacy(t.Academic)
	case SchemaCurrent:
		out = joinCurrent(t.Attendance, t.Grades, t.ClubsEvents)
	default:
		return nil, fmt.Errorf("%w: cannot join tables of %s", ErrSchemaMismatch, t.Schema)
	}
	SortEvents(out)
	return out, nil
}

func joinLegacy(rows []RawEvent) []RawEvent {
	seen := make(map[subjectKey]struct{}, len(rows))
	out := make([]RawEvent, 0, len(rows))
	for _, r := range rows {
		k := subjectKey{r.StudentID, r.Subject, r.Week, 0}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		r.Day = 0
		out = append(out, r)
	}
	return out
}

func joinCurrent(attendance []AttendanceRow, grades []GradeRow, clubs []ClubEventRow) []RawEvent {
	gradeIdx := make(map[subjectKey]*gradeAgg, len(grades))
	for _, g := range grades {
		k := subjectKey{g.StudentID, g.Subject, g.Week, g.Day}
		agg, ok := gradeIdx[k]
		if !ok {
			agg = &gradeAgg{}
			gradeIdx[k] = agg
		}
		if g.Grade.Valid {
			agg.sum += g.Grade.Float64
			agg.n++
		}
	}

	clubIdx := make(map[timeKey]*ClubEventRow, len(clubs))
	intensityN := make(map[timeKey]int, len(clubs))
	for _, c := range clubs {
		k := timeKey{c.StudentID, c.Week, c.Day}
		agg, ok := clubIdx[k]
		if !ok {
			row := ClubEventRow{StudentID: c.StudentID, Week: c.Week, Day: c.Day}
			agg = &row
			clubIdx[k] = agg
		}
		mergeClubRow(agg, c, intensityN, k)
	}
	for k, n := range intensityN {
		if n > 1 {
			clubIdx[k].ClubIntensity.Float64 /= float64(n)
		}
	}

	seen := make(map[subjectKey]struct{}, len(attendance))
	out := make([]RawEvent, 0, len(attendance))
	for _, a := range attendance {
		k := subjectKey{a.StudentID, a.Subject, a.Week, a.Day}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		ev := RawEvent{
			StudentID:     a.StudentID,
			Subject:       a.Subject,
			Week:          a.Week,
			Day:           a.Day,
			Attended:      a.Attended,
			AbsenceReason: a.AbsenceReason,
		}
		if agg, ok := gradeIdx[k]; ok && agg.n > 0 {
			ev.Grade = sql.NullFloat64{Float64: agg.sum / float64(agg.n), Valid: true}
		}
		if c, ok := clubIdx[timeKey{a.StudentID, a.Week, a.Day}]; ok {
			ev.Club = c.Club
			ev.Event = c.Event
			ev.ClubIntensity = c.ClubIntensity
			ev.TotalClubHours = c.TotalClubHours
		}
		out = append(out, ev)
	}
	return out
}

// mergeClubRow folds c into agg: hours are summed, intensity accumulated for
// a later mean, and the first non-null club and event are kept.
func mergeClubRow(agg *ClubEventRow, c ClubEventRow, intensityN map[timeKey]int, k timeKey) {
	if !agg.Club.Valid && c.Club.Valid {
		agg.Club = c.Club
	}
	if !agg.Event.Valid && c.Event.Valid {
		agg.Event = c.Event
	}
	if c.TotalClubHours.Valid {
		agg.TotalClubHours.Int64 += c.TotalClubHours.Int64
		agg.TotalClubHours.Valid = true
	}
	if c.ClubIntensity.Valid {
		agg.ClubIntensity.Float64 += c.ClubIntensity.Float64
		agg.ClubIntensity.Valid = true
		intensityN[k]++
	}
}
