package datasets_test

import (
	"context"
	"database/sql"

	"github.com/Noofbiz/studentSeq/records"
)

func nf(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }
func ns(s string) sql.NullString   { return sql.NullString{String: s, Valid: true} }

// weekly builds a legacy (student, subject) series of weeks 1..n whose grade
// at week w is grade(w) and whose target is 1 on odd weeks.
func weekly(student int64, subject string, n int, grade func(week int) float64) []records.RawEvent {
	out := make([]records.RawEvent, n)
	for i := range out {
		w := i + 1
		out[i] = records.RawEvent{
			StudentID: student,
			Subject:   subject,
			Week:      w,
			Attended:  w%3 != 0,
			Grade:     nf(grade(w)),
			Target:    nf(float64(w % 2)),
		}
	}
	return out
}

func constGrade(v float64) func(int) float64 { return func(int) float64 { return v } }

// fakeSource returns fixed tables, or err.
type fakeSource struct {
	tables *records.Tables
	err    error
	calls  int
}

func (f *fakeSource) ReadTables(context.Context) (*records.Tables, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	// Load mutates joined events, never the tables; hand out a copy anyway so
	// repeated loads see identical input.
	t := *f.tables
	t.Academic = append([]records.RawEvent(nil), f.tables.Academic...)
	return &t, nil
}

func legacyTables(students int, withTarget bool) *records.Tables {
	t := &records.Tables{Schema: records.SchemaLegacy, HasTarget: withTarget}
	for s := int64(1); s <= int64(students); s++ {
		for _, subject := range []string{"math", "physics"} {
			rows := weekly(s, subject, 12, func(w int) float64 { return float64(5 - w%3) })
			if !withTarget {
				for i := range rows {
					rows[i].Target = sql.NullFloat64{}
				}
			}
			t.Academic = append(t.Academic, rows...)
		}
	}
	return t
}

func currentTables(students int) *records.Tables {
	t := &records.Tables{Schema: records.SchemaCurrent}
	for s := int64(1); s <= int64(students); s++ {
		for week := 1; week <= 3; week++ {
			for day := 1; day <= 4; day++ {
				t.Attendance = append(t.Attendance, records.AttendanceRow{
					StudentID: s, Subject: "math", Week: week, Day: day, Attended: day != 2,
				})
				t.Grades = append(t.Grades, records.GradeRow{
					StudentID: s, Subject: "math", Week: week, Day: day, Grade: nf(float64(2 + day%4)),
				})
				t.ClubsEvents = append(t.ClubsEvents, records.ClubEventRow{
					StudentID: s, Week: week, Day: day,
					Club:           ns("science"),
					ClubIntensity:  nf(0.5),
					TotalClubHours: sql.NullInt64{Int64: 1, Valid: true},
				})
			}
		}
	}
	return t
}
