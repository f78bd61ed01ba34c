// Package records holds the raw per-student event tables, joins them into one
// row per (student, subject, week, day) and partitions students into
// disjoint train/test splits.
//
// The package is encoding-agnostic: categorical values stay strings here and
// are only turned into codes by the datasets package.
package records

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSchemaMismatch is returned when a source table lacks a required column
// or when no known schema version can be recognised.
var ErrSchemaMismatch = errors.New("schema mismatch")

// Schema identifies the layout of the input tables.
type Schema int

const (
	// SchemaLegacy is the single academic_records table with a weekly grain.
	SchemaLegacy Schema = 1
	// SchemaCurrent is the attendance, grades and clubs_events tables with a daily grain.
	SchemaCurrent Schema = 2
)

func (s Schema) String() string {
	switch s {
	case SchemaLegacy:
		return "legacy"
	case SchemaCurrent:
		return "current"
	default:
		return fmt.Sprintf("schema(%d)", int(s))
	}
}

// ParseSchema accepts "legacy" or "current". The empty string yields the zero
// Schema, meaning "detect from the source".
func ParseSchema(s string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, nil
	case "legacy":
		return SchemaLegacy, nil
	case "current":
		return SchemaCurrent, nil
	default:
		return 0, fmt.Errorf("unknown schema %q", s)
	}
}

// Table names.
const (
	TableAcademic    = "academic_records"
	TableAttendance  = "attendance"
	TableGrades      = "grades"
	TableClubsEvents = "clubs_events"
)

// ColumnTarget is the optional precomputed risk flag of the legacy table.
const ColumnTarget = "target"

var requiredColumns = map[string][]string{
	TableAcademic:    {"student_id", "subject", "week_number", "grade", "attendance", "absence_reason", "club_attended", "event"},
	TableAttendance:  {"student_id", "subject", "week_number", "day_number", "attended", "absence_reason"},
	TableGrades:      {"student_id", "subject", "week_number", "day_number", "grade"},
	TableClubsEvents: {"student_id", "week_number", "day_number", "club", "event", "club_intensity", "total_club_hours"},
}

// RequiredColumns lists the columns a table must expose, in read order.
func RequiredColumns(table string) []string {
	cols := requiredColumns[table]
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}

// TablesFor lists the tables read for a schema version.
func TablesFor(schema Schema) []string {
	switch schema {
	case SchemaLegacy:
		return []string{TableAcademic}
	case SchemaCurrent:
		return []string{TableAttendance, TableGrades, TableClubsEvents}
	default:
		return nil
	}
}

// NormalizeColumn lower-cases and trims a column header.
func NormalizeColumn(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

// CheckColumns verifies that every required column of table is in have.
func CheckColumns(table string, have []string) error {
	required, ok := requiredColumns[table]
	if !ok {
		return fmt.Errorf("%w: unknown table %q", ErrSchemaMismatch, table)
	}
	present := make(map[string]bool, len(have))
	for _, c := range have {
		present[NormalizeColumn(c)] = true
	}
	for _, col := range required {
		if !present[col] {
			return fmt.Errorf("%w: required column %q not found in table %s", ErrSchemaMismatch, col, table)
		}
	}
	return nil
}

// HasColumn reports whether name is among have, ignoring case.
func HasColumn(have []string, name string) bool {
	for _, c := range have {
		if NormalizeColumn(c) == name {
			return true
		}
	}
	return false
}

// RawEvent is one joined (student, subject, week, day) observation. Day is 0
// for the legacy weekly schema.
type RawEvent struct {
	StudentID      int64
	Subject        string
	Week           int
	Day            int
	Attended       bool
	Grade          sql.NullFloat64
	AbsenceReason  sql.NullString
	ClubAttended   bool
	Club           sql.NullString
	Event          sql.NullString
	ClubIntensity  sql.NullFloat64
	TotalClubHours sql.NullInt64
	Target         sql.NullFloat64
}

// AttendanceRow is a row of the attendance table.
type AttendanceRow struct {
	StudentID     int64
	Subject       string
	Week          int
	Day           int
	Attended      bool
	AbsenceReason sql.NullString
}

// GradeRow is a row of the grades table.
type GradeRow struct {
	StudentID int64
	Subject   string
	Week      int
	Day       int
	Grade     sql.NullFloat64
}

// ClubEventRow is a row of the clubs_events table. It is not subject specific.
type ClubEventRow struct {
	StudentID      int64
	Week           int
	Day            int
	Club           sql.NullString
	Event          sql.NullString
	ClubIntensity  sql.NullFloat64
	TotalClubHours sql.NullInt64
}

// Tables is everything a source read in one acquisition.
type Tables struct {
	Schema Schema

	// Academic holds the legacy rows. HasTarget is false when the table had no
	// target column and flags must be derived.
	Academic  []RawEvent
	HasTarget bool

	Attendance  []AttendanceRow
	Grades      []GradeRow
	ClubsEvents []ClubEventRow
}

// Rows returns the number of rows read across all tables.
func (t *Tables) Rows() int {
	return len(t.Academic) + len(t.Attendance) + len(t.Grades) + len(t.ClubsEvents)
}

func compareEvents(a, b *RawEvent) bool {
	if a.StudentID != b.StudentID {
		return a.StudentID < b.StudentID
	}
	if a.Subject != b.Subject {
		return a.Subject < b.Subject
	}
	if a.Week != b.Week {
		return a.Week < b.Week
	}
	return a.Day < b.Day
}

// SortEvents orders events by (student, subject, week, day) in place.
func SortEvents(events []RawEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareEvents(&events[i], &events[j])
	})
}

// SameSeries reports whether a and b belong to the same (student, subject) series.
func SameSeries(a, b *RawEvent) bool {
	return a.StudentID == b.StudentID && a.Subject == b.Subject
}
