package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/studentSeq/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createSQLite(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "student_data.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

const legacyTable = `CREATE TABLE academic_records (
	student_id INTEGER, subject TEXT, week_number INTEGER, grade REAL,
	attendance INTEGER, absence_reason TEXT, club_attended INTEGER, event TEXT %s)`

func TestSQLiteSource_Legacy(t *testing.T) {
	path := createSQLite(t,
		fmt.Sprintf(legacyTable, ", target REAL"),
		`INSERT INTO academic_records VALUES
			(2, 'math', 1, 4.0, 1, NULL, 0, NULL, 0),
			(1, 'physics', 2, NULL, 0, 'illness', 1, 'olympiad', 1),
			(1, 'physics', 1, 5.0, 1, NULL, 1, NULL, NULL)`,
	)

	tables, err := (&SQLiteSource{Path: path}).ReadTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records.SchemaLegacy, tables.Schema)
	assert.True(t, tables.HasTarget)
	require.Len(t, tables.Academic, 3)

	// ordered by student, subject, week
	first := tables.Academic[0]
	assert.Equal(t, int64(1), first.StudentID)
	assert.Equal(t, 1, first.Week)
	assert.True(t, first.ClubAttended)
	assert.False(t, first.Target.Valid)

	second := tables.Academic[1]
	assert.False(t, second.Grade.Valid)
	assert.False(t, second.Attended)
	assert.Equal(t, sql.NullString{String: "illness", Valid: true}, second.AbsenceReason)
	assert.Equal(t, sql.NullString{String: "olympiad", Valid: true}, second.Event)
	assert.Equal(t, sql.NullFloat64{Float64: 1, Valid: true}, second.Target)

	assert.Equal(t, int64(2), tables.Academic[2].StudentID)
}

func TestSQLiteSource_LegacyWithoutTarget(t *testing.T) {
	path := createSQLite(t,
		fmt.Sprintf(legacyTable, ""),
		`INSERT INTO academic_records VALUES (1, 'math', 1, 4.0, 1, NULL, 0, NULL)`,
	)
	tables, err := (&SQLiteSource{Path: path, Schema: records.SchemaLegacy}).ReadTables(context.Background())
	require.NoError(t, err)
	assert.False(t, tables.HasTarget)
	require.Len(t, tables.Academic, 1)
	assert.False(t, tables.Academic[0].Target.Valid)
}

func TestSQLiteSource_Current(t *testing.T) {
	path := createSQLite(t,
		fmt.Sprintf(legacyTable, ""),
		`CREATE TABLE attendance (student_id INTEGER, subject TEXT, week_number INTEGER,
			day_number INTEGER, attended INTEGER, absence_reason TEXT)`,
		`CREATE TABLE grades (student_id INTEGER, subject TEXT, week_number INTEGER,
			day_number INTEGER, grade REAL)`,
		`CREATE TABLE clubs_events (student_id INTEGER, week_number INTEGER, day_number INTEGER,
			club TEXT, event TEXT, club_intensity REAL, total_club_hours INTEGER)`,
		`INSERT INTO attendance VALUES (1, 'math', 1, 2, 0, 'family'), (1, 'math', 1, 1, 1, NULL)`,
		`INSERT INTO grades VALUES (1, 'math', 1, 1, 5)`,
		`INSERT INTO clubs_events VALUES (1, 1, 1, 'arts', NULL, 0.5, 3), (1, 1, 2, NULL, NULL, NULL, NULL)`,
	)

	tables, err := (&SQLiteSource{Path: path}).ReadTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records.SchemaCurrent, tables.Schema, "current tables win over academic_records")
	assert.Empty(t, tables.Academic)

	require.Len(t, tables.Attendance, 2)
	assert.Equal(t, 1, tables.Attendance[0].Day)
	assert.True(t, tables.Attendance[0].Attended)
	assert.Equal(t, "family", tables.Attendance[1].AbsenceReason.String)

	require.Len(t, tables.Grades, 1)
	assert.Equal(t, 5.0, tables.Grades[0].Grade.Float64)

	require.Len(t, tables.ClubsEvents, 2)
	assert.Equal(t, "arts", tables.ClubsEvents[0].Club.String)
	assert.Equal(t, int64(3), tables.ClubsEvents[0].TotalClubHours.Int64)
	assert.False(t, tables.ClubsEvents[1].TotalClubHours.Valid)
}

func TestSQLiteSource_MissingColumn(t *testing.T) {
	path := createSQLite(t,
		`CREATE TABLE academic_records (student_id INTEGER, subject TEXT, week_number INTEGER, grade REAL)`,
	)
	_, err := (&SQLiteSource{Path: path}).ReadTables(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, records.ErrSchemaMismatch))
	assert.Contains(t, err.Error(), "attendance")
}

func TestSQLiteSource_NoKnownTables(t *testing.T) {
	path := createSQLite(t, `CREATE TABLE other (id INTEGER)`)
	_, err := (&SQLiteSource{Path: path}).ReadTables(context.Background())
	assert.True(t, errors.Is(err, records.ErrSchemaMismatch))
}

func TestSQLiteSource_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.db")
	_, err := (&SQLiteSource{Path: path}).ReadTables(context.Background())
	require.Error(t, err)
	assert.NoFileExists(t, path)
}
