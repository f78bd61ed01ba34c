package source

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/studentSeq/config"
	"github.com/Noofbiz/studentSeq/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir, table, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, table+".csv"), []byte(content), 0o644))
}

func TestCSVSource_Legacy(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, records.TableAcademic, `Student_ID,subject,week_number,grade,attendance,absence_reason,club_attended,event
1,math,1,4.5,1,,0,
1,math,2,,0.0,illness,1.0,olympiad
`)
	tables, err := (&CSVSource{Dir: dir}).ReadTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records.SchemaLegacy, tables.Schema)
	assert.False(t, tables.HasTarget)
	require.Len(t, tables.Academic, 2)

	assert.Equal(t, sql.NullFloat64{Float64: 4.5, Valid: true}, tables.Academic[0].Grade)
	assert.True(t, tables.Academic[0].Attended)
	assert.False(t, tables.Academic[0].AbsenceReason.Valid, "empty cell is NULL")

	assert.False(t, tables.Academic[1].Grade.Valid)
	assert.False(t, tables.Academic[1].Attended)
	assert.True(t, tables.Academic[1].ClubAttended)
	assert.Equal(t, "olympiad", tables.Academic[1].Event.String)
}

func TestCSVSource_Current(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, records.TableAttendance, "student_id,subject,week_number,day_number,attended,absence_reason\n1,math,1,1,true,\n")
	writeCSV(t, dir, records.TableGrades, "student_id,subject,week_number,day_number,grade\n1,math,1,1,3\n")
	writeCSV(t, dir, records.TableClubsEvents, "student_id,week_number,day_number,club,event,club_intensity,total_club_hours\n1,1,1,sports,,0.25,2.0\n")

	tables, err := (&CSVSource{Dir: dir}).ReadTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, records.SchemaCurrent, tables.Schema)
	require.Len(t, tables.Attendance, 1)
	assert.True(t, tables.Attendance[0].Attended)
	require.Len(t, tables.Grades, 1)
	assert.Equal(t, 3.0, tables.Grades[0].Grade.Float64)
	require.Len(t, tables.ClubsEvents, 1)
	assert.Equal(t, sql.NullInt64{Int64: 2, Valid: true}, tables.ClubsEvents[0].TotalClubHours)
	assert.False(t, tables.ClubsEvents[0].Event.Valid)
}

func TestCSVSource_Errors(t *testing.T) {
	t.Run("missing column", func(t *testing.T) {
		dir := t.TempDir()
		writeCSV(t, dir, records.TableAcademic, "student_id,subject,week_number\n1,math,1\n")
		_, err := (&CSVSource{Dir: dir}).ReadTables(context.Background())
		assert.True(t, errors.Is(err, records.ErrSchemaMismatch))
	})
	t.Run("bad student id", func(t *testing.T) {
		dir := t.TempDir()
		writeCSV(t, dir, records.TableAcademic, `student_id,subject,week_number,grade,attendance,absence_reason,club_attended,event
abc,math,1,4,1,,0,
`)
		_, err := (&CSVSource{Dir: dir}).ReadTables(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
		assert.Contains(t, err.Error(), "student_id")
	})
	t.Run("no tables", func(t *testing.T) {
		_, err := (&CSVSource{Dir: t.TempDir()}).ReadTables(context.Background())
		assert.True(t, errors.Is(err, records.ErrSchemaMismatch))
	})
	t.Run("explicit schema with missing file", func(t *testing.T) {
		_, err := (&CSVSource{Dir: t.TempDir(), Schema: records.SchemaCurrent}).ReadTables(context.Background())
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
}

func TestOpen(t *testing.T) {
	src, err := Open(config.SourceConf{Driver: "CSV", Path: "data", Schema: "legacy"})
	require.NoError(t, err)
	assert.Equal(t, &CSVSource{Dir: "data", Schema: records.SchemaLegacy}, src)

	src, err = Open(config.SourceConf{Driver: "sqlite", Path: "x.db"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteSource{}, src)

	src, err = Open(config.SourceConf{Driver: "postgres", DSN: "postgres://localhost/school"})
	require.NoError(t, err)
	assert.IsType(t, &PostgresSource{}, src)

	_, err = Open(config.SourceConf{Driver: "mysql"})
	assert.Error(t, err)
	_, err = Open(config.SourceConf{Driver: "csv", Schema: "v9"})
	assert.Error(t, err)
}
