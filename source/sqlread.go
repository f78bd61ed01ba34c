package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/Noofbiz/studentSeq/records"
)

// rowScanner is the common subset of *sql.Rows and pgx.Rows.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// tableReader is implemented per SQL backend.
type tableReader interface {
	tableNames(ctx context.Context) ([]string, error)
	columns(ctx context.Context, table string) ([]string, error)
	query(ctx context.Context, q string) (rowScanner, error)
}

// readSQLTables reads every table of the schema through r. A zero schema is
// detected from the table list.
func readSQLTables(ctx context.Context, r tableReader, schema records.Schema) (*records.Tables, error) {
	if schema == 0 {
		names, err := r.tableNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		if schema, err = DetectSchema(names); err != nil {
			return nil, err
		}
	}

	cols := make(map[string][]string)
	for _, table := range records.TablesFor(schema) {
		have, err := r.columns(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("%w: read columns of %s: %v", records.ErrSchemaMismatch, table, err)
		}
		if err := records.CheckColumns(table, have); err != nil {
			return nil, err
		}
		cols[table] = have
	}

	t := &records.Tables{Schema: schema}
	var err error
	switch schema {
	case records.SchemaLegacy:
		t.HasTarget = records.HasColumn(cols[records.TableAcademic], records.ColumnTarget)
		t.Academic, err = readAcademic(ctx, r, t.HasTarget)
	case records.SchemaCurrent:
		if t.Attendance, err = readAttendance(ctx, r); err != nil {
			break
		}
		if t.Grades, err = readGrades(ctx, r); err != nil {
			break
		}
		t.ClubsEvents, err = readClubsEvents(ctx, r)
	default:
		err = fmt.Errorf("%w: unsupported %s", records.ErrSchemaMismatch, schema)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func selectQuery(table string, cols []string, order string) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(cols, ", "), table, order)
}

func scanAll(ctx context.Context, r tableReader, q string, scan func(rowScanner) error) error {
	rows, err := r.query(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func readAcademic(ctx context.Context, r tableReader, withTarget bool) ([]records.RawEvent, error) {
	cols := records.RequiredColumns(records.TableAcademic)
	if withTarget {
		cols = append(cols, records.ColumnTarget)
	}
	q := selectQuery(records.TableAcademic, cols, "student_id, subject, week_number")

	var out []records.RawEvent
	err := scanAll(ctx, r, q, func(rows rowScanner) error {
		var (
			ev                   records.RawEvent
			week                 int64
			attendance, clubFlag flagValue
		)
		dest := []any{&ev.StudentID, &ev.Subject, &week, &ev.Grade, &attendance, &ev.AbsenceReason, &clubFlag, &ev.Event}
		if withTarget {
			dest = append(dest, &ev.Target)
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan %s: %w", records.TableAcademic, err)
		}
		ev.Week = int(week)
		ev.Attended = bool(attendance)
		ev.ClubAttended = bool(clubFlag)
		out = append(out, ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", records.TableAcademic, err)
	}
	return out, nil
}

func readAttendance(ctx context.Context, r tableReader) ([]records.AttendanceRow, error) {
	q := selectQuery(records.TableAttendance, records.RequiredColumns(records.TableAttendance),
		"student_id, subject, week_number, day_number")

	var out []records.AttendanceRow
	err := scanAll(ctx, r, q, func(rows rowScanner) error {
		var (
			row       records.AttendanceRow
			week, day int64
			attended  flagValue
		)
		if err := rows.Scan(&row.StudentID, &row.Subject, &week, &day, &attended, &row.AbsenceReason); err != nil {
			return fmt.Errorf("scan %s: %w", records.TableAttendance, err)
		}
		row.Week, row.Day = int(week), int(day)
		row.Attended = bool(attended)
		out = append(out, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", records.TableAttendance, err)
	}
	return out, nil
}

func readGrades(ctx context.Context, r tableReader) ([]records.GradeRow, error) {
	q := selectQuery(records.TableGrades, records.RequiredColumns(records.TableGrades),
		"student_id, subject, week_number, day_number")

	var out []records.GradeRow
	err := scanAll(ctx, r, q, func(rows rowScanner) error {
		var (
			row       records.GradeRow
			week, day int64
		)
		if err := rows.Scan(&row.StudentID, &row.Subject, &week, &day, &row.Grade); err != nil {
			return fmt.Errorf("scan %s: %w", records.TableGrades, err)
		}
		row.Week, row.Day = int(week), int(day)
		out = append(out, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", records.TableGrades, err)
	}
	return out, nil
}

func readClubsEvents(ctx context.Context, r tableReader) ([]records.ClubEventRow, error) {
	q := selectQuery(records.TableClubsEvents, records.RequiredColumns(records.TableClubsEvents),
		"student_id, week_number, day_number")

	var out []records.ClubEventRow
	err := scanAll(ctx, r, q, func(rows rowScanner) error {
		var (
			row       records.ClubEventRow
			week, day int64
		)
		if err := rows.Scan(&row.StudentID, &week, &day, &row.Club, &row.Event, &row.ClubIntensity, &row.TotalClubHours); err != nil {
			return fmt.Errorf("scan %s: %w", records.TableClubsEvents, err)
		}
		row.Week, row.Day = int(week), int(day)
		out = append(out, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", records.TableClubsEvents, err)
	}
	return out, nil
}
