package source

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Noofbiz/studentSeq/records"
)

// CSVSource reads one <table>.csv file per table from Dir. A zero Schema is
// detected from the files present.
type CSVSource struct {
	Dir    string
	Schema records.Schema
}

func (s *CSVSource) path(table string) string {
	return filepath.Join(s.Dir, table+".csv")
}

func (s *CSVSource) detect() (records.Schema, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return 0, fmt.Errorf("read dir %s: %w", s.Dir, err)
	}
	var tables []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".csv" {
			continue
		}
		tables = append(tables, e.Name()[:len(e.Name())-len(".csv")])
	}
	return DetectSchema(tables)
}

// ReadTables reads every table file of the schema.
func (s *CSVSource) ReadTables(ctx context.Context) (*records.Tables, error) {
	schema := s.Schema
	if schema == 0 {
		var err error
		if schema, err = s.detect(); err != nil {
			return nil, err
		}
	}

	t := &records.Tables{Schema: schema}
	for _, table := range records.TablesFor(schema) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.readTable(table, t); err != nil {
			return nil, fmt.Errorf("csv %s: %w", s.path(table), err)
		}
	}
	return t, nil
}

// csvTable is an opened table file with its column index.
type csvTable struct {
	reader   *csv.Reader
	colIndex map[string]int
	line     int
}

func (c *csvTable) next() ([]string, error) {
	rec, err := c.reader.Read()
	if err == nil {
		c.line++
	}
	return rec, err
}

func (c *csvTable) cell(rec []string, col string) string {
	idx, ok := c.colIndex[col]
	if !ok || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

func (s *CSVSource) readTable(table string, t *records.Tables) error {
	f, err := os.Open(s.path(table))
	if err != nil {
		return err
	}
	defer f.Close()

	c := &csvTable{reader: csv.NewReader(f), colIndex: make(map[string]int), line: 1}
	c.reader.FieldsPerRecord = -1
	header, err := c.reader.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	for i, col := range header {
		c.colIndex[records.NormalizeColumn(col)] = i
	}
	if err := records.CheckColumns(table, header); err != nil {
		return err
	}

	switch table {
	case records.TableAcademic:
		t.HasTarget = records.HasColumn(header, records.ColumnTarget)
		t.Academic, err = readAcademicCSV(c, t.HasTarget)
	case records.TableAttendance:
		t.Attendance, err = readAttendanceCSV(c)
	case records.TableGrades:
		t.Grades, err = readGradesCSV(c)
	case records.TableClubsEvents:
		t.ClubsEvents, err = readClubsEventsCSV(c)
	}
	return err
}

// eachRow calls fn per data row and prefixes errors with the line number.
func eachRow(c *csvTable, fn func(rec []string) error) error {
	for {
		rec, err := c.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return fmt.Errorf("line %d: %w", c.line, err)
		}
	}
}

type cellParser struct {
	c   *csvTable
	rec []string
	err error
}

func (p *cellParser) fail(col string, err error) {
	if p.err == nil && err != nil {
		p.err = fmt.Errorf("column %s: %w", col, err)
	}
}

func (p *cellParser) id(col string) int64 {
	v, err := parseInt64(p.c.cell(p.rec, col))
	p.fail(col, err)
	return v
}

func (p *cellParser) num(col string) int {
	v, err := parseInt(p.c.cell(p.rec, col))
	p.fail(col, err)
	return v
}

func (p *cellParser) flag(col string) bool {
	v, err := parseFlag(p.c.cell(p.rec, col))
	p.fail(col, err)
	return v
}

func (p *cellParser) float(col string) sql.NullFloat64 {
	v, err := parseNullFloat(p.c.cell(p.rec, col))
	p.fail(col, err)
	return v
}

func (p *cellParser) nullInt(col string) sql.NullInt64 {
	v, err := parseNullInt(p.c.cell(p.rec, col))
	p.fail(col, err)
	return v
}

func (p *cellParser) str(col string) sql.NullString {
	return parseNullString(p.c.cell(p.rec, col))
}

func (p *cellParser) subject() string {
	s := p.str("subject")
	if !s.Valid {
		p.fail("subject", errors.New("empty"))
	}
	return s.String
}

func readAcademicCSV(c *csvTable, withTarget bool) ([]records.RawEvent, error) {
	var out []records.RawEvent
	err := eachRow(c, func(rec []string) error {
		p := &cellParser{c: c, rec: rec}
		ev := records.RawEvent{
			StudentID:     p.id("student_id"),
			Subject:       p.subject(),
			Week:          p.num("week_number"),
			Grade:         p.float("grade"),
			Attended:      p.flag("attendance"),
			AbsenceReason: p.str("absence_reason"),
			ClubAttended:  p.flag("club_attended"),
			Event:         p.str("event"),
		}
		if withTarget {
			ev.Target = p.float(records.ColumnTarget)
		}
		if p.err != nil {
			return p.err
		}
		out = append(out, ev)
		return nil
	})
	return out, err
}

func readAttendanceCSV(c *csvTable) ([]records.AttendanceRow, error) {
	var out []records.AttendanceRow
	err := eachRow(c, func(rec []string) error {
		p := &cellParser{c: c, rec: rec}
		row := records.AttendanceRow{
			StudentID:     p.id("student_id"),
			Subject:       p.subject(),
			Week:          p.num("week_number"),
			Day:           p.num("day_number"),
			Attended:      p.flag("attended"),
			AbsenceReason: p.str("absence_reason"),
		}
		if p.err != nil {
			return p.err
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

func readGradesCSV(c *csvTable) ([]records.GradeRow, error) {
	var out []records.GradeRow
	err := eachRow(c, func(rec []string) error {
		p := &cellParser{c: c, rec: rec}
		row := records.GradeRow{
			StudentID: p.id("student_id"),
			Subject:   p.subject(),
			Week:      p.num("week_number"),
			Day:       p.num("day_number"),
			Grade:     p.float("grade"),
		}
		if p.err != nil {
			return p.err
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

func readClubsEventsCSV(c *csvTable) ([]records.ClubEventRow, error) {
	var out []records.ClubEventRow
	err := eachRow(c, func(rec []string) error {
		p := &cellParser{c: c, rec: rec}
		row := records.ClubEventRow{
			StudentID:      p.id("student_id"),
			Week:           p.num("week_number"),
			Day:            p.num("day_number"),
			Club:           p.str("club"),
			Event:          p.str("event"),
			ClubIntensity:  p.float("club_intensity"),
			TotalClubHours: p.nullInt("total_club_hours"),
		}
		if p.err != nil {
			return p.err
		}
		out = append(out, row)
		return nil
	})
	return out, err
}
