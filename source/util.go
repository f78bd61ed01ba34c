package source

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// CSV cells are NULL when empty.

func parseInt64(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	// pandas writes integer columns holding NULLs as floats
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int64(f), nil
}

func parseInt(s string) (int, error) {
	v, err := parseInt64(s)
	return int(v), err
}

func parseNullFloat(s string) (sql.NullFloat64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullFloat64{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}, err
	}
	return sql.NullFloat64{Float64: v, Valid: true}, nil
}

func parseNullInt(s string) (sql.NullInt64, error) {
	if strings.TrimSpace(s) == "" {
		return sql.NullInt64{}, nil
	}
	v, err := parseInt64(s)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: v, Valid: true}, nil
}

func parseNullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// parseFlag accepts 0/1 in integer or float form and true/false. Empty is false.
func parseFlag(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false, fmt.Errorf("%q is not a flag", s)
	}
	return f != 0, nil
}

// flagValue scans a 0/1 or boolean column. pgx hands BOOLEAN columns over as
// bool, SQLite as int64. NULL is false.
type flagValue bool

func (f *flagValue) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = false
	case bool:
		*f = flagValue(v)
	case int64:
		*f = v != 0
	case int32:
		*f = v != 0
	case float64:
		*f = v != 0
	case []byte:
		b, err := parseFlag(string(v))
		if err != nil {
			return err
		}
		*f = flagValue(b)
	case string:
		b, err := parseFlag(v)
		if err != nil {
			return err
		}
		*f = flagValue(b)
	default:
		return fmt.Errorf("cannot scan %T into a flag", src)
	}
	return nil
}
