// Package vocab maps categorical record values (subjects, absence reasons,
// clubs, events) to the dense integer codes consumed by the sequence model.
//
// Every Vocabulary carries a fallback value so that lookups never fail: a
// value outside the closed key set resolves to the fallback code. A vocabulary
// may also carry a null sentinel (NullKey) that missing values map to.
package vocab

import (
	"database/sql"
	"errors"
	"fmt"
)

// NullKey is the key used for the null sentinel entry of a vocabulary.
const NullKey = ""

// ErrUnknownCode is returned by Decode for codes outside [0, Size()).
var ErrUnknownCode = errors.New("vocab: unknown code")

// Vocabulary is a closed mapping from categorical value to dense code.
type Vocabulary struct {
	name     string
	values   []string
	index    map[string]int
	nullCode int
	fallback int
}

// New builds a vocabulary whose codes are the positions of values. Including
// NullKey in values enables the null sentinel. fallback must be one of values.
func New(name string, values []string, fallback string) (*Vocabulary, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("vocab %s: no values", name)
	}
	v := &Vocabulary{
		name:     name,
		values:   make([]string, len(values)),
		index:    make(map[string]int, len(values)),
		nullCode: -1,
	}
	copy(v.values, values)
	for code, value := range values {
		if _, dup := v.index[value]; dup {
			return nil, fmt.Errorf("vocab %s: duplicate value %q", name, value)
		}
		v.index[value] = code
		if value == NullKey {
			v.nullCode = code
		}
	}
	code, ok := v.index[fallback]
	if !ok || fallback == NullKey {
		return nil, fmt.Errorf("vocab %s: fallback %q is not a non-null value", name, fallback)
	}
	v.fallback = code
	return v, nil
}

// MustNew is like New but panics on error. Intended for package-level tables.
func MustNew(name string, values []string, fallback string) *Vocabulary {
	v, err := New(name, values, fallback)
	if err != nil {
		panic(err)
	}
	return v
}

// Name returns the vocabulary name.
func (v *Vocabulary) Name() string { return v.name }

// Size is the number of codes, i.e. the embedding table size.
func (v *Vocabulary) Size() int { return len(v.values) }

// FallbackCode is the code unseen values resolve to.
func (v *Vocabulary) FallbackCode() int { return v.fallback }

// NullCode returns the null sentinel code, or the fallback code when the
// vocabulary has no null sentinel.
func (v *Vocabulary) NullCode() int {
	if v.nullCode < 0 {
		return v.fallback
	}
	return v.nullCode
}

// HasNull reports whether the vocabulary defines a null sentinel.
func (v *Vocabulary) HasNull() bool { return v.nullCode >= 0 }

// Has reports whether value is part of the closed key set.
func (v *Vocabulary) Has(value string) bool {
	_, ok := v.index[value]
	return ok
}

// Code returns the code for value. The empty string is treated as missing.
func (v *Vocabulary) Code(value string) int {
	if value == NullKey {
		return v.NullCode()
	}
	if code, ok := v.index[value]; ok {
		return code
	}
	return v.fallback
}

// Lookup is Code for nullable values read from storage.
func (v *Vocabulary) Lookup(value sql.NullString) int {
	if !value.Valid {
		return v.NullCode()
	}
	return v.Code(value.String)
}

// Decode returns the value stored at code. The null sentinel decodes to NullKey.
func (v *Vocabulary) Decode(code int) (string, error) {
	if code < 0 || code >= len(v.values) {
		return "", fmt.Errorf("%w: %d not in vocabulary %s of size %d", ErrUnknownCode, code, v.name, len(v.values))
	}
	return v.values[code], nil
}

// Values returns a copy of the values ordered by code.
func (v *Vocabulary) Values() []string {
	out := make([]string, len(v.values))
	copy(out, v.values)
	return out
}
