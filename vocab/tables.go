package vocab

import "fmt"

// Schema versions understood by ForSchema. They mirror records.Schema values
// without importing that package.
const (
	SchemaLegacy  = 1
	SchemaCurrent = 2
)

// ClubFlagSize is the number of codes for the legacy club_attended flag.
const ClubFlagSize = 2

var (
	// Subject codes. Subjects are never null in either schema.
	Subject = MustNew("subject",
		[]string{"math", "russian", "physics", "literature", "biology", "other"},
		"other")

	// AbsenceReason codes; null means the student attended.
	AbsenceReason = MustNew("absence_reason",
		[]string{NullKey, "illness", "competition", "family", "other", "camp"},
		"other")

	// Event codes.
	Event = MustNew("event",
		[]string{NullKey, "olympiad", "competition", "camp", "illness", "other"},
		"other")

	// Club codes used by the three-table schema.
	Club = MustNew("club",
		[]string{NullKey, "none", "science", "arts", "sports", "other"},
		"other")
)

// Set groups the vocabularies used to encode one schema version. A nil Club
// means clubs are encoded as a 0/1 flag.
type Set struct {
	Subject *Vocabulary
	Absence *Vocabulary
	Event   *Vocabulary
	Club    *Vocabulary
}

// LegacySet is the vocabulary set for the single academic_records table.
func LegacySet() Set {
	return Set{Subject: Subject, Absence: AbsenceReason, Event: Event}
}

// CurrentSet is the vocabulary set for the attendance/grades/clubs_events tables.
func CurrentSet() Set {
	return Set{Subject: Subject, Absence: AbsenceReason, Event: Event, Club: Club}
}

// ForSchema returns the set for a schema version.
func ForSchema(schema int) (Set, error) {
	switch schema {
	case SchemaLegacy:
		return LegacySet(), nil
	case SchemaCurrent:
		return CurrentSet(), nil
	default:
		return Set{}, fmt.Errorf("vocab: unknown schema version %d", schema)
	}
}

// ClubSize is the number of club codes the set produces.
func (s Set) ClubSize() int {
	if s.Club == nil {
		return ClubFlagSize
	}
	return s.Club.Size()
}
