package records

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrUnknownSplit is returned by ParseSplit for anything but train or test.
var ErrUnknownSplit = errors.New("unknown split")

// Split names one side of the student partition.
type Split string

const (
	SplitTrain Split = "train"
	SplitTest  Split = "test"
)

// ParseSplit parses "train" or "test".
func ParseSplit(s string) (Split, error) {
	switch Split(strings.ToLower(strings.TrimSpace(s))) {
	case SplitTrain:
		return SplitTrain, nil
	case SplitTest:
		return SplitTest, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSplit, s)
	}
}

// splitNamespace seeds the name-based fingerprints of split assignments.
var splitNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Noofbiz/studentSeq/split"))

// Assignment partitions a student id set into disjoint train and test sides.
type Assignment struct {
	train    []int64
	test     []int64
	trainSet map[int64]struct{}
	testSet  map[int64]struct{}
}

// StudentIDs returns the distinct student ids of events in ascending order.
func StudentIDs(events []RawEvent) []int64 {
	set := make(map[int64]struct{})
	for i := range events {
		set[events[i].StudentID] = struct{}{}
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AssignSplit sorts and deduplicates ids, shuffles them with rng and cuts the
// permutation at floor(N*(1-testRatio)): ids before the cut are train, the
// rest test. The same seed on rng always yields the same assignment.
func AssignSplit(ids []int64, testRatio float64, rng *rand.Rand) (*Assignment, error) {
	if rng == nil {
		return nil, errors.New("split: nil random generator")
	}
	if math.IsNaN(testRatio) || testRatio < 0 || testRatio > 1 {
		return nil, fmt.Errorf("split: test ratio %v outside [0, 1]", testRatio)
	}

	uniq := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	rng.Shuffle(len(uniq), func(i, j int) {
		uniq[i], uniq[j] = uniq[j], uniq[i]
	})

	cut := int(math.Floor(float64(len(uniq)) * (1 - testRatio)))
	a := &Assignment{
		train:    uniq[:cut:cut],
		test:     uniq[cut:],
		trainSet: make(map[int64]struct{}, cut),
		testSet:  make(map[int64]struct{}, len(uniq)-cut),
	}
	for _, id := range a.train {
		a.trainSet[id] = struct{}{}
	}
	for _, id := range a.test {
		a.testSet[id] = struct{}{}
	}
	return a, nil
}

// Train returns the train ids in permutation order.
func (a *Assignment) Train() []int64 { return append([]int64(nil), a.train...) }

// Test returns the test ids in permutation order.
func (a *Assignment) Test() []int64 { return append([]int64(nil), a.test...) }

// IDs returns the ids of one side.
func (a *Assignment) IDs(s Split) ([]int64, error) {
	switch s {
	case SplitTrain:
		return a.Train(), nil
	case SplitTest:
		return a.Test(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSplit, string(s))
	}
}

// Contains reports whether id was assigned to side s.
func (a *Assignment) Contains(s Split, id int64) bool {
	switch s {
	case SplitTrain:
		_, ok := a.trainSet[id]
		return ok
	case SplitTest:
		_, ok := a.testSet[id]
		return ok
	default:
		return false
	}
}

// Fingerprint is a name-based UUID of one side's ordered ids. Two loads with
// the same data, seed and ratio produce the same fingerprint.
func (a *Assignment) Fingerprint(s Split) uuid.UUID {
	ids := a.train
	if s == SplitTest {
		ids = a.test
	}
	var b strings.Builder
	b.WriteString(string(s))
	for _, id := range ids {
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return uuid.NewSHA1(splitNamespace, []byte(b.String()))
}

// Filter keeps the events whose student was assigned to side s.
func Filter(events []RawEvent, a *Assignment, s Split) []RawEvent {
	out := make([]RawEvent, 0, len(events))
	for i := range events {
		if a.Contains(s, events[i].StudentID) {
			out = append(out, events[i])
		}
	}
	return out
}
