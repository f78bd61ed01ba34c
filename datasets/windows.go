package datasets

import (
	"fmt"
	"strings"

	"github.com/Noofbiz/studentSeq/records"
)

// TargetMode selects what the label row contributes as the training target.
type TargetMode int

const (
	// TargetRiskFlag uses the label row's binary risk flag (records.RawEvent.Target).
	TargetRiskFlag TargetMode = iota + 1
	// TargetNextGrade uses the label row's grade as a regression target.
	TargetNextGrade
)

func (m TargetMode) String() string {
	switch m {
	case TargetRiskFlag:
		return "risk"
	case TargetNextGrade:
		return "next_grade"
	default:
		return fmt.Sprintf("target(%d)", int(m))
	}
}

// ParseTargetMode accepts "risk" or "next_grade". The empty string yields the
// zero mode, meaning the schema default.
func ParseTargetMode(s string) (TargetMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, nil
	case "risk":
		return TargetRiskFlag, nil
	case "next_grade":
		return TargetNextGrade, nil
	default:
		return 0, fmt.Errorf("unknown target mode %q", s)
	}
}

// DefaultTargetMode is the risk flag for the legacy schema and the next grade
// for the current one.
func DefaultTargetMode(schema records.Schema) TargetMode {
	if schema == records.SchemaLegacy {
		return TargetRiskFlag
	}
	return TargetNextGrade
}

// AuxScalars are per-window aggregates of the club columns.
type AuxScalars struct {
	TotalClubHours float32
	ClubIntensity  float32
}

// AuxFeatures is the number of values in AuxScalars.
const AuxFeatures = 2

// Window is seqLen consecutive steps of one (student, subject) series and the
// row right after them. Steps and Label point into the builder's sorted arena
// and must not be modified.
type Window struct {
	StudentID int64
	Subject   string
	Steps     []records.RawEvent
	Label     *records.RawEvent
	Target    float32
	Aux       *AuxScalars
}

// BuildStats counts what BuildWindows saw and dropped.
type BuildStats struct {
	Groups         int
	ShortGroups    int
	MissingTargets int
	Windows        int
}

// labelTarget returns the label row's target under mode, or false when it is
// undefined.
func labelTarget(ev *records.RawEvent, mode TargetMode) (float32, bool) {
	var v float64
	var ok bool
	switch mode {
	case TargetRiskFlag:
		v, ok = ev.Target.Float64, ev.Target.Valid
	case TargetNextGrade:
		v, ok = ev.Grade.Float64, ev.Grade.Valid
	}
	return float32(v), ok
}

func windowAux(steps []records.RawEvent) *AuxScalars {
	var hours, intensity float64
	n := 0
	for i := range steps {
		if steps[i].TotalClubHours.Valid {
			hours += float64(steps[i].TotalClubHours.Int64)
		}
		if steps[i].ClubIntensity.Valid {
			intensity += steps[i].ClubIntensity.Float64
			n++
		}
	}
	if n > 0 {
		intensity /= float64(n)
	}
	return &AuxScalars{TotalClubHours: float32(hours), ClubIntensity: float32(intensity)}
}

// BuildWindows groups events by (student, subject), orders each group by
// (week, day) and emits one window per offset in [0, N-seqLen). Groups shorter
// than seqLen+1 and windows whose label target is undefined are skipped and
// counted in the stats. The input slice is not modified.
func BuildWindows(events []records.RawEvent, seqLen int, mode TargetMode) ([]Window, BuildStats, error) {
	var stats BuildStats
	if seqLen < 1 {
		return nil, stats, fmt.Errorf("sequence length must be positive, got %d", seqLen)
	}
	if mode != TargetRiskFlag && mode != TargetNextGrade {
		return nil, stats, fmt.Errorf("unsupported %s", mode)
	}

	arena := make([]records.RawEvent, len(events))
	copy(arena, events)
	records.SortEvents(arena)

	var windows []Window
	for start := 0; start < len(arena); {
		end := start + 1
		for end < len(arena) && records.SameSeries(&arena[start], &arena[end]) {
			end++
		}
		stats.Groups++

		group := arena[start:end:end]
		if len(group) < seqLen+1 {
			stats.ShortGroups++
			start = end
			continue
		}
		for i := 0; i < len(group)-seqLen; i++ {
			label := &group[i+seqLen]
			target, ok := labelTarget(label, mode)
			if !ok {
				stats.MissingTargets++
				continue
			}
			steps := group[i : i+seqLen : i+seqLen]
			windows = append(windows, Window{
				StudentID: label.StudentID,
				Subject:   label.Subject,
				Steps:     steps,
				Label:     label,
				Target:    target,
				Aux:       windowAux(steps),
			})
		}
		start = end
	}
	stats.Windows = len(windows)
	return windows, stats, nil
}
