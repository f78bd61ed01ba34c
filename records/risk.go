package records

import (
	"database/sql"
	"fmt"
	"sort"
)

// RiskRule derives the binary risk target: a step is flagged when the mean
// grade of the RecentWeeks steps ending at it (the step itself included) is
// more than Threshold below the mean of the PriorWeeks steps preceding those.
// Spans count steps of the series, which are weeks for the legacy schema and
// (week, day) rows for the current one.
type RiskRule struct {
	RecentWeeks int     `yaml:"recent_weeks"`
	PriorWeeks  int     `yaml:"prior_weeks"`
	Threshold   float64 `yaml:"threshold"`
}

// DefaultRiskRule compares the last 2 weeks against the 4 before with a 0.3 drop.
func DefaultRiskRule() RiskRule {
	return RiskRule{RecentWeeks: 2, PriorWeeks: 4, Threshold: 0.3}
}

// Validate rejects non-positive spans.
func (r RiskRule) Validate() error {
	if r.RecentWeeks < 1 || r.PriorWeeks < 1 {
		return fmt.Errorf("risk rule: spans must be positive, got recent=%d prior=%d", r.RecentWeeks, r.PriorWeeks)
	}
	return nil
}

// Warmup is the number of leading steps that always get flag 0.
func (r RiskRule) Warmup() int { return r.RecentWeeks + r.PriorWeeks }

// Flags computes one flag per step of a time-ordered grade series. Steps
// inside the warm-up are 0. A step whose comparison spans contain a missing
// grade gets an undefined flag.
func (r RiskRule) Flags(grades []sql.NullFloat64) []sql.NullFloat64 {
	flags := make([]sql.NullFloat64, len(grades))
	warm := r.Warmup()
	for i := range grades {
		if i < warm {
			flags[i] = sql.NullFloat64{Float64: 0, Valid: true}
			continue
		}
		recent, okRecent := meanGrades(grades[i-r.RecentWeeks+1 : i+1])
		prior, okPrior := meanGrades(grades[i-warm+1 : i-r.RecentWeeks+1])
		if !okRecent || !okPrior {
			continue
		}
		flag := 0.0
		if prior-recent > r.Threshold {
			flag = 1
		}
		flags[i] = sql.NullFloat64{Float64: flag, Valid: true}
	}
	return flags
}

func meanGrades(span []sql.NullFloat64) (float64, bool) {
	if len(span) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, g := range span {
		if !g.Valid {
			return 0, false
		}
		sum += g.Float64
	}
	return sum / float64(len(span)), true
}

// DeriveRiskTargets overwrites Target on every event with the flag computed
// over its (student, subject) series ordered by week and day.
func DeriveRiskTargets(events []RawEvent, rule RiskRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	order := make([]int, len(events))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return compareEvents(&events[order[i]], &events[order[j]])
	})

	for start := 0; start < len(order); {
		end := start + 1
		for end < len(order) && SameSeries(&events[order[start]], &events[order[end]]) {
			end++
		}
		grades := make([]sql.NullFloat64, end-start)
		for k := start; k < end; k++ {
			grades[k-start] = events[order[k]].Grade
		}
		for k, flag := range rule.Flags(grades) {
			events[order[start+k]].Target = flag
		}
		start = end
	}
	return nil
}
