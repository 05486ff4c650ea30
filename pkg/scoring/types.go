// Package scoring implements the orgaudit repository health scoring engine.
// Signals turn raw repository facts into letter grades, and the engine folds
// every graded signal into one weighted composite per repository.
package scoring

// Grade is a letter grade, or NotApplicable when a signal has no data.
type Grade string

const (
	GradeA             Grade = "A"
	GradeB             Grade = "B"
	GradeC             Grade = "C"
	GradeD             Grade = "D"
	GradeF             Grade = "F"
	GradeNotApplicable Grade = "NotApplicable"
)

// MaxWeight is the largest weight a signal may carry.
const MaxWeight = 5

// Points returns the GPA value of g. NotApplicable and unknown grades have
// no numeric value.
func (g Grade) Points() (float64, bool) {
	switch g {
	case GradeA:
		return 4, true
	case GradeB:
		return 3, true
	case GradeC:
		return 2, true
	case GradeD:
		return 1, true
	case GradeF:
		return 0, true
	default:
		return 0, false
	}
}

// ParseGrade accepts a letter grade or "NotApplicable".
func ParseGrade(s string) (Grade, bool) {
	g := Grade(s)
	if _, ok := g.Points(); ok || g == GradeNotApplicable {
		return g, true
	}
	return "", false
}

// HealthScore is the graded value of one signal for one repository.
// Immutable once produced.
type HealthScore struct {
	Grade  Grade `json:"grade"`
	Weight int   `json:"weight"`
}

// NotApplicable is the score for a signal without usable data.
var NotApplicable = HealthScore{Grade: GradeNotApplicable, Weight: 0}

// Applicable reports whether h contributes to composite scoring.
func (h HealthScore) Applicable() bool {
	_, numeric := h.Grade.Points()
	return numeric && h.Weight > 0
}

// CompositeScore is the weighted GPA of a repository and its letter grade.
// Value is NoSignals when nothing applicable was graded.
type CompositeScore struct {
	Value float64 `json:"value"`
	Grade Grade   `json:"grade"`
}

// NoSignals is the composite value when no signal applies.
const NoSignals = -1.0
