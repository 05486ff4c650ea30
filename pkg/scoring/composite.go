package scoring

// GPA returns the weighted grade point average of scores, considering only
// applicable entries. It returns NoSignals when their total weight is zero.
func GPA(scores []HealthScore) float64 {
	var sum float64
	var weight int
	for _, s := range scores {
		if !s.Applicable() {
			continue
		}
		p, _ := s.Grade.Points()
		sum += p * float64(s.Weight)
		weight += s.Weight
	}
	if weight == 0 {
		return NoSignals
	}
	return sum / float64(weight)
}

// Aggregate computes a repository's composite score from its per-signal
// scores. With nothing applicable the value is NoSignals and the grade F.
func Aggregate(scores map[string]HealthScore) CompositeScore {
	list := make([]HealthScore, 0, len(scores))
	for _, s := range scores {
		list = append(list, s)
	}
	v := GPA(list)
	return CompositeScore{Value: v, Grade: NumberToGrade(v)}
}

// NumberToGrade maps a 0-4 GPA back to a letter grade.
func NumberToGrade(v float64) Grade {
	switch {
	case v > 3.5:
		return GradeA
	case v > 2.5:
		return GradeB
	case v > 1.5:
		return GradeC
	case v > 0.5:
		return GradeD
	default:
		return GradeF
	}
}

// Collapse folds per-occurrence scores (one per dependency a repository
// uses, say) into a single report-level score carrying weight.
func Collapse(occurrences []HealthScore, weight int) HealthScore {
	v := GPA(occurrences)
	if v == NoSignals {
		return NotApplicable
	}
	return HealthScore{Grade: NumberToGrade(v), Weight: weight}
}
