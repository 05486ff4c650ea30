package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/orgaudit/orgaudit/pkg/version"
)

// TableKind selects how a ThresholdTable compares its input.
type TableKind string

const (
	// CountTable grades by "input < cutoff", first match wins.
	CountTable TableKind = "count"
	// VersionTable grades by "input >= cutoff" (semver), first match wins.
	VersionTable TableKind = "version"
)

// Max is the catch-all cutoff for count tables.
var Max = math.Inf(1)

// Cutoff is one row of a threshold table. Count tables use Count, version
// tables use Version.
type Cutoff struct {
	Count   float64
	Version string
	Grade   Grade
}

// Below returns a count cutoff.
func Below(n float64, g Grade) Cutoff { return Cutoff{Count: n, Grade: g} }

// AtLeast returns a version cutoff.
func AtLeast(v string, g Grade) Cutoff { return Cutoff{Version: v, Grade: g} }

// ThresholdTable is an ordered list of cutoffs. Order is significant: the
// first cutoff the input satisfies decides the grade.
type ThresholdTable struct {
	Kind    TableKind
	Cutoffs []Cutoff
}

// NewCountTable builds a count table from cutoffs in ascending order.
func NewCountTable(cutoffs ...Cutoff) ThresholdTable {
	return ThresholdTable{Kind: CountTable, Cutoffs: cutoffs}
}

// NewVersionTable builds a version table from cutoffs in descending order.
func NewVersionTable(cutoffs ...Cutoff) ThresholdTable {
	return ThresholdTable{Kind: VersionTable, Cutoffs: cutoffs}
}

// VersionTableFromLTS derives the runtime table for an LTS release: the LTS
// itself is an A, each further two majors back drops one grade, and
// anything older is an F.
func VersionTableFromLTS(lts string) (ThresholdTable, error) {
	major, ok := version.Major(lts)
	if !ok {
		return ThresholdTable{}, fmt.Errorf("invalid lts version %q", lts)
	}
	back := func(n int) string {
		return fmt.Sprintf("%d.0.0", max(major-n, 0))
	}
	return NewVersionTable(
		AtLeast(strings.TrimPrefix(strings.TrimSpace(lts), "="), GradeA),
		AtLeast(back(2), GradeB),
		AtLeast(back(4), GradeC),
		AtLeast(back(6), GradeD),
		AtLeast("0.0.0", GradeF),
	), nil
}

// Validate checks that the table is well formed: known kind, known grades,
// parseable version cutoffs, and cutoffs in the order first-match needs.
func (t ThresholdTable) Validate() error {
	if len(t.Cutoffs) == 0 {
		return fmt.Errorf("threshold table has no cutoffs")
	}
	for i, c := range t.Cutoffs {
		if _, ok := ParseGrade(string(c.Grade)); !ok {
			return fmt.Errorf("cutoff %d: unknown grade %q", i, c.Grade)
		}
		switch t.Kind {
		case CountTable:
			if i > 0 && c.Count < t.Cutoffs[i-1].Count {
				return fmt.Errorf("cutoff %d: count cutoffs must be ascending", i)
			}
		case VersionTable:
			if !version.Valid(c.Version) {
				return fmt.Errorf("cutoff %d: invalid version %q", i, c.Version)
			}
			if i > 0 {
				if cmp, _ := version.Compare(c.Version, t.Cutoffs[i-1].Version); cmp > 0 {
					return fmt.Errorf("cutoff %d: version cutoffs must be descending", i)
				}
			}
		default:
			return fmt.Errorf("unknown threshold table kind %q", t.Kind)
		}
	}
	return nil
}

// Grade grades input against the table. Input that cannot be compared, or
// that satisfies no cutoff, is NotApplicable.
func (t ThresholdTable) Grade(input any, weight int) HealthScore {
	switch t.Kind {
	case CountTable:
		n, ok := toNumber(input)
		if !ok {
			return NotApplicable
		}
		for _, c := range t.Cutoffs {
			if n < c.Count {
				return HealthScore{Grade: c.Grade, Weight: weight}
			}
		}
	case VersionTable:
		s, ok := input.(string)
		if !ok || !version.Valid(s) {
			return NotApplicable
		}
		for _, c := range t.Cutoffs {
			if cmp, ok := version.Compare(s, c.Version); ok && cmp >= 0 {
				return HealthScore{Grade: c.Grade, Weight: weight}
			}
		}
	}
	return NotApplicable
}

func toNumber(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case int:
		n = float64(x)
	case int32:
		n = float64(x)
	case int64:
		n = float64(x)
	case uint:
		n = float64(x)
	case uint64:
		n = float64(x)
	case float32:
		n = float64(x)
	case float64:
		n = x
	case bool:
		if x {
			n = 1
		}
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

// Fixture tables shared by the built-in signals.

// CountGrades grades simple counts such as stale branches.
func CountGrades() ThresholdTable {
	return NewCountTable(
		Below(5, GradeA),
		Below(10, GradeB),
		Below(15, GradeC),
		Below(20, GradeD),
		Below(Max, GradeF),
	)
}

// SeverityGrades grades the weighted alert score produced by the severity
// signal (critical*4 + high*3 + medium*2 + low).
func SeverityGrades() ThresholdTable {
	return NewCountTable(
		Below(3, GradeA),
		Below(6, GradeB),
		Below(9, GradeC),
		Below(12, GradeD),
		Below(Max, GradeF),
	)
}

// PresenceGrades grades a boolean deficiency: 0 (absent) is an A, anything
// else an F.
func PresenceGrades() ThresholdTable {
	return NewCountTable(
		Below(1, GradeA),
		Below(Max, GradeF),
	)
}
