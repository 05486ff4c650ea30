package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/orgaudit/orgaudit/pkg/scoring"
)

// MarkdownRenderer produces a markdown summary suitable for an issue or a
// pull request comment.
type MarkdownRenderer struct {
	// Worst limits the summary to the N lowest-scoring repositories.
	Worst int
}

func (r *MarkdownRenderer) Render(w io.Writer, result *scoring.Result) error {
	_, err := io.WriteString(w, r.Summary(result))
	return err
}

// Summary builds the markdown text.
func (r *MarkdownRenderer) Summary(result *scoring.Result) string {
	var sb strings.Builder

	repos := ranked(result)
	counts := make(map[scoring.Grade]int)
	for _, rr := range repos {
		counts[rr.Composite.Grade]++
	}

	sb.WriteString(fmt.Sprintf("## orgaudit: %d repositories\n\n", len(repos)))
	sb.WriteString("| Grade | Repositories |\n|-------|--------------|\n")
	for _, g := range []scoring.Grade{scoring.GradeA, scoring.GradeB, scoring.GradeC, scoring.GradeD, scoring.GradeF} {
		sb.WriteString(fmt.Sprintf("| %s %s | %d |\n", gradeIcon(g), g, counts[g]))
	}
	sb.WriteString("\n")

	worst := repos
	for i, j := 0, len(worst)-1; i < j; i, j = i+1, j-1 {
		worst[i], worst[j] = worst[j], worst[i]
	}
	if r.Worst > 0 && len(worst) > r.Worst {
		worst = worst[:r.Worst]
	}
	if len(worst) == 0 {
		return sb.String()
	}

	sb.WriteString("### Needs attention\n\n")
	sb.WriteString("| Repository | GPA | Grade | Failing signals |\n|------------|-----|-------|-----------------|\n")
	for _, rr := range worst {
		var failing []string
		for _, key := range sortedSignals(rr.Scores) {
			if g := rr.Scores[key].Grade; g == scoring.GradeD || g == scoring.GradeF {
				failing = append(failing, fmt.Sprintf("`%s` (%s)", key, g))
			}
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			rr.Repo, gpaText(rr.Composite.Value), rr.Composite.Grade, strings.Join(failing, ", ")))
	}
	return sb.String()
}

func gradeIcon(g scoring.Grade) string {
	switch g {
	case scoring.GradeA, scoring.GradeB:
		return "🟢"
	case scoring.GradeC:
		return "🟡"
	default:
		return "🔴"
	}
}
