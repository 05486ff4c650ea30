package surface

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/orgaudit/orgaudit/pkg/scoring"
)

var (
	goodColor = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	badColor  = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.FgHiBlack)
	boldColor = color.New(color.Bold)
)

func gradeText(g scoring.Grade) string {
	switch g {
	case scoring.GradeA, scoring.GradeB:
		return goodColor.Sprint(string(g))
	case scoring.GradeC:
		return warnColor.Sprint(string(g))
	case scoring.GradeD, scoring.GradeF:
		return badColor.Sprint(string(g))
	default:
		return dimColor.Sprint("n/a")
	}
}

func gpaText(v float64) string {
	if v == scoring.NoSignals {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// TerminalRenderer renders results as colored tables. With Repo set it
// prints that repository's per-signal breakdown instead of the ranking.
// Colors follow fatih/color, which honours NO_COLOR.
type TerminalRenderer struct {
	Repo string
	// Limit caps the ranking; zero shows every repository.
	Limit int
}

func (r *TerminalRenderer) Render(w io.Writer, result *scoring.Result) error {
	if r.Repo != "" {
		rr := result.Repo(r.Repo)
		if rr == nil {
			return fmt.Errorf("repository %s not in result", r.Repo)
		}
		return r.renderRepo(w, rr)
	}
	return r.renderRanking(w, result)
}

func (r *TerminalRenderer) renderRanking(w io.Writer, result *scoring.Result) error {
	repos := ranked(result)
	if len(repos) == 0 {
		fmt.Fprintln(w, "No repositories scored.")
		return nil
	}

	fmt.Fprintf(w, "%s\n\n", boldColor.Sprintf("orgaudit: %d repositories", len(repos)))

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "Repository", "GPA", "Grade", "Signals"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for i, rr := range repos {
		if r.Limit > 0 && i >= r.Limit {
			break
		}
		data = append(data, []string{
			strconv.Itoa(i + 1),
			rr.Repo,
			gpaText(rr.Composite.Value),
			gradeText(rr.Composite.Grade),
			fmt.Sprintf("%d/%d", applicableCount(rr.Scores), len(rr.Scores)),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if r.Limit > 0 && len(repos) > r.Limit {
		fmt.Fprintln(w, dimColor.Sprintf("... and %d more", len(repos)-r.Limit))
	}
	return nil
}

func (r *TerminalRenderer) renderRepo(w io.Writer, rr *scoring.RepoResult) error {
	fmt.Fprintf(w, "%s\n\n", boldColor.Sprintf("%s: Grade %s, GPA %s",
		rr.Repo, gradeText(rr.Composite.Grade), gpaText(rr.Composite.Value)))

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Signal", "Grade", "Weight"})

	var data [][]string
	for _, key := range sortedSignals(rr.Scores) {
		hs := rr.Scores[key]
		data = append(data, []string{key, gradeText(hs.Grade), strconv.Itoa(hs.Weight)})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
