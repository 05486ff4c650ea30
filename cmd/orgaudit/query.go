package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/orgaudit/orgaudit/internal/history"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		org   string
		repo  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Show recorded grades from the history database",
		Long: `Without --repo, lists the latest grade of every repository and the
most recent run. With --repo, lists that repository's grades over time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if org == "" {
				return fmt.Errorf("--org is required")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			db, store, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("no database configured (set database.url or ORGAUDIT_DATABASE_URL)")
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			if repo != "" {
				scores, err := store.ListScoresByRepo(ctx, org, repo, limit)
				if err != nil {
					return err
				}
				return renderScores(out, scores, true)
			}

			run, err := store.LatestRun(ctx, org)
			if errors.Is(err, history.ErrNotFound) {
				fmt.Fprintf(out, "No runs recorded for %s.\n", org)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Latest run %s (%s, %d repositories)\n\n",
				run.ID, run.FinishedAt.Format("2006-01-02 15:04"), run.RepoCount)

			scores, err := store.ListRepos(ctx, org)
			if err != nil {
				return err
			}
			return renderScores(out, scores, false)
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Organization")
	cmd.Flags().StringVar(&repo, "repo", "", "Repository to show history for")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum history entries for --repo (0 for all)")

	return cmd
}

func renderScores(w io.Writer, scores []history.RepoScore, byTime bool) error {
	if len(scores) == 0 {
		fmt.Fprintln(w, "No scores recorded.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	if byTime {
		table.Header([]string{"Recorded", "Run", "GPA", "Grade"})
	} else {
		table.Header([]string{"Repository", "GPA", "Grade", "Recorded"})
	}

	var data [][]string
	for _, s := range scores {
		gpa := strconv.FormatFloat(s.Value, 'f', 2, 64)
		recorded := s.RecordedAt.Format("2006-01-02 15:04")
		if byTime {
			data = append(data, []string{recorded, s.RunID, gpa, string(s.Grade)})
		} else {
			data = append(data, []string{s.Repo, gpa, string(s.Grade), recorded})
		}
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
