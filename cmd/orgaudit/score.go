package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/orgaudit/orgaudit/internal/ingestion"
	"github.com/orgaudit/orgaudit/pkg/surface"
)

type scoreOpts struct {
	org       string
	inventory string
	file      string
	outputFmt string
	repo      string
	limit     int
	noHistory bool
}

func newScoreCmd(a *app) *cobra.Command {
	var opts scoreOpts

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Grade every repository of an organization",
		Long: `Loads an organization inventory, evaluates every configured signal,
stores the report tables of the run and records the composite scores in
history when a database is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), a, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.org, "org", "", "Organization to score")
	cmd.Flags().StringVar(&opts.inventory, "inventory", ingestion.DefaultInventory, "Stored inventory name")
	cmd.Flags().StringVar(&opts.file, "file", "", "Score a local inventory file instead of a stored one")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "text", "Output format: text, json or markdown")
	cmd.Flags().StringVar(&opts.repo, "repo", "", "Show the per-signal breakdown of one repository")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Show at most this many repositories (0 for all)")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record the run in the history database")

	return cmd
}

func renderer(format, repo string, limit int) (surface.Renderer, error) {
	switch format {
	case "", "text":
		return &surface.TerminalRenderer{Repo: repo, Limit: limit}, nil
	case "json":
		return &surface.JSONRenderer{}, nil
	case "markdown", "md":
		return &surface.MarkdownRenderer{Worst: limit}, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

func runScore(ctx context.Context, a *app, opts scoreOpts, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r, err := renderer(opts.outputFmt, opts.repo, opts.limit)
	if err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	storage, err := ingestion.NewStorage(ctx, a.cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	var recorder ingestion.RunRecorder
	if !opts.noHistory {
		db, store, err := a.openHistory(ctx)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		if db != nil {
			defer db.Close()
			recorder = store
		}
	}

	svc := ingestion.NewService(storage, recorder, a.cfg, a.log)

	var res *ingestion.RunResult
	if opts.file != "" {
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return fmt.Errorf("reading inventory: %w", err)
		}
		inv, err := ingestion.ParseInventory(data)
		if err != nil {
			return err
		}
		if opts.org != "" && inv.Org != opts.org {
			return fmt.Errorf("inventory %s belongs to org %q, not %q", opts.file, inv.Org, opts.org)
		}
		res, err = svc.Score(ctx, inv, opts.file)
		if err != nil {
			return err
		}
	} else {
		if opts.org == "" {
			return fmt.Errorf("--org is required unless --file is given")
		}
		res, err = svc.Run(ctx, ingestion.RunRequest{Org: opts.org, Inventory: opts.inventory})
		if err != nil {
			return err
		}
	}

	a.log.WithField("run", res.RunID).Debugf("reports: %v", res.Reports)
	return r.Render(out, res.Result)
}
