// Package main provides the orgaudit CLI entry point.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/orgaudit/orgaudit/internal/history"
	"github.com/orgaudit/orgaudit/internal/logging"
	"github.com/orgaudit/orgaudit/pkg/config"
)

var version = "dev"

// app carries the state shared by every command once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
	log *logrus.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "orgaudit",
		Short: "Repository health grades for a GitHub organization",
		Long: `orgaudit grades every repository of an organization on runtime versions,
branch hygiene, security alerts and dependency drift, and rolls the grades
up into one composite score per repository.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (default: search for .orgaudit/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(
		newScoreCmd(a),
		newQueryCmd(a),
		newInventoryCmd(a),
		newValidateConfigCmd(a),
		newMigrateCmd(a),
	)
	return rootCmd
}

func (a *app) init() error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(
		firstNonEmpty(a.logLevel, cfg.Logging.Level),
		firstNonEmpty(a.logFormat, cfg.Logging.Format),
	)
	if err != nil {
		return err
	}
	a.log = logger
	return nil
}

// openHistory connects to the configured database, running migrations when
// auto_migrate is set. It returns nil, nil when no database is configured.
func (a *app) openHistory(ctx context.Context) (*sql.DB, *history.Store, error) {
	if a.cfg.Database.URL == "" {
		return nil, nil, nil
	}
	db, err := history.Open(ctx, a.cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	if a.cfg.Database.AutoMigrate {
		if err := history.AutoMigrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return db, history.NewStore(db), nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
		return cfg, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return config.DefaultConfig(), nil
	}
	cfgFile := config.FindConfigFile(wd)
	if cfgFile == "" {
		return config.Load("")
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
