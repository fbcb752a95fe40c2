// Package cmd is the blogdesk command line: serve, migrate and seed.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"blogdesk/config"
	"blogdesk/database"
	"blogdesk/logger"
)

// app carries what every subcommand shares once the root command has
// loaded the configuration.
type app struct {
	cfgFile string
	cfg     *config.Config
	log     *zap.Logger
}

func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "blogdesk",
		Short:         "Blog with categories, tags and comments, plus a to-do list",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ./config.yaml or ./config/config.yaml)")

	root.AddCommand(newServeCommand(a))
	root.AddCommand(newMigrateCommand(a))
	root.AddCommand(newSeedCommand(a))
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) init() error {
	cfg, err := config.InitConfig(a.cfgFile)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, MaxSizeMB: cfg.LogMaxSizeMB})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	if cfg.UsesInsecureSecret() {
		log.Warn("jwt_secret is the built-in default; set BLOGDESK_JWT_SECRET before deploying")
	}
	a.cfg, a.log = cfg, log
	return nil
}

func (a *app) openDB() (*gorm.DB, error) {
	level := gormlogger.Warn
	if a.cfg.LogLevel == "debug" {
		level = gormlogger.Info
	}
	return database.Open(a.cfg.Database, a.log, level)
}

func (a *app) migrator(db *gorm.DB) (*database.Migrator, error) {
	return database.NewMigrator(db, a.log, database.Migrations())
}
