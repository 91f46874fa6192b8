package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/spf13/cobra"

	"compliancesync/internal/adapters/memory"
	pg "compliancesync/internal/adapters/postgres"
	"compliancesync/internal/adapters/sqlite"
	"compliancesync/internal/config"
	"compliancesync/internal/ports"
)

func main() {
	var cfg config.Config

	root := &cobra.Command{
		Use:           "compliancesync",
		Short:         "Compliance analysis orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var loadErr error
			cfg, loadErr = config.Load()
			if cfg.ListenAddr == "" {
				return loadErr
			}
			if err := setupLogging(cfg, os.Stderr); err != nil {
				return err
			}
			if loadErr != nil {
				log.WithError(loadErr).Warn("config")
			}
			return nil
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and analysis workers",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply history database migrations and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				_, closeFn, err := openHistory(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				closeFn()
				log.WithField("backend", cfg.HistoryBackend).Info("migrations applied")
				return nil
			},
		},
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupLogging(cfg config.Config, w io.Writer) error {
	switch cfg.LogFormat {
	case "json":
		log.SetHandler(jsonhandler.New(w))
	default:
		log.SetHandler(text.New(w))
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	log.SetLevel(level)
	return nil
}

// openHistory connects the configured run repository, applying migrations for
// the SQL backends.
func openHistory(ctx context.Context, cfg config.Config) (ports.RunRepository, func(), error) {
	switch cfg.HistoryBackend {
	case config.BackendMemory:
		return memory.NewRunRepository(), func() {}, nil
	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for the postgres history backend")
		}
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect error: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return db, db.Close, nil
	default:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open: %w", err)
		}
		return db, func() { _ = db.Close() }, nil
	}
}
