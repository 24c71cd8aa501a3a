package main

import (
	"fmt"
	"os"
	"time"

	"smartpos/internal/config"
	"smartpos/internal/infra"
	"smartpos/internal/repository"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "posctl",
	Short: "posctl - operator tools for the SmartPOS backend",
	Long: `posctl runs maintenance tasks against the SmartPOS database.

It reads the same environment variables as the server (DATABASE_URL,
REDIS_URL, OUTBOX_*, ...) and an optional .env file in the working directory.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Str("component", "posctl").Msg("command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level")
}

// entorno is what every database-backed command needs.
type entorno struct {
	cfg *config.Config
	db  *gorm.DB
	st  *repository.Set
}

func conectar() (*entorno, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	st := repository.NewSet(db, repository.TxOptions{Timeout: cfg.TxTimeout(), LockTimeout: cfg.LockTimeout()})
	return &entorno{cfg: cfg, db: db, st: st}, nil
}
