package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/teresa-solution/directory-service/internal/config"
	"github.com/teresa-solution/directory-service/internal/database"
)

var (
	configFile string
	sourceURL  string
)

var rootCmd = &cobra.Command{
	Use:   "dird-migrate",
	Short: "Manage the directory database schema",
	Long: `dird-migrate applies or reverts the directory schema migrations.
The schema embedded in the binary is used unless --source names another
golang-migrate source such as file://scripts/migrations.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to the TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&sourceURL, "source", "", "Migration source URL, the embedded schema when empty")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run("Applying migrations...", func(m *migrate.Migrate) error { return m.Up() })
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run("Reverting migrations...", func(m *migrate.Migrate) error { return m.Down() })
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return run("Forcing migration version...", func(m *migrate.Migrate) error { return m.Force(version) })
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run("", func(m *migrate.Migrate) error {
					version, dirty, err := m.Version()
					if errors.Is(err, migrate.ErrNilVersion) {
						log.Info().Msg("No migration applied")
						return nil
					}
					if err != nil {
						return err
					}
					log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Schema version")
					return nil
				})
			},
		},
	)
}

func run(msg string, fn func(m *migrate.Migrate) error) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	m, closeFn, err := database.Migrator(cfg.DB.DSN(), sourceURL)
	if err != nil {
		return err
	}
	defer closeFn()

	if msg != "" {
		log.Info().Msg(msg)
	}
	if err := fn(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	if msg != "" {
		log.Info().Msg("Done")
	}
	return nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}
