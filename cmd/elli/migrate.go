package main

import (
	"fmt"
	"io/fs"

	elli "github.com/set-night/elli"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/repository"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, migrations, err := migrationInputs()
			if err != nil {
				return err
			}
			return repository.RunMigrations(dbURL, migrations)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, migrations, err := migrationInputs()
			if err != nil {
				return err
			}
			return repository.RollbackMigrations(dbURL, migrations, steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

func migrationInputs() (string, fs.FS, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return "", nil, err
	}
	migrations, err := fs.Sub(elli.MigrationsFS, "migrations")
	if err != nil {
		return "", nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	return cfg.DatabaseURL, migrations, nil
}
