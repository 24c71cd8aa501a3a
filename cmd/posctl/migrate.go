package main

import (
	"fmt"
	"strconv"

	"smartpos/internal/infra"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mg, err := migrador()
		if err != nil {
			return err
		}
		return mg.Up()
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [n]",
	Short: "Roll back the last n migrations (default 1)",
	Example: `  posctl migrate down
  posctl migrate down 3`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n := 1
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v <= 0 {
				return fmt.Errorf("n must be a positive integer, got %q", args[0])
			}
			n = v
		}
		mg, err := migrador()
		if err != nil {
			return err
		}
		return mg.Down(n)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mg, err := migrador()
		if err != nil {
			return err
		}
		v, dirty, err := mg.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

func migrador() (*infra.Migrator, error) {
	env, err := conectar()
	if err != nil {
		return nil, err
	}
	return infra.NewMigrator(env.db)
}
