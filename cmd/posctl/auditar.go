package main

import (
	"encoding/json"
	"errors"

	"smartpos/internal/service"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var errDiscrepancias = errors.New("audit found discrepancies")

var auditarCmd = &cobra.Command{
	Use:   "auditar",
	Short: "Check stored balances against their ledgers",
	Long: `Recomputes product stock from stock movements, customer balances from
open debts and the expected cash of every closed register session, and prints
the report as JSON. Exits non-zero when any discrepancy is found.`,
	Args: cobra.NoArgs,
	RunE: runAuditar,
}

func init() {
	rootCmd.AddCommand(auditarCmd)
}

func runAuditar(cmd *cobra.Command, args []string) error {
	env, err := conectar()
	if err != nil {
		return err
	}
	aud, err := service.NewContabilidadService(env.st).Auditar(cmd.Context())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(aud); err != nil {
		return err
	}
	if !aud.OK {
		log.Warn().Int("discrepancias", len(aud.Discrepancias)).Msg("auditoria con diferencias")
		return errDiscrepancias
	}
	return nil
}
