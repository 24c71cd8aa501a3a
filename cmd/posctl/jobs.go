package main

import (
	"encoding/json"
	"fmt"
	"time"

	"smartpos/internal/infra"
	"smartpos/internal/router"
	"smartpos/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and drive the event outbox",
}

var outboxProcesarCmd = &cobra.Command{
	Use:   "procesar",
	Short: "Run one relay pass over the due events",
	Long: `Claims up to OUTBOX_BATCH_SIZE due events and delivers them exactly as the
server's relay would, then prints the batch summary as JSON. Useful to drain
the outbox while the server is down.`,
	Args: cobra.NoArgs,
	RunE: runOutboxProcesar,
}

var outboxPendientesCmd = &cobra.Command{
	Use:   "pendientes",
	Short: "Print how many events are still pending",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := conectar()
		if err != nil {
			return err
		}
		n, err := env.st.Eventos.CountPendientes(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var deudasCmd = &cobra.Command{
	Use:   "deudas",
	Short: "Customer debt maintenance",
}

var deudasVencerCmd = &cobra.Command{
	Use:   "vencer",
	Short: "Mark pending debts past their due date as overdue",
	Example: `  posctl deudas vencer
  posctl deudas vencer --fecha 2026-03-31`,
	Args: cobra.NoArgs,
	RunE: runDeudasVencer,
}

func init() {
	rootCmd.AddCommand(outboxCmd, deudasCmd)
	outboxCmd.AddCommand(outboxProcesarCmd, outboxPendientesCmd)
	deudasCmd.AddCommand(deudasVencerCmd)

	deudasVencerCmd.Flags().String("fecha", "", "Reference date (format: YYYY-MM-DD, default: now)")
}

func runOutboxProcesar(cmd *cobra.Command, args []string) error {
	env, err := conectar()
	if err != nil {
		return err
	}
	svcs := router.NewServices(env.cfg, env.st, nil)

	var notifier worker.AlertaNotifier
	if mailer := infra.NewMailer(env.cfg); mailer != nil {
		notifier = mailer
	}
	cfg := worker.RelayConfig{
		Eventos:     env.st.Eventos,
		Lealtad:     svcs.Lealtad,
		Alertas:     worker.NewAlertaWorker(notifier),
		MaxIntentos: env.cfg.OutboxMaxIntentos,
		BatchSize:   env.cfg.OutboxBatchSize,
	}
	if rdb, err := infra.NewRedis(env.cfg.RedisURL); err == nil {
		defer rdb.Close()
		cfg.Alertas = worker.NewDispatcher(rdb)
		cfg.DLQ = rdb
	} else {
		log.Warn().Err(err).Msg("redis unavailable, alerts are sent inline")
	}

	res, err := worker.NewRelay(cfg).ProcesarLote(cmd.Context())
	if err != nil {
		return err
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
}

func runDeudasVencer(cmd *cobra.Command, args []string) error {
	fecha, _ := cmd.Flags().GetString("fecha")
	ahora := time.Now()
	if fecha != "" {
		t, err := time.Parse("2006-01-02", fecha)
		if err != nil {
			return fmt.Errorf("invalid fecha format. Use YYYY-MM-DD: %w", err)
		}
		ahora = t.UTC()
	}

	env, err := conectar()
	if err != nil {
		return err
	}
	n, err := router.NewServices(env.cfg, env.st, nil).Deudas.MarcarVencidas(cmd.Context(), ahora)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d deudas marcadas como vencidas\n", n)
	return nil
}
