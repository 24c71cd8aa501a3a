package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Vencedor moves debts past their due date to vencida.
type Vencedor interface {
	MarcarVencidas(ctx context.Context, ahora time.Time) (int64, error)
}

// StartVencimientosCron runs once at startup and then every interval.
func StartVencimientosCron(ctx context.Context, deudas Vencedor, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("vencimientos_cron: started")
		marcarVencidas(ctx, deudas, time.Now())

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("vencimientos_cron: shutting down")
				return
			case t := <-ticker.C:
				marcarVencidas(ctx, deudas, t)
			}
		}
	}()
}

func marcarVencidas(ctx context.Context, deudas Vencedor, ahora time.Time) {
	n, err := deudas.MarcarVencidas(ctx, ahora)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("vencimientos_cron: failed to mark overdue debts")
		}
		return
	}
	if n > 0 {
		log.Info().Int64("deudas", n).Msg("vencimientos_cron: debts marked vencida")
	}
}
