package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"smartpos/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueAlertasStock = "jobs:alertas_stock"

	jobAlertaStock = "alerta_stock"
	jobMaxAttempts = 3
)

// RedisQueue is the part of *redis.Client the queues use.
type RedisQueue interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb RedisQueue
}

func NewDispatcher(rdb RedisQueue) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueAlertaStock pushes a low-stock alert to Redis.
func (d *Dispatcher) EnqueueAlertaStock(ctx context.Context, a dto.AlertaStock) error {
	return d.enqueue(ctx, QueueAlertasStock, jobAlertaStock, a)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes the alert queue with a fixed number of goroutines.
type Pool struct {
	rdb         RedisQueue
	alertas     *AlertaWorker
	size        int
	pollTimeout time.Duration
	retryBase   time.Duration
}

func NewPool(rdb RedisQueue, alertas *AlertaWorker, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		rdb:         rdb,
		alertas:     alertas,
		size:        size,
		pollTimeout: 5 * time.Second,
		retryBase:   time.Second,
	}
}

// Start launches the workers. Each goroutine blocks on BRPOP, so idle
// workers cost nothing.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", p.size)
}

func (p *Pool) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// waits up to pollTimeout then loops to check ctx
			result, err := p.rdb.BRPop(ctx, p.pollTimeout, QueueAlertasStock).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					log.Warn().Err(err).Int("worker", id).Msg("worker: brpop failed")
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, p.rdb, queue, "desconocido", json.RawMessage(mustQuote(raw)), err.Error(), 1)
		return
	}

	switch job.Type {
	case jobAlertaStock:
		err := withRetry(ctx, jobMaxAttempts, p.retryBase, func(attempt int) error {
			err := p.alertas.Process(ctx, job.Payload)
			if err != nil {
				log.Warn().Err(err).Int("attempt", attempt+1).Msg("alerta_worker: attempt failed")
			}
			return err
		})
		if err != nil {
			SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, err.Error(), jobMaxAttempts)
		}
	default:
		log.Error().Str("type", job.Type).Str("queue", queue).Msg("unknown job type")
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, "unknown job type", 1)
	}
}

// withRetry calls fn up to maxAttempts times with exponential backoff
// (immediate, base, 2*base, ...). Permanent errors stop the loop.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := base * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			if esPermanente(err) {
				return err
			}
			continue
		}
		return nil
	}
	return lastErr
}

// permanentError marks a failure retrying cannot fix, such as a payload that
// does not decode.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanente(err error) error { return permanentError{err: err} }

func esPermanente(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

func mustQuote(raw string) []byte {
	b, _ := json.Marshal(raw)
	return b
}
