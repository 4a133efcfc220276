package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/config"
	"github.com/stemsi/hiring-backend/internal/model"
	"github.com/stemsi/hiring-backend/internal/observability"
	"github.com/stemsi/hiring-backend/internal/proctor"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// SignalSink persists signal records.
type SignalSink interface {
	CopySignals(ctx context.Context, batch []model.SignalRecord) (int64, error)
	InsertSignal(ctx context.Context, rec model.SignalRecord) error
}

// EnqueueSignal queues a page signal for the audit log.
func EnqueueSignal(ctx context.Context, rdb *redis.Client, sessionID uuid.UUID, sig proctor.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	at := sig.At
	if at.IsZero() {
		at = time.Now()
	}
	payload, err := json.Marshal(model.SignalRecord{
		SessionID:  sessionID,
		Kind:       string(sig.Kind),
		Data:       data,
		RecordedAt: at.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return rdb.RPush(ctx, config.WorkerKey.PersistSignalsQueue, payload).Err()
}

// SignalWorker drains persist_signals_queue into the signal audit table in
// batches.
type SignalWorker struct {
	sink SignalSink
	rdb  *redis.Client
	log  zerolog.Logger

	batchSize      int
	batchTimeout   time.Duration
	requeueBackoff time.Duration
}

func NewSignalWorker(sink SignalSink, rdb *redis.Client, log zerolog.Logger) *SignalWorker {
	return &SignalWorker{
		sink:           sink,
		rdb:            rdb,
		log:            log.With().Str("component", "signal_worker").Logger(),
		batchSize:      BatchSize,
		batchTimeout:   BatchTimeout,
		requeueBackoff: 2 * time.Second,
	}
}

// Start runs until ctx is cancelled, then flushes what it holds.
func (w *SignalWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]model.SignalRecord, 0, w.batchSize)
	lastFlushTime := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= w.batchSize || time.Since(lastFlushTime) >= w.batchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// BLPop blocks for up to a second and returns at once when data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistSignalsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleepCtx(ctx, 3*time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var rec model.SignalRecord
		if err := json.Unmarshal([]byte(result[1]), &rec); err != nil || rec.SessionID == uuid.Nil {
			// Malformed entries can never succeed; drop them.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed signal")
			continue
		}
		buffer = append(buffer, rec)
	}
}

// flushSafe tries a bulk copy, then row-by-row, then requeues what is left.
func (w *SignalWorker) flushSafe(ctx context.Context, batch []model.SignalRecord) {
	_, err := w.sink.CopySignals(ctx, batch)
	if err == nil {
		observability.RecordSignals("copied", len(batch))
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

	var requeue []model.SignalRecord
	inserted := 0
	for _, rec := range batch {
		if err := w.sink.InsertSignal(ctx, rec); err != nil {
			w.log.Error().Err(err).Str("session_id", rec.SessionID.String()).Msg("Insert failed, requeueing")
			requeue = append(requeue, rec)
			continue
		}
		inserted++
	}
	observability.RecordSignals("inserted", inserted)

	if len(requeue) > 0 {
		w.requeue(ctx, requeue)
	}
}

func (w *SignalWorker) requeue(ctx context.Context, items []model.SignalRecord) {
	pipe := w.rdb.Pipeline()
	for _, rec := range items {
		data, _ := json.Marshal(rec)
		pipe.RPush(ctx, config.WorkerKey.PersistSignalsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		observability.RecordSignals("lost", len(items))
		w.log.Error().Err(err).Int("count", len(items)).Msg("Failed to requeue signals; audit records lost")
		return
	}
	observability.RecordSignals("requeued", len(items))
	w.log.Info().Int("count", len(items)).Msg("Requeued failed signals")
	// Back off before taking the next batch.
	sleepCtx(ctx, w.requeueBackoff)
}

func (w *SignalWorker) shutdown(buffer []model.SignalRecord) {
	w.log.Info().Int("pending", len(buffer)).Msg("Worker stopping, flushing remaining buffer")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
