package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/hiring-backend/internal/model"
	"github.com/stemsi/hiring-backend/internal/proctor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorPublishReachesJobSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewMonitorService(rdb, nil, nil, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jobID := uuid.New()
	sub := svc.Subscribe(ctx, jobID)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	other := svc.Subscribe(ctx, uuid.New())
	defer other.Close()
	_, err = other.Receive(ctx)
	require.NoError(t, err)

	ev := proctor.Event{
		Type:      proctor.EventViolation,
		SessionID: uuid.New(),
		JobID:     jobID,
		Category:  model.ViolationTabSwitch,
		Count:     2,
		At:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	svc.Publish(ctx, ev)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got proctor.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, ev.SessionID, got.SessionID)
	assert.Equal(t, proctor.EventViolation, got.Type)
	assert.Equal(t, 2, got.Count)

	quiet, cancelQuiet := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancelQuiet()
	_, err = other.ReceiveMessage(quiet)
	assert.Error(t, err, "other jobs see nothing")
}

func TestMonitorPublishToleratesRedisErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.SetError("ERR down")

	svc := NewMonitorService(rdb, nil, nil, zerolog.Nop())
	assert.NotPanics(t, func() {
		svc.Publish(context.Background(), proctor.Event{Type: proctor.EventJoined, JobID: uuid.New()})
	})
}
