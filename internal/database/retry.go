package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	connectAttempts = 5
	connectBackoff  = time.Second
)

// pingWithRetry tolerates dependencies that come up after the server, as in
// a compose stack. The backoff doubles between attempts.
func pingWithRetry(ctx context.Context, log zerolog.Logger, name string, ping func(context.Context) error) error {
	backoff := connectBackoff
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		if attempt == connectAttempts {
			break
		}
		log.Warn().Err(err).Str("target", name).Int("attempt", attempt).Dur("backoff", backoff).Msg("Not reachable yet")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
