package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionPaperKey returns the cache key for the candidate-facing question list of a session
func (r *CacheKeyStruct) SessionPaperKey(sessionID string) string {
	return fmt.Sprintf("session:%s:paper", sessionID)
}

// SessionViolationGuardKey returns the lock key serializing violation accounting for a session
func (r *CacheKeyStruct) SessionViolationGuardKey(sessionID string) string {
	return fmt.Sprintf("session:%s:violation_guard", sessionID)
}

// JobMonitorChannel returns the Redis PubSub channel name for a job's live proctor monitor
func (r *CacheKeyStruct) JobMonitorChannel(jobID string) string {
	return fmt.Sprintf("job:%s:monitor", jobID)
}

// RateLimitKey returns the counter key of one rate limit window for a client
func (r *CacheKeyStruct) RateLimitKey(name, client string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", name, client, window)
}

var CacheKey = NewCacheKeyStruct()
