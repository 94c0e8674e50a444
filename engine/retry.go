package engine

import (
	"time"

	"github.com/mohitkumar/flowup/config"
)

type RetryConfig struct {
	Policy       config.RetryPolicy
	DelaySeconds int
	MaxAttempts  int
}

// Backoff returns the wait before the given retry attempt, counted from 1.
func (rc RetryConfig) Backoff(attempt int) time.Duration {
	switch rc.Policy {
	case config.RETRY_POLICY_BACKOFF:
		return time.Duration(rc.DelaySeconds*attempt) * time.Second
	default:
		return time.Duration(rc.DelaySeconds) * time.Second
	}
}
