package database

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

const (
	retryBaseDelay = 50 * time.Millisecond
	retryMaxDelay  = 2 * time.Second
)

// IsBusyError reports whether err is SQLite refusing the write because another
// connection holds the lock. Both mattn/go-sqlite3 and modernc.org/sqlite
// messages are recognised.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{"database is locked", "database table is locked", "SQLITE_BUSY", "SQLITE_LOCKED", "(5)", "(6)"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// RetryBusy runs fn, retrying with jittered exponential backoff while it keeps
// failing with a busy error. maxRetries of 0 means a single attempt.
func RetryBusy(ctx context.Context, maxRetries int, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !IsBusyError(err) || attempt >= maxRetries {
			return err
		}

		delay := retryBaseDelay << attempt
		delay += time.Duration(rand.Int63n(int64(delay/4) + 1))
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
