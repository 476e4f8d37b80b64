package sync

import (
	"context"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sidkik/remote-mirror/pkg/errors"
)

// DefaultRetries is the number of times a failed command is retried.
const DefaultRetries = 5

// RetryPolicy decides whether and when a failed operation is attempted again.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// Backoff is the wait before the first retry. Each subsequent retry waits
	// Backoff longer than the previous one.
	Backoff time.Duration

	// Clock is mocked out in unit tests.
	Clock clockwork.Clock

	// Retryable returns whether `err` may go away if the operation is
	// retried. Defaults to IsRetryable.
	Retryable func(err error) bool

	// OnRetry is called before each retry.
	OnRetry func(err error, retry int)
}

// DefaultRetryPolicy returns the policy used for remote commands.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultRetries,
		Backoff:    time.Second,
		Clock:      clockwork.NewRealClock(),
		Retryable:  IsRetryable,
	}
}

// Do calls `fn` until it succeeds, returns an error that isn't retryable, or
// the retries are exhausted. It returns the last error.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	for retry := 0; ; retry++ {
		err := fn()
		if err == nil {
			return nil
		}

		if retry >= p.MaxRetries || !retryable(err) {
			return err
		}

		if p.OnRetry != nil {
			p.OnRetry(err, retry+1)
		}

		if p.Backoff <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(p.Backoff * time.Duration(retry+1)):
		}
	}
}

// IsRetryable returns false for errors that are caused by the state of the
// mirror rather than by the remote account, since retrying won't fix them.
func IsRetryable(err error) bool {
	rootCause := errors.RootCause(err)
	switch rootCause.(type) {
	case errors.PathNotFound, errors.MalformedRemoteName,
		errors.NotAChildOfBase, errors.FileNotFound:
		return false
	}

	if rootCause == context.Canceled || rootCause == context.DeadlineExceeded {
		return false
	}
	return !os.IsNotExist(rootCause)
}
