package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// RateLimitError is the terminal error raised when every retry attempt hit a
// rate limit. It carries the last underlying provider error for diagnostics.
type RateLimitError struct {
	Attempts int
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// RetryPolicy retries an operation on retryable errors with exponential
// backoff (BaseDelay * 2^attempt). Any non-retryable error propagates
// immediately; exhausting all attempts returns a *RateLimitError.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   func(error) bool

	// sleep is replaced in tests.
	sleep func(time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Retryable:   IsRateLimit,
	}
}

func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRateLimit
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var last error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		last = err

		if attempt < p.MaxAttempts-1 {
			delay := p.BaseDelay * (1 << attempt)
			log.Printf("rate limited, waiting %s before retry %d/%d", delay, attempt+1, p.MaxAttempts)
			sleep(delay)
		}
	}

	return &RateLimitError{Attempts: p.MaxAttempts, Err: last}
}

// IsRateLimit reports whether an error looks like provider throttling or
// quota exhaustion.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "rate_limit", "quota", "too many requests", "throttl"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
