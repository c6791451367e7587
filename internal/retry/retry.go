// Package retry holds the error-classification policy shared by the
// checkout path. The policy is a plain table so call sites carry no
// retry conditionals of their own. Webhook processing never uses it;
// the provider's redelivery is the retry mechanism there.
package retry

import (
	"context"
	"time"

	"recharge-backend/internal/domain"
)

type Policy struct {
	Retryable   bool
	MaxAttempts int
	Backoff     time.Duration
}

type Policies map[domain.Kind]Policy

// Default classifies transient infrastructure failures as retryable with a
// small bounded backoff. Every kind absent from the table is terminal.
func Default() Policies {
	return Policies{
		domain.KindPersistence: {Retryable: true, MaxAttempts: 3, Backoff: 50 * time.Millisecond},
		domain.KindProvider:    {Retryable: true, MaxAttempts: 3, Backoff: 50 * time.Millisecond},
	}
}

func (p Policies) For(kind domain.Kind) Policy {
	if pol, ok := p[kind]; ok {
		return pol
	}
	return Policy{Retryable: false, MaxAttempts: 1}
}

// Do runs fn, retrying per the policy of the returned error's kind with
// exponential backoff. The first terminal error or context cancellation
// stops immediately.
func (p Policies) Do(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		pol := p.For(domain.KindOf(err))
		if !pol.Retryable || attempt >= pol.MaxAttempts {
			return err
		}
		delay := pol.Backoff << (attempt - 1)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
}
