package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recharge-backend/internal/domain"
)

func fastPolicies() Policies {
	return Policies{
		domain.KindPersistence: {Retryable: true, MaxAttempts: 3, Backoff: time.Millisecond},
		domain.KindProvider:    {Retryable: true, MaxAttempts: 3, Backoff: time.Millisecond},
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := fastPolicies().Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := fastPolicies().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return domain.E(domain.KindPersistence, "transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicies().Do(context.Background(), func(context.Context) error {
		calls++
		return domain.E(domain.KindProvider, "still down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, domain.KindProvider, domain.KindOf(err))
}

func TestDo_TerminalStopsImmediately(t *testing.T) {
	for _, kind := range []domain.Kind{
		domain.KindInvalidPrice,
		domain.KindProductUnavailable,
		domain.KindUnauthenticated,
		domain.KindIntegrityMismatch,
		domain.KindNotFound,
	} {
		calls := 0
		err := fastPolicies().Do(context.Background(), func(context.Context) error {
			calls++
			return domain.E(kind, "terminal")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls, string(kind))
	}
}

func TestDo_ContextCancelStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Policies{
		domain.KindPersistence: {Retryable: true, MaxAttempts: 5, Backoff: time.Hour},
	}.Do(ctx, func(context.Context) error {
		calls++
		return domain.E(domain.KindPersistence, "transient")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFor_UnknownKindIsTerminal(t *testing.T) {
	pol := Default().For(domain.KindConflict)
	assert.False(t, pol.Retryable)
	assert.Equal(t, 1, pol.MaxAttempts)
}

func TestDefault_TransientKinds(t *testing.T) {
	p := Default()
	assert.True(t, p.For(domain.KindPersistence).Retryable)
	assert.True(t, p.For(domain.KindProvider).Retryable)
	assert.False(t, p.For(domain.KindInvalidSignature).Retryable)
}
