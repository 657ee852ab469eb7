package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := Policy{MaxRetries: 3, Backoff: time.Millisecond, Logger: zap.New(core)}

	calls := 0
	err := p.Do(context.Background(), "upsert summary", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	entries := logs.FilterMessage("retrying").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "upsert summary", entries[0].ContextMap()["op"])
	assert.Equal(t, int64(2), entries[1].ContextMap()["attempt"])
}

func TestDoGivesUp(t *testing.T) {
	want := errors.New("still failing")
	calls := 0
	err := Policy{MaxRetries: 2, Backoff: time.Millisecond}.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return want
	})
	assert.ErrorIs(t, err, want)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	want := errors.New("pool not found")
	calls := 0
	err := Policy{MaxRetries: 5, Backoff: time.Hour}.Do(context.Background(), "get pool", func(context.Context) error {
		calls++
		return fmt.Errorf("lookup: %w", Permanent(want))
	})
	assert.ErrorIs(t, err, want)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestDoCapsBackoff(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := Policy{MaxRetries: 3, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Logger: zap.New(core)}
	_ = p.Do(context.Background(), "op", func(context.Context) error { return errors.New("fail") })

	entries := logs.FilterMessage("retrying").All()
	require.Len(t, entries, 3)
	assert.Equal(t, 2*time.Millisecond, entries[2].ContextMap()["backoff"])
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Policy{MaxRetries: 5, Backoff: time.Hour}.Do(ctx, "op", func(context.Context) error {
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
