package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_ValidatesSchedule(t *testing.T) {
	rescan := func(context.Context) error { return nil }

	_, err := New("*/15 * * * *", rescan, testLogger())
	require.NoError(t, err)

	_, err = New("not a schedule", rescan, testLogger())
	assert.Error(t, err)

	// Six fields (with seconds) are not accepted.
	_, err = New("0 */15 * * * *", rescan, testLogger())
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New("0 3 * * *", func(context.Context) error { return nil }, testLogger())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "second start must fail")
	assert.False(t, s.Next().IsZero())

	s.Stop()
	assert.True(t, s.Next().IsZero())

	// Restart after stop is allowed.
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestScheduler_Run(t *testing.T) {
	var calls atomic.Int64
	s, err := New("0 3 * * *", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)

	s.run()
	assert.Equal(t, int64(1), calls.Load())
}

func TestScheduler_RunSwallowsCancellation(t *testing.T) {
	s, err := New("0 3 * * *", func(ctx context.Context) error {
		return errors.New("scan aborted")
	}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	// Errors after cancellation are expected and must not panic.
	s.run()
	s.Stop()
}
