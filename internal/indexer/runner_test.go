package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_DrainsBacklogAndStops(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUnclassified(t, env)

	runner := NewRunner(env.indexer, 10*time.Millisecond)
	runner.Start(ctx)
	assert.True(t, runner.IsRunning())

	// The first pass runs immediately; poll until the backlog is drained.
	require.Eventually(t, func() bool {
		n, err := env.store.CountUnclassified(ctx)
		return err == nil && n == 0
	}, 5*time.Second, 10*time.Millisecond)

	runner.Stop()
	assert.False(t, runner.IsRunning())
	assert.NoError(t, runner.Wait())
}

func TestRunner_StartIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	runner := NewRunner(env.indexer, 10*time.Millisecond)
	runner.Start(context.Background())
	runner.Start(context.Background()) // second call is a no-op
	assert.True(t, runner.IsRunning())

	runner.Stop()
	assert.False(t, runner.IsRunning())
}

func TestRunner_ContextCancelStops(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	runner := NewRunner(env.indexer, 10*time.Millisecond)
	runner.Start(ctx)
	cancel()

	require.NoError(t, runner.Wait())
	assert.False(t, runner.IsRunning())
}
