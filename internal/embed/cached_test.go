package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps the static embedder and counts backend calls.
type countingEmbedder struct {
	*StaticEmbedder
	embedCalls int
	batchTexts int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedCalls++
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchTexts += len(texts)
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_HitSkipsBackend(t *testing.T) {
	counting := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(counting, 16)
	defer func() { _ = cached.Close() }()

	ctx := context.Background()
	first, err := cached.Embed(ctx, "severance pay dispute")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "severance pay dispute")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, counting.embedCalls)
}

func TestCachedEmbedder_BatchOnlyEmbedsMisses(t *testing.T) {
	counting := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(counting, 16)
	defer func() { _ = cached.Close() }()

	ctx := context.Background()
	_, err := cached.Embed(ctx, "fraud conviction appeal")
	require.NoError(t, err)

	batch, err := cached.EmbedBatch(ctx, []string{
		"fraud conviction appeal",
		"tenant eviction notice",
	})
	require.NoError(t, err)
	require.Len(t, batch, 2)

	// Only the second text was new.
	assert.Equal(t, 1, counting.batchTexts)
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	counting := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(counting, 0)

	assert.Equal(t, StaticDimensions, cached.Dimensions())
	assert.Equal(t, "static", cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
	assert.Same(t, Embedder(counting), cached.Inner())
	require.NoError(t, cached.Close())
	assert.False(t, cached.Available(context.Background()))
}
