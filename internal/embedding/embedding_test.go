package embedding

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderDeterministic(t *testing.T) {
	p := NewLocalProvider(0)
	assert.Equal(t, "local", p.Name())
	assert.Equal(t, DefaultLocalDimension, p.Dimension())

	first, err := p.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	second, err := p.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)

	assert.Len(t, first, DefaultLocalDimension)
	assert.Equal(t, first, second)

	other, err := p.Embed(context.Background(), "a completely different sentence")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestLocalProviderUnitNorm(t *testing.T) {
	p := NewLocalProvider(64)
	vec, err := p.Embed(context.Background(), "normalize me please")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestLocalProviderEmptyText(t *testing.T) {
	p := NewLocalProvider(16)
	vec, err := p.Embed(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, vec, 16)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity(a, []float32{-1, 0, 0}), 1e-9)

	// Dimension mismatch and degenerate vectors score zero.
	assert.Zero(t, CosineSimilarity(a, []float32{1, 0}))
	assert.Zero(t, CosineSimilarity(nil, nil))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{0, 0}))
}

func TestDisplayScore(t *testing.T) {
	assert.InDelta(t, 1.0, DisplayScore(1), 1e-9)
	assert.InDelta(t, 0.0, DisplayScore(-1), 1e-9)
	assert.InDelta(t, 0.5, DisplayScore(0), 1e-9)
	assert.InDelta(t, 1.0, DisplayScore(1.3), 1e-9)
	assert.InDelta(t, 0.0, DisplayScore(-2), 1e-9)
}

// scriptedProvider fails its first failCount EmbedBatch calls, then
// succeeds, returning constant vectors of its dimension.
type scriptedProvider struct {
	name       string
	dim        int
	failCount  int
	batchCalls int
}

func (p *scriptedProvider) Name() string   { return p.name }
func (p *scriptedProvider) Dimension() int { return p.dim }

func (p *scriptedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *scriptedProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.batchCalls++
	if p.batchCalls <= p.failCount {
		return nil, errors.New("provider down")
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, p.dim)
		vecs[i][0] = 1
	}
	return vecs, nil
}

func TestSelectorUsesPrimary(t *testing.T) {
	primary := &scriptedProvider{name: "openai", dim: 8}
	fallback := &scriptedProvider{name: "local", dim: 4}
	s := NewSelector(primary, fallback, 2)

	vecs, used, err := s.EmbedAll(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, "openai", used.Name())
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], 8)
	assert.Zero(t, fallback.batchCalls)
}

func TestSelectorRetriesPrimaryOnce(t *testing.T) {
	primary := &scriptedProvider{name: "openai", dim: 8, failCount: 1}
	fallback := &scriptedProvider{name: "local", dim: 4}
	s := NewSelector(primary, fallback, 10)

	_, used, err := s.EmbedAll(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "openai", used.Name())
	assert.Equal(t, 2, primary.batchCalls)
	assert.Zero(t, fallback.batchCalls)
}

func TestSelectorFallsBackAfterTwoFailures(t *testing.T) {
	primary := &scriptedProvider{name: "openai", dim: 8, failCount: 100}
	fallback := &scriptedProvider{name: "local", dim: 4}
	s := NewSelector(primary, fallback, 2)

	vecs, used, err := s.EmbedAll(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Equal(t, "local", used.Name())

	// One attempt plus one retry, then tripped for the run.
	assert.Equal(t, 2, primary.batchCalls)

	// The whole input is re-embedded with the fallback, never mixed.
	require.Len(t, vecs, 5)
	for _, v := range vecs {
		assert.Len(t, v, 4)
	}

	// Tripped state persists: subsequent calls skip the primary.
	_, used, err = s.EmbedAll(context.Background(), []string{"f"})
	require.NoError(t, err)
	assert.Equal(t, "local", used.Name())
	assert.Equal(t, 2, primary.batchCalls)
}

func TestSelectorBothProvidersFail(t *testing.T) {
	primary := &scriptedProvider{name: "openai", dim: 8, failCount: 100}
	fallback := &scriptedProvider{name: "local", dim: 4, failCount: 100}
	s := NewSelector(primary, fallback, 2)

	_, _, err := s.EmbedAll(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestSelectorEmptyInput(t *testing.T) {
	primary := &scriptedProvider{name: "openai", dim: 8}
	s := NewSelector(primary, &scriptedProvider{name: "local", dim: 4}, 2)

	vecs, used, err := s.EmbedAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Equal(t, "openai", used.Name())
	assert.Zero(t, primary.batchCalls)
}

func TestRemoteProviderEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]},{"embedding":[0.4,0.5,0.6]}]}`))
	}))
	defer server.Close()

	p := NewRemoteProvider(RemoteConfig{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		Model:     "text-embedding-3-small",
		Dimension: 3,
	})
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, 3, p.Dimension())

	vecs, err := p.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vecs[0])
}

func TestRemoteProviderDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]}]}`))
	}))
	defer server.Close()

	p := NewRemoteProvider(RemoteConfig{BaseURL: server.URL, Dimension: 3})
	_, err := p.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestRemoteProviderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	}))
	defer server.Close()

	p := NewRemoteProvider(RemoteConfig{BaseURL: server.URL, Dimension: 3})
	_, err := p.EmbedBatch(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestRemoteProviderBatchCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	p := NewRemoteProvider(RemoteConfig{BaseURL: server.URL, Dimension: 3})
	_, err := p.EmbedBatch(context.Background(), []string{"one", "two"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}
