package embedding

import (
	"context"
	"fmt"
	"log"
)

const DefaultBatchSize = 10 // many embedding APIs cap batch size

// Selector picks the provider for one pipeline run. It tries the
// primary first; a failed call is retried once, and a second
// consecutive failure trips the primary for the rest of the run, after
// which calls go straight to the fallback. A switch discards any
// partial primary output and re-embeds the whole input with the
// fallback, so one file's chunk set never mixes providers.
type Selector struct {
	primary   Provider
	fallback  Provider
	batchSize int
	tripped   bool
}

func NewSelector(primary, fallback Provider, batchSize int) *Selector {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Selector{
		primary:   primary,
		fallback:  fallback,
		batchSize: batchSize,
	}
}

// EmbedAll embeds every text with a single provider and returns the
// vectors together with the provider that produced them. It fails only
// when both providers are exhausted.
func (s *Selector) EmbedAll(ctx context.Context, texts []string) ([][]float32, Provider, error) {
	if len(texts) == 0 {
		return nil, s.active(), nil
	}

	if !s.tripped && s.primary != nil {
		vecs, err := s.embedWithPrimary(ctx, texts)
		if err == nil {
			return vecs, s.primary, nil
		}
		log.Printf("primary embedding provider %q unavailable, falling back to %q: %v",
			s.primary.Name(), s.fallback.Name(), err)
	}

	vecs, err := s.embedBatches(ctx, s.fallback, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: both providers failed: %v", ErrProviderUnavailable, err)
	}
	return vecs, s.fallback, nil
}

func (s *Selector) active() Provider {
	if s.tripped || s.primary == nil {
		return s.fallback
	}
	return s.primary
}

// embedWithPrimary runs the batch loop against the primary, retrying a
// failed batch once. Two consecutive failures trip the primary.
func (s *Selector) embedWithPrimary(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		batched, err := s.primary.EmbedBatch(ctx, batch)
		if err != nil {
			batched, err = s.primary.EmbedBatch(ctx, batch)
			if err != nil {
				s.tripped = true
				return nil, err
			}
		}
		vecs = append(vecs, batched...)
	}
	return vecs, nil
}

func (s *Selector) embedBatches(ctx context.Context, p Provider, texts []string) ([][]float32, error) {
	var vecs [][]float32
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batched, err := p.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, batched...)
	}
	return vecs, nil
}
