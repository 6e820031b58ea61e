// Package embedding provides vector embedding generation for semantic
// search, with an Ollama (local) and a Google GenAI (cloud) backend.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"consensuscore/internal/logging"

	"golang.org/x/sync/singleflight"
)

// EmbeddingEngine generates vector embeddings for text.
type EmbeddingEngine interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of generated vectors.
	Dimensions() int
	Name() string
}

// HealthChecker is optionally implemented by engines that can verify their
// backend is reachable before batch work starts.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config selects and parameterizes the embedding backend.
type Config struct {
	// Provider: "ollama" or "genai".
	Provider string `json:"provider"`

	OllamaEndpoint string `json:"ollama_endpoint"`
	OllamaModel    string `json:"ollama_model"`

	GenAIAPIKey string `json:"genai_api_key"`
	GenAIModel  string `json:"genai_model"`

	// TaskType for GenAI: SEMANTIC_SIMILARITY, RETRIEVAL_QUERY, or
	// RETRIEVAL_DOCUMENT.
	TaskType string `json:"task_type"`
}

// DefaultConfig defaults to a local Ollama server.
func DefaultConfig() Config {
	return Config{
		Provider:       "ollama",
		OllamaEndpoint: defaultOllamaEndpoint,
		OllamaModel:    defaultOllamaModel,
		GenAIModel:     "gemini-embedding-001",
		TaskType:       "SEMANTIC_SIMILARITY",
	}
}

// NewEngine builds the configured backend, wrapped so that concurrent
// duplicate requests coalesce into one upstream call.
func NewEngine(cfg Config) (EmbeddingEngine, error) {
	var engine EmbeddingEngine
	var err error
	switch cfg.Provider {
	case "ollama":
		engine, err = NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel)
	case "genai":
		engine, err = NewGoogleEmbedder(cfg.GenAIAPIKey, cfg.GenAIModel, cfg.TaskType)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'genai')", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	logging.Embedding("embedding engine ready: name=%s dims=%d", engine.Name(), engine.Dimensions())
	return NewDeduplicatingEngine(engine), nil
}

// dedupingEngine collapses concurrent Embed calls for identical text into a
// single upstream request, fanning the result out to every waiter.
type dedupingEngine struct {
	inner EmbeddingEngine
	group singleflight.Group
}

// NewDeduplicatingEngine wraps inner with request coalescing.
func NewDeduplicatingEngine(inner EmbeddingEngine) EmbeddingEngine {
	return &dedupingEngine{inner: inner}
}

func (e *dedupingEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err, shared := e.group.Do(text, func() (interface{}, error) {
		return e.inner.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logging.EmbeddingDebug("coalesced duplicate embed request (%d chars)", len(text))
	}
	return v.([]float32), nil
}

func (e *dedupingEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.inner.EmbedBatch(ctx, texts)
}

func (e *dedupingEngine) Dimensions() int { return e.inner.Dimensions() }
func (e *dedupingEngine) Name() string    { return e.inner.Name() }

// HealthCheck delegates to the wrapped engine when it supports health checks.
func (e *dedupingEngine) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1]. Zero-magnitude vectors compare as 0; mismatched dimensions are
// an error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// SimilarityResult is one FindTopK hit: the corpus index and its score.
type SimilarityResult struct {
	Index      int
	Similarity float64
}

// FindTopK returns the k corpus entries most similar to query by cosine
// similarity, best first. Corpus vectors whose dimensions don't match the
// query are skipped.
func FindTopK(query []float32, corpus [][]float32, k int) ([]SimilarityResult, error) {
	if k <= 0 {
		k = 10
	}

	results := make([]SimilarityResult, 0, len(corpus))
	skipped := 0
	for i, vec := range corpus {
		sim, err := CosineSimilarity(query, vec)
		if err != nil {
			skipped++
			continue
		}
		results = append(results, SimilarityResult{Index: i, Similarity: sim})
	}
	if skipped > 0 {
		logging.EmbeddingWarn("FindTopK skipped %d vectors with mismatched dimensions", skipped)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
