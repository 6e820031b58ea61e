package embedding

import (
	"context"
	"fmt"
	"time"

	"consensuscore/internal/logging"

	"google.golang.org/genai"
)

// geminiMaxBatchItems is the largest request GenAI's EmbedContent accepts
// in a single call. The API returns HTTP 400 above this count.
const geminiMaxBatchItems = 100

// geminiEmbeddingDims is the output width requested from every GenAI call.
// gemini-embedding-001 natively supports 768, 1536, or 3072; 3072 is kept
// fixed here so every vector this engine produces is directly comparable
// regardless of which model string the caller configured.
const geminiEmbeddingDims = 3072

func dimsPtr(n int32) *int32 { return &n }

// GoogleEmbedder generates embeddings through Google's Gemini API. It
// holds no per-call state beyond the configured model and default task
// type, so a single instance is safe to share across goroutines.
type GoogleEmbedder struct {
	client          *genai.Client
	model           string
	defaultTaskType string
}

// NewGoogleEmbedder builds a GoogleEmbedder, applying the package defaults
// for model and task type when either is left blank.
func NewGoogleEmbedder(apiKey, model, taskType string) (*GoogleEmbedder, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewGoogleEmbedder")
	defer timer.Stop()

	if apiKey == "" {
		logging.Get(logging.CategoryEmbedding).Error("GenAI API key is required but not provided")
		return nil, fmt.Errorf("genai: API key is required")
	}

	if model == "" {
		model = "gemini-embedding-001"
	}
	if taskType == "" {
		taskType = "SEMANTIC_SIMILARITY"
	}

	logging.Embedding("genai: connecting client for model=%s task_type=%s", model, taskType)
	start := time.Now()
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	elapsed := time.Since(start)
	if err != nil {
		logging.Get(logging.CategoryEmbedding).Error("genai: client connect failed after %v: %v", elapsed, err)
		return nil, fmt.Errorf("genai: connect client: %w", err)
	}
	logging.Embedding("genai: client ready in %v", elapsed)

	return &GoogleEmbedder{client: client, model: model, defaultTaskType: taskType}, nil
}

// Embed generates an embedding vector for a single text.
func (e *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "genai.Embed")
	defer timer.Stop()

	vecs, err := e.embedContents(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("genai: embed returned no vectors")
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, transparently
// splitting the request into geminiMaxBatchItems-sized chunks run
// sequentially so a caller never has to think about the API's batch cap.
func (e *GoogleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "genai.EmbedBatch")
	defer timer.Stop()

	if len(texts) == 0 {
		return nil, nil
	}

	ranges := chunkRanges(len(texts), geminiMaxBatchItems)
	logging.Embedding("genai: embedding %d texts across %d batch(es)", len(texts), len(ranges))

	out := make([][]float32, 0, len(texts))
	for i, r := range ranges {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		chunk, err := e.embedContents(ctx, texts[r.start:r.end])
		if err != nil {
			return nil, fmt.Errorf("genai: batch %d/%d: %w", i+1, len(ranges), err)
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// embedContents is the single call-site wrapping genai's EmbedContent API;
// both Embed and EmbedBatch funnel through it so logging, dimensionality,
// and error wrapping stay in one place.
func (e *GoogleEmbedder) embedContents(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	start := time.Now()
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: dimsPtr(geminiEmbeddingDims),
	})
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("EmbedContent: %w (after %v)", err, elapsed)
	}
	logging.EmbeddingDebug("genai: EmbedContent returned %d vector(s) in %v", len(result.Embeddings), elapsed)

	vecs := make([][]float32, len(result.Embeddings))
	for i, v := range result.Embeddings {
		vecs[i] = v.Values
	}
	return vecs, nil
}

// byteRange is a half-open [start, end) slice window.
type byteRange struct{ start, end int }

// chunkRanges splits n items into ranges no larger than size, preserving
// order. size <= 0 is treated as "no chunking" (one range covering all n).
func chunkRanges(n, size int) []byteRange {
	if n == 0 {
		return nil
	}
	if size <= 0 || size >= n {
		return []byteRange{{0, n}}
	}
	ranges := make([]byteRange, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ranges = append(ranges, byteRange{start, end})
	}
	return ranges
}

// Dimensions reports the fixed output width every call requests.
func (e *GoogleEmbedder) Dimensions() int { return geminiEmbeddingDims }

// Name identifies this engine instance by its backing model.
func (e *GoogleEmbedder) Name() string { return fmt.Sprintf("genai:%s", e.model) }

// Close is a no-op; the genai client holds no connection to release.
func (e *GoogleEmbedder) Close() error { return nil }
