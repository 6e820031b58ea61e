package store

import (
	"context"
	"testing"
)

func TestActor_StoreAndSearchEmbeddings_BruteForce(t *testing.T) {
	a := newTestActor(t)
	ctx := context.Background()

	ids := make([]int64, 0, 3)
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}}
	for i, v := range vecs {
		id, err := a.StoreFact(ctx, Fact{Fingerprint: "fp-vec-" + string(rune('a'+i)), Content: "fact", Topic: "t"})
		if err != nil {
			t.Fatalf("StoreFact: %v", err)
		}
		if err := a.StoreEmbedding(ctx, id, v); err != nil {
			t.Fatalf("StoreEmbedding: %v", err)
		}
		ids = append(ids, id)
	}

	matches, err := a.SearchSimilar(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].FactID != ids[0] {
		t.Fatalf("expected closest match to be the identical vector's fact, got %d want %d", matches[0].FactID, ids[0])
	}
	if matches[0].Similarity < matches[1].Similarity {
		t.Fatalf("expected matches sorted by descending similarity")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if sim := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); sim != 1 {
		t.Fatalf("expected identical vectors to have similarity 1, got %f", sim)
	}
	if sim := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); sim != 0 {
		t.Fatalf("expected orthogonal vectors to have similarity 0, got %f", sim)
	}
	if sim := cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); sim != 0 {
		t.Fatalf("expected dimension mismatch to return 0, got %f", sim)
	}
}

func TestEncodeDecodeFloat32_RoundTrips(t *testing.T) {
	vec := []float32{1.5, -2.25, 3.125}
	decoded := decodeFloat32(encodeFloat32(vec))
	if len(decoded) != len(vec) {
		t.Fatalf("expected %d values, got %d", len(vec), len(decoded))
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Fatalf("round trip mismatch at %d: got %f want %f", i, decoded[i], vec[i])
		}
	}
}
