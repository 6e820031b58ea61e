package precedent

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// OperationHash hashes the operation variant together with the question
// text, giving a stable key for precedent lookup.
func OperationHash(op Operation, question string) string {
	return digest(string(op.Kind) + "::" + question)
}

// ContextHash hashes the repo path, question, and related-file count into
// a stable key for precedent cache invalidation.
func ContextHash(ctx Context) string {
	return digest(fmt.Sprintf("%s::%s::%d", ctx.RepoPath, ctx.Question, len(ctx.RelatedFiles)))
}

func digest(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Similarity computes a weighted context similarity: 0.4 repository
// equality + 0.4 Jaccard on question words + 0.2 Jaccard on related files,
// clamped to [0,1].
func Similarity(a, b Context) float64 {
	repoEq := 0.0
	if a.RepoPath != "" && a.RepoPath == b.RepoPath {
		repoEq = 1.0
	}
	qSim := jaccard(wordSet(a.Question), wordSet(b.Question))
	fSim := jaccard(stringSet(a.RelatedFiles), stringSet(b.RelatedFiles))

	sim := 0.4*repoEq + 0.4*qSim + 0.2*fSim
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

func wordSet(s string) map[string]struct{} {
	return stringSet(strings.Fields(strings.ToLower(s)))
}

func stringSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}

// jaccard treats two empty sets as having zero overlap rather than
// perfect similarity — "no related files on either side" shouldn't by
// itself make two unrelated operations look alike.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	var intersection int
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
