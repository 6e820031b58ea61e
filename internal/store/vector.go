package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"sort"
	"strconv"

	"consensuscore/internal/errs"
	"consensuscore/internal/logging"
)

// VectorMatch is one result of a similarity search: the fact id the
// embedding belongs to and its similarity score against the query vector.
type VectorMatch struct {
	FactID     int64
	Similarity float64
}

// detectVecExtension probes for a working vec0 virtual table. When the
// binary was built with the sqlite_vec cgo tag (see init_vec.go), this
// succeeds and the actor does real ANN search; otherwise every search falls
// back to the brute-force scan below.
func detectVecExtension(db *sql.DB) bool {
	if _, err := db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_index USING vec0(embedding float[1])"); err != nil {
		return false
	}
	_, _ = db.Exec("DROP TABLE IF EXISTS vec_index")
	return true
}

// StoreEmbedding persists the embedding vector for a fact. It always writes
// the plain `vectors` table (the brute-force fallback's data source) and,
// when the vec0 extension is available, also mirrors it into a per-
// dimension `vec_index_<dims>` virtual table for ANN search.
func (a *Actor) StoreEmbedding(ctx context.Context, factID int64, vec []float32) error {
	blob := encodeFloat32(vec)
	_, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		if _, err := db.Exec(`INSERT INTO vectors (fact_id, embedding, dims) VALUES (?, ?, ?)`, factID, blob, len(vec)); err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		if a.vectorExt {
			table := vecIndexTable(len(vec))
			if _, err := db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS ` + table + ` USING vec0(embedding float[` + strconv.Itoa(len(vec)) + `])`); err != nil {
				logging.VectorDebug("vec index create failed for dims=%d: %v", len(vec), err)
				return nil, nil
			}
			if _, err := db.Exec(`INSERT INTO `+table+`(rowid, embedding) VALUES (?, ?)`, factID, blob); err != nil {
				logging.VectorDebug("vec index insert failed for fact %d: %v", factID, err)
			}
		}
		return nil, nil
	})
	return err
}

// SearchSimilar returns the limit facts whose embeddings are most similar to
// query. It uses the vec0 ANN index when available, falling back to an
// in-process brute-force cosine scan over every stored embedding of the
// same dimensionality otherwise.
func (a *Actor) SearchSimilar(ctx context.Context, query []float32, limit int) ([]VectorMatch, error) {
	if limit <= 0 {
		limit = 10
	}
	v, err := a.submit(ctx, func(db *sql.DB) (any, error) {
		if a.vectorExt {
			if matches, err := searchVecIndex(db, query, limit); err == nil {
				return matches, nil
			}
			logging.VectorDebug("vec index search failed, falling back to brute force")
		}
		return searchBruteForce(db, query, limit)
	})
	if err != nil {
		return nil, err
	}
	return v.([]VectorMatch), nil
}

func searchVecIndex(db *sql.DB, query []float32, limit int) ([]VectorMatch, error) {
	table := vecIndexTable(len(query))
	blob := encodeFloat32(query)
	rows, err := db.Query(
		`SELECT rowid, vec_distance_cosine(embedding, ?) AS dist FROM `+table+` ORDER BY dist ASC LIMIT ?`,
		blob, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VectorMatch
	for rows.Next() {
		var id int64
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, err
		}
		out = append(out, VectorMatch{FactID: id, Similarity: 1 - dist})
	}
	return out, rows.Err()
}

func searchBruteForce(db *sql.DB, query []float32, limit int) ([]VectorMatch, error) {
	rows, err := db.Query(`SELECT fact_id, embedding FROM vectors WHERE dims = ?`, len(query))
	if err != nil {
		return nil, errs.WrapErr(errs.ErrInternal, err)
	}
	defer rows.Close()

	var candidates []VectorMatch
	for rows.Next() {
		var factID int64
		var blob []byte
		if err := rows.Scan(&factID, &blob); err != nil {
			return nil, errs.WrapErr(errs.ErrInternal, err)
		}
		vec := decodeFloat32(blob)
		candidates = append(candidates, VectorMatch{FactID: factID, Similarity: cosineSimilarity(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.WrapErr(errs.ErrInternal, err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Similarity > candidates[j].Similarity })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func encodeFloat32(vec []float32) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, vec)
	return buf.Bytes()
}

func decodeFloat32(blob []byte) []float32 {
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}

func vecIndexTable(dims int) string {
	return "vec_index_" + strconv.Itoa(dims)
}
