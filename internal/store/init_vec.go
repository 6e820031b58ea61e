//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// Only built with -tags sqlite_vec,cgo. Without it, Actor.vectorExt stays
// false and the vector store (C3) runs its brute-force cosine fallback.
func init() {
	vec.Auto()
}
