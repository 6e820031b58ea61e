package curation

import (
	"context"
	"path/filepath"
	"testing"

	"consensuscore/internal/store"
)

func newTestKnowledgeStore(t *testing.T) *store.KnowledgeStore {
	t.Helper()
	actor, err := store.NewActor(filepath.Join(t.TempDir(), "test.db"), 16)
	if err != nil {
		t.Fatalf("NewActor: %v", err)
	}
	t.Cleanup(func() { actor.Close() })
	ks, err := store.NewKnowledgeStore(context.Background(), actor)
	if err != nil {
		t.Fatalf("NewKnowledgeStore: %v", err)
	}
	return ks
}

func TestRecordCurated_StoresFactWithTopicAndEntities(t *testing.T) {
	ks := newTestKnowledgeStore(t)
	c := New(ks)
	ctx := context.Background()

	err := c.RecordCurated(ctx, "conv-1", "what is the Raft consensus algorithm?",
		"Raft is a consensus algorithm designed as an understandable alternative to Paxos.")
	if err != nil {
		t.Fatalf("RecordCurated: %v", err)
	}

	if ks.Size() != 1 {
		t.Fatalf("expected 1 stored fact, got %d", ks.Size())
	}
	if ids := ks.FindByTopic("raft"); len(ids) != 1 {
		t.Fatalf("expected fact indexed under topic raft, got %d ids", len(ids))
	}
	if ids := ks.FindByEntities([]string{"Paxos"}); len(ids) != 1 {
		t.Fatalf("expected fact indexed under entity Paxos, got %d ids", len(ids))
	}
}

func TestRecordCurated_IsIdempotent(t *testing.T) {
	ks := newTestKnowledgeStore(t)
	c := New(ks)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := c.RecordCurated(ctx, "conv-1", "what is Go?", "Go is a compiled language from Google."); err != nil {
			t.Fatalf("RecordCurated run %d: %v", i, err)
		}
	}
	if ks.Size() != 1 {
		t.Fatalf("expected duplicate curation to dedupe to 1 fact, got %d", ks.Size())
	}
}

func TestRecordCurated_SkipsEmptyAnswer(t *testing.T) {
	ks := newTestKnowledgeStore(t)
	c := New(ks)

	if err := c.RecordCurated(context.Background(), "conv-1", "question", "   "); err != nil {
		t.Fatalf("RecordCurated: %v", err)
	}
	if ks.Size() != 0 {
		t.Fatalf("expected no fact for an empty answer, got %d", ks.Size())
	}
}

func TestTopicOf(t *testing.T) {
	cases := []struct {
		question string
		want     string
	}{
		{"what is the Raft consensus algorithm?", "raft"},
		{"how do I deploy this?", "deploy"},
		{"", "general"},
		{"is it ok?", "general"},
	}
	for _, tc := range cases {
		if got := topicOf(tc.question); got != tc.want {
			t.Errorf("topicOf(%q) = %q, want %q", tc.question, got, tc.want)
		}
	}
}
