package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"consensuscore/internal/config"
)

// TestMain checks that closing an Actor always tears down its run-loop
// goroutine; a leak here would mean some code path returns from Close
// before the loop has actually exited.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestActor(t *testing.T) *Actor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	a, err := NewActor(path, 16)
	if err != nil {
		t.Fatalf("NewActor: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestActor_StoreFact_DedupsByFingerprint(t *testing.T) {
	a := newTestActor(t)
	ctx := context.Background()

	f := Fact{Fingerprint: "fp-1", Content: "water boils at 100C", Topic: "physics", Confidence: 1}
	id, err := a.StoreFact(ctx, f)
	if err != nil {
		t.Fatalf("StoreFact: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	if _, err := a.StoreFact(ctx, f); err == nil {
		t.Fatal("expected conflict error on duplicate fingerprint")
	}
}

func TestActor_CheckFactExists(t *testing.T) {
	a := newTestActor(t)
	ctx := context.Background()

	exists, err := a.CheckFactExists(ctx, "unknown-fp")
	if err != nil {
		t.Fatalf("CheckFactExists: %v", err)
	}
	if exists {
		t.Fatal("expected false for unknown fingerprint")
	}

	f := Fact{Fingerprint: "fp-2", Content: "x", Topic: "t"}
	if _, err := a.StoreFact(ctx, f); err != nil {
		t.Fatalf("StoreFact: %v", err)
	}
	exists, err = a.CheckFactExists(ctx, "fp-2")
	if err != nil {
		t.Fatalf("CheckFactExists: %v", err)
	}
	if !exists {
		t.Fatal("expected true after storing fact")
	}
}

func TestActor_RecordFactAccess(t *testing.T) {
	a := newTestActor(t)
	ctx := context.Background()

	id, err := a.StoreFact(ctx, Fact{Fingerprint: "fp-3", Content: "x", Topic: "t"})
	if err != nil {
		t.Fatalf("StoreFact: %v", err)
	}
	if err := a.RecordFactAccess(ctx, id); err != nil {
		t.Fatalf("RecordFactAccess: %v", err)
	}

	facts, err := a.GetAllFactsSortedByDate(ctx)
	if err != nil {
		t.Fatalf("GetAllFactsSortedByDate: %v", err)
	}
	if len(facts) != 1 || facts[0].AccessCount != 1 {
		t.Fatalf("expected 1 fact with access_count=1, got %+v", facts)
	}
}

func TestActor_LoadRecentFacts(t *testing.T) {
	a := newTestActor(t)
	ctx := context.Background()

	if _, err := a.StoreFact(ctx, Fact{Fingerprint: "fp-old", Content: "old", Topic: "t"}); err != nil {
		t.Fatalf("StoreFact: %v", err)
	}

	facts, err := a.LoadRecentFacts(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("LoadRecentFacts: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected 1 recent fact, got %d", len(facts))
	}

	facts, err = a.LoadRecentFacts(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("LoadRecentFacts: %v", err)
	}
	if len(facts) != 0 {
		t.Fatalf("expected 0 facts beyond cutoff, got %d", len(facts))
	}
}

func TestActor_ProfileLifecycle(t *testing.T) {
	a := newTestActor(t)
	ctx := context.Background()

	p1 := config.ConsensusProfile{ID: "p1", Name: "default", GeneratorModel: "m1", RefinerModel: "m1", ValidatorModel: "m1", CuratorModel: "m1", IsActive: true}
	p2 := config.ConsensusProfile{ID: "p2", Name: "fast", GeneratorModel: "m2", RefinerModel: "m2", ValidatorModel: "m2", CuratorModel: "m2"}

	if err := a.UpsertProfile(ctx, p1); err != nil {
		t.Fatalf("UpsertProfile p1: %v", err)
	}
	if err := a.UpsertProfile(ctx, p2); err != nil {
		t.Fatalf("UpsertProfile p2: %v", err)
	}

	active, err := a.GetActiveProfile(ctx)
	if err != nil {
		t.Fatalf("GetActiveProfile: %v", err)
	}
	if active.ID != "p1" {
		t.Fatalf("expected p1 active, got %s", active.ID)
	}

	if err := a.SetActiveProfile(ctx, "p2"); err != nil {
		t.Fatalf("SetActiveProfile: %v", err)
	}
	active, err = a.GetActiveProfile(ctx)
	if err != nil {
		t.Fatalf("GetActiveProfile: %v", err)
	}
	if active.ID != "p2" {
		t.Fatalf("expected p2 active after switch, got %s", active.ID)
	}

	byName, err := a.GetProfileByName(ctx, "default")
	if err != nil {
		t.Fatalf("GetProfileByName: %v", err)
	}
	if byName.ID != "p1" {
		t.Fatalf("expected p1 by name, got %s", byName.ID)
	}
}

func TestActor_ConversationAndStageUsage(t *testing.T) {
	a := newTestActor(t)
	ctx := context.Background()

	conv := Conversation{ID: "c1", ProfileID: "p1", Question: "why is the sky blue"}
	if err := a.StoreConversation(ctx, conv); err != nil {
		t.Fatalf("StoreConversation: %v", err)
	}
	if err := a.UpdateConversationCost(ctx, "c1", 0.01, 100, ""); err != nil {
		t.Fatalf("UpdateConversationCost (partial): %v", err)
	}
	if err := a.UpdateConversationCost(ctx, "c1", 0.02, 50, "Rayleigh scattering."); err != nil {
		t.Fatalf("UpdateConversationCost (final): %v", err)
	}

	usage := StageUsage{ConversationID: "c1", Stage: "generator", Model: "glm-4.7", PromptTokens: 10, CompletionTokens: 20, CostUSD: 0.01}
	if err := a.StoreStageUsage(ctx, usage); err != nil {
		t.Fatalf("StoreStageUsage: %v", err)
	}
}

func TestActor_LicenseKey(t *testing.T) {
	a := newTestActor(t)
	ctx := context.Background()

	if _, err := a.GetLicenseKey(ctx); err == nil {
		t.Fatal("expected error before license key is set")
	}
	if err := a.SetLicenseKey(ctx, "abc-123"); err != nil {
		t.Fatalf("SetLicenseKey: %v", err)
	}
	key, err := a.GetLicenseKey(ctx)
	if err != nil {
		t.Fatalf("GetLicenseKey: %v", err)
	}
	if key != "abc-123" {
		t.Fatalf("expected abc-123, got %s", key)
	}
}

func TestActor_HealthCheck(t *testing.T) {
	a := newTestActor(t)
	if err := a.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestActor_SubmitRespectsCancellation(t *testing.T) {
	a := newTestActor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.CheckFactExists(ctx, "x"); err == nil {
		t.Fatal("expected error from a cancelled context")
	}
}
