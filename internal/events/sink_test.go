package events

import "testing"

func TestChannelSink_EmitDeliversWithinCapacity(t *testing.T) {
	s := NewChannelSink(2)
	s.Emit(Event{Kind: KindStageStarted, StageName: "generator"})
	s.Emit(Event{Kind: KindStageCompleted, StageName: "generator"})

	first := <-s.Events()
	if first.Kind != KindStageStarted {
		t.Errorf("first event kind = %s, want StageStarted", first.Kind)
	}
	second := <-s.Events()
	if second.Kind != KindStageCompleted {
		t.Errorf("second event kind = %s, want StageCompleted", second.Kind)
	}
}

func TestChannelSink_EmitDropsWhenFullInsteadOfBlocking(t *testing.T) {
	s := NewChannelSink(1)
	s.Emit(Event{Kind: KindStageStarted})

	// With the channel already full and nobody draining it, Emit must
	// return immediately rather than blocking the caller. Best-effort UI
	// events are fine to drop under load. If Emit blocked here, this test
	// would hang until the test binary's own timeout.
	s.Emit(Event{Kind: KindStageToken, Token: "x"})

	// Only the first event is still buffered; the second was dropped.
	e := <-s.Events()
	if e.Kind != KindStageStarted {
		t.Errorf("buffered event kind = %s, want StageStarted (second Emit should have been dropped)", e.Kind)
	}
	select {
	case extra := <-s.Events():
		t.Fatalf("expected channel to have only one buffered event, got extra %+v", extra)
	default:
	}
}

func TestChannelSink_EmitStampsTimestampWhenZero(t *testing.T) {
	s := NewChannelSink(1)
	s.Emit(Event{Kind: KindOpenFile, Path: "/a/b.go"})
	e := <-s.Events()
	if e.Timestamp.IsZero() {
		t.Error("expected Emit to stamp a zero Timestamp with time.Now()")
	}
}

func TestNoopSink_DiscardsEverything(t *testing.T) {
	var s Sink = NoopSink{}
	// Must not panic; there is nothing to observe beyond that.
	s.Emit(Event{Kind: KindApprovalRequested, GateID: "gate-1"})
}
