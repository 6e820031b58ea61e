package store

import "testing"

func TestComputeFingerprint_StableAndDistinguishing(t *testing.T) {
	a := ComputeFingerprint("topic", "content")
	b := ComputeFingerprint("topic", "content")
	if a != b {
		t.Fatal("expected identical inputs to produce identical fingerprints")
	}

	c := ComputeFingerprint("topic", "different content")
	if a == c {
		t.Fatal("expected different content to produce different fingerprints")
	}

	d := ComputeFingerprint("different topic", "content")
	if a == d {
		t.Fatal("expected different topic to produce different fingerprints")
	}
}
