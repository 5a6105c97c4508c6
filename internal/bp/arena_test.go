package bp

import "testing"

func TestClaimReturnsDistinctZeroedSlots(t *testing.T) {
	var a Arena
	s1, err := a.Claim()
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	s2, err := a.Claim()
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if s1 == s2 {
		t.Fatal("two live claims returned the same slot")
	}
	s1.Ctr.Store(7)
	if s2.Ctr.Load() != 0 {
		t.Fatal("slots alias each other")
	}
}

func TestGrowsAcrossChunkBoundary(t *testing.T) {
	var a Arena
	seen := make(map[*Slot]bool)
	for i := 0; i < slotsPerChunk*2+5; i++ {
		s, err := a.Claim()
		if err != nil {
			t.Fatalf("Claim at %d: %v", i, err)
		}
		if seen[s] {
			t.Fatalf("claim %d returned a slot already in use", i)
		}
		seen[s] = true
	}
}

func TestReleaseRecyclesSlot(t *testing.T) {
	var a Arena
	s, err := a.Claim()
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	s.Ctr.Store(42)
	a.Release(s)
	s2, err := a.Claim()
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if s2 != s {
		t.Fatal("Release/Claim did not recycle the slot")
	}
	if s2.Ctr.Load() != 0 {
		t.Fatal("recycled slot should be zeroed")
	}
}

func TestEachVisitsEveryClaimedSlot(t *testing.T) {
	var a Arena
	const n = slotsPerChunk + 3
	for i := 0; i < n; i++ {
		s, err := a.Claim()
		if err != nil {
			t.Fatalf("Claim at %d: %v", i, err)
		}
		s.Ctr.Store(uint64(i + 1))
	}
	count := 0
	var sum uint64
	a.Each(func(s *Slot) {
		count++
		sum += s.Ctr.Load()
	})
	if count != n {
		t.Fatalf("Each visited %d slots, want %d", count, n)
	}
	want := uint64(n * (n + 1) / 2)
	if sum != want {
		t.Fatalf("Each sum = %d, want %d", sum, want)
	}
}
