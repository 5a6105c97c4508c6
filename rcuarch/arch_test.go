package rcuarch

import "testing"

func TestCyclesMonotonic(t *testing.T) {
	a := Cycles()
	CPURelax()
	b := Cycles()
	if b < a {
		t.Fatalf("Cycles() went backwards: %d then %d", a, b)
	}
}

func TestCacheLineSizePositive(t *testing.T) {
	if CacheLineSize <= 0 {
		t.Fatalf("CacheLineSize must be positive, got %d", CacheLineSize)
	}
}
