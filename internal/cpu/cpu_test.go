package cpu

import "testing"

func TestCountNonNegative(t *testing.T) {
	if Count() < 0 {
		t.Fatalf("Count() returned negative: %d", Count())
	}
}

func TestGetCPUConsistentWithOK(t *testing.T) {
	c, ok := GetCPU()
	if !ok {
		return
	}
	if c < 0 {
		t.Fatalf("GetCPU reported ok=true but negative cpu %d", c)
	}
}
