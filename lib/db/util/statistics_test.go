package util

import (
	"math"
	"testing"
)

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	if h.MedianEstimate() != 0 || h.AverageSize() != 0 {
		t.Fatalf("Expected empty histogram to report 0")
	}

	for i := 0; i < 10; i++ {
		h.AddSample(10) // bucket (8,16]
	}
	h.AddSample(5000) // bucket (4096,16384]

	if got := h.GetCount(); got != 11 {
		t.Errorf("Expected 11 samples, got %d", got)
	}
	if got := h.MedianEstimate(); got != 12 {
		t.Errorf("Expected median estimate 12, got %d", got)
	}
	if got := h.GetPercentileEstimate(100); got != (4096+16384)/2 {
		t.Errorf("Expected p100 estimate %d, got %d", (4096+16384)/2, got)
	}
	if got := h.AverageSize(); got != (10*10+5000)/11 {
		t.Errorf("Unexpected average %d", got)
	}

	h.AddSample(10 << 20)
	if got := h.GetPercentileEstimate(100); got != 2<<20 {
		t.Errorf("Expected overflow bucket estimate %d, got %d", 2<<20, got)
	}
}

func TestDistributionStats(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10, 10})
	if even.DistributionQuality != 1 {
		t.Errorf("Expected perfect quality, got %f", even.DistributionQuality)
	}

	skewed := NewDistributionStats([]float64{0, 0, 0, 40})
	if skewed.DistributionQuality >= 0.5 {
		t.Errorf("Expected poor quality, got %f", skewed.DistributionQuality)
	}
	if math.Abs(skewed.Mean-10) > 1e-9 {
		t.Errorf("Expected mean 10, got %f", skewed.Mean)
	}

	if empty := NewStats(nil); empty != (Stats{}) {
		t.Errorf("Expected zero stats for no values")
	}
}

func TestHashString(t *testing.T) {
	if HashString("topic", 0) != HashString("topic", 0) {
		t.Errorf("Expected hash to be deterministic")
	}
	if HashString("topic", 0) == HashString("topic", 1) {
		t.Errorf("Expected seed to change the hash")
	}
	if HashString("a", 0) == HashString("b", 0) {
		t.Errorf("Expected different inputs to hash differently")
	}
}
