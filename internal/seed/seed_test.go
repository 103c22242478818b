package seed

import "testing"

func TestGeometricSampleNonNegative(t *testing.T) {
	for _, p := range []float64{0.0001, 0.2, 0.5, 0.9999} {
		for i := 0; i < 100; i++ {
			if n := geometricSample(p); n < 0 {
				t.Fatalf("geometricSample(%v) returned negative sample %d", p, n)
			}
		}
	}
}

func TestGeometricSampleEdgeProbabilities(t *testing.T) {
	if n := geometricSample(0); n != 0 {
		t.Errorf("geometricSample(0) = %d, want 0", n)
	}
	if n := geometricSample(1); n != 0 {
		t.Errorf("geometricSample(1) = %d, want 0", n)
	}
}

func TestDefaultParamsMatchesOriginalGenerator(t *testing.T) {
	p := DefaultParams()
	if p.NumSeries != 100_000 {
		t.Errorf("NumSeries = %d, want 100000", p.NumSeries)
	}
	if p.MeanSeriesLength != 10_000 {
		t.Errorf("MeanSeriesLength = %d, want 10000", p.MeanSeriesLength)
	}
}
