package storage

import "testing"

func TestPartitionYears(t *testing.T) {
	years := PartitionYears(2017)
	want := []int{1950, 2000, 2010, 2015, 2016, 2017}

	if len(years) != len(want) {
		t.Fatalf("got %d years, want %d: %v", len(years), len(want), years)
	}
	for i, y := range want {
		if years[i] != y {
			t.Errorf("years[%d] = %d, want %d", i, years[i], y)
		}
	}
}
