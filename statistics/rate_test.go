package statistics

import "testing"

func TestRecentNSum(t *testing.T) {
	r := &Rate{}
	for i := 0; i < 10; i++ {
		r.Add(2.0)
	}
	if got := r.RecentNSum(5); got != 10.0 {
		t.Fatal("wrong sum:", got)
	}
	if got := r.RecentNAvg(5); got != 2.0 {
		t.Fatal("wrong avg:", got)
	}
}

func TestRingWraps(t *testing.T) {
	r := &Rate{}
	for i := 0; i < ringSize+10; i++ {
		r.Add(1.0)
	}
	if got := r.RecentNSum(ringSize); got != float64(ringSize) {
		t.Fatal("wrong wrapped sum:", got)
	}
}

func TestAvgZeroWindow(t *testing.T) {
	r := &Rate{}
	if got := r.RecentNAvg(0); got != 0 {
		t.Fatal("expected 0 for empty window, got", got)
	}
}
