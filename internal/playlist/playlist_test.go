package playlist

import "testing"

func TestRunningMeanFirstSample(t *testing.T) {
	got := runningMean(nil, 0, 42)
	if got != 42 {
		t.Errorf("runningMean(nil, 0, 42) = %v, expected 42", got)
	}
}

func TestRunningMeanAccumulates(t *testing.T) {
	mean := 10.0
	got := runningMean(&mean, 1, 20)
	if got != 15 {
		t.Errorf("runningMean(10, 1, 20) = %v, expected 15", got)
	}
}

func TestRunningMeanManySamples(t *testing.T) {
	mean := 100.0
	got := runningMean(&mean, 9, 1100)
	if got != 200 {
		t.Errorf("runningMean(100, 9, 1100) = %v, expected 200", got)
	}
}
