package ppg

import (
	"math"
	"testing"
	"time"
)

var testThresholds = Thresholds{FingerOnMin: 3000, FingerOffMin: 2000}

// feedSineWave pushes n samples of a freqHz sine at the given period
// starting at t0 and returns the time the next sample would be due.
func feedSineWave(e *Estimator, t0 time.Time, period time.Duration, n int, freqHz float64) time.Time {
	t := t0
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * freqHz * t.Sub(t0).Seconds()
		x := 5000 + 1000*math.Sin(phase)
		e.Step(t, uint32(x))
		t = t.Add(period)
	}
	return t
}

func TestSineWaveReachesDoneWithExpectedBPM(t *testing.T) {
	e := New(testThresholds)
	t0 := time.Unix(0, 0)
	period := 10 * time.Millisecond
	n := int(22 * time.Second / period)
	feedSineWave(e, t0, period, n, 1.0)

	if e.State() != Done {
		t.Fatalf("state = %v, want Done", e.State())
	}
	if got := e.ValidCount(); got != 20 {
		t.Errorf("ValidCount() = %d, want 20", got)
	}
	bpm, ok := e.FinalBPM()
	if !ok {
		t.Fatal("FinalBPM() not available")
	}
	if bpm < 58 || bpm > 62 {
		t.Errorf("FinalBPM() = %v, want in [58,62]", bpm)
	}
}

func TestWaitFingerUntilPresence(t *testing.T) {
	e := New(testThresholds)
	t0 := time.Unix(0, 0)
	e.Step(t0, 100) // below FingerOnMin
	if e.State() != WaitFinger {
		t.Fatalf("state = %v, want WaitFinger", e.State())
	}
	e.Step(t0.Add(10*time.Millisecond), 5000)
	if e.State() != Settle {
		t.Fatalf("state = %v, want Settle", e.State())
	}
}

func TestFingerDropoutDuringSettleReturnsToWaitFinger(t *testing.T) {
	e := New(testThresholds)
	t0 := time.Unix(0, 0)
	e.Step(t0, 5000)
	if e.State() != Settle {
		t.Fatalf("state = %v, want Settle", e.State())
	}
	// Held below FingerOffMin for longer than the debounce interval.
	e.Step(t0.Add(10*time.Millisecond), 100)
	t1 := t0.Add(400 * time.Millisecond)
	e.Step(t1, 100)
	if e.State() != WaitFinger {
		t.Fatalf("state = %v, want WaitFinger after prolonged dropout", e.State())
	}
}

func TestRunToleratesBriefDropout(t *testing.T) {
	e := New(testThresholds)
	t0 := time.Unix(0, 0)
	period := 10 * time.Millisecond
	t1 := feedSineWave(e, t0, period, int(2*time.Second/period)+1, 1.0)
	if e.State() != Run {
		t.Fatalf("state = %v, want Run after settle", e.State())
	}
	// A single brief dropout sample (<=350ms) must not reset to WaitFinger.
	e.Step(t1, 100)
	if e.State() != Run {
		t.Errorf("state = %v, want Run (brief dropout tolerated)", e.State())
	}
}

func TestGlobalTimeoutWithTooFewSamplesRevertsToWaitFinger(t *testing.T) {
	e := New(testThresholds)
	t0 := time.Unix(0, 0)
	period := 10 * time.Millisecond
	// Settle, then hold a flat signal in Run (no beats ever detected) until
	// the 20s hard timeout elapses.
	t1 := feedSineWave(e, t0, period, int(2*time.Second/period)+1, 1.0)
	now := t1
	for i := 0; i < int(20*time.Second/period); i++ {
		e.Step(now, 5000)
		now = now.Add(period)
	}
	if e.State() != WaitFinger {
		t.Errorf("state = %v, want WaitFinger (timeout with <3 accepted samples)", e.State())
	}
}

func TestTrimmedMean(t *testing.T) {
	tests := []struct {
		name string
		v    []float64
		trim int
		want float64
	}{
		{name: "n=5 trim=2 is the median", v: []float64{1, 2, 3, 4, 100}, trim: 2, want: 3},
		{name: "n<=2*trim falls back to mean", v: []float64{1, 2}, trim: 2, want: 1.5},
		{name: "unsorted input", v: []float64{5, 1, 3, 2, 4}, trim: 1, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trimmedMean(tt.v, tt.trim); got != tt.want {
				t.Errorf("trimmedMean(%v, %d) = %v, want %v", tt.v, tt.trim, got, tt.want)
			}
		})
	}
}
