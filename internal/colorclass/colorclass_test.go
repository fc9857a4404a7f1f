package colorclass

import (
	"testing"
	"time"
)

func TestAmbientBaselineRequiresWindowAndMinSamples(t *testing.T) {
	c := New()
	t0 := time.Unix(0, 0)
	c.Begin(t0)
	c.Accumulate(t0.Add(100*time.Millisecond), Reading{R: 0.2, G: 0.2, B: 0.2, CNorm: 0.10})
	if c.Ready() {
		t.Fatal("ready before window elapsed")
	}
	c.Accumulate(t0.Add(850*time.Millisecond), Reading{R: 0.2, G: 0.2, B: 0.2, CNorm: 0.10})
	if c.Ready() {
		t.Fatal("ready with only 2 samples")
	}
	c.Accumulate(t0.Add(900*time.Millisecond), Reading{R: 0.2, G: 0.2, B: 0.2, CNorm: 0.10})
	if !c.Ready() {
		t.Fatal("expected ready after window and 3 samples")
	}
}

func TestClassifyRedMatchesScenario(t *testing.T) {
	c := New()
	t0 := time.Unix(0, 0)
	c.Begin(t0)
	for i := 0; i < 3; i++ {
		c.Accumulate(t0.Add(time.Duration(i+1)*300*time.Millisecond), Reading{R: 0.10, G: 0.10, B: 0.10, CNorm: 0.10})
	}
	if !c.Ready() {
		t.Fatal("baseline not ready")
	}
	class, ok := c.Classify(Reading{R: 0.55, G: 0.30, B: 0.15, CNorm: 0.40})
	if !ok {
		t.Fatal("expected actionable reading")
	}
	if class != Red {
		t.Errorf("class = %v, want Red", class)
	}
	if !class.IsWristband() {
		t.Error("Red must be a valid wristband class")
	}
}

func TestReadingGateRejectsCloseToAmbient(t *testing.T) {
	c := New()
	t0 := time.Unix(0, 0)
	c.Begin(t0)
	for i := 0; i < 3; i++ {
		c.Accumulate(t0.Add(time.Duration(i+1)*300*time.Millisecond), Reading{R: 0.30, G: 0.30, B: 0.30, CNorm: 0.20})
	}
	// Same ambient-ish clear level, high chroma: should still fail the
	// delta-C gate since it barely departs from the baseline.
	_, ok := c.Classify(Reading{R: 0.50, G: 0.20, B: 0.10, CNorm: 0.21})
	if ok {
		t.Error("expected reading rejected as too close to ambient")
	}
}

func TestReadingGateRejectsLowChroma(t *testing.T) {
	c := New()
	t0 := time.Unix(0, 0)
	c.Begin(t0)
	for i := 0; i < 3; i++ {
		c.Accumulate(t0.Add(time.Duration(i+1)*300*time.Millisecond), Reading{R: 0.10, G: 0.10, B: 0.10, CNorm: 0.10})
	}
	_, ok := c.Classify(Reading{R: 0.40, G: 0.39, B: 0.38, CNorm: 0.40})
	if ok {
		t.Error("expected low-chroma reading rejected")
	}
}

func TestClassifyYellowAndGreen(t *testing.T) {
	c := New()
	t0 := time.Unix(0, 0)
	c.Begin(t0)
	for i := 0; i < 3; i++ {
		c.Accumulate(t0.Add(time.Duration(i+1)*300*time.Millisecond), Reading{R: 0.10, G: 0.10, B: 0.10, CNorm: 0.10})
	}

	if class, ok := c.Classify(Reading{R: 0.45, G: 0.46, B: 0.10, CNorm: 0.40}); !ok || class != Yellow {
		t.Errorf("got (%v,%v), want (Yellow,true)", class, ok)
	}
	if class, ok := c.Classify(Reading{R: 0.20, G: 0.50, B: 0.10, CNorm: 0.40}); !ok || class != Green {
		t.Errorf("got (%v,%v), want (Green,true)", class, ok)
	}
}

func TestClassifyBlackBelowDarkFloor(t *testing.T) {
	if got := classify(Reading{R: 0.2, G: 0.2, B: 0.2, CNorm: 0.01}); got != Black {
		t.Errorf("classify() = %v, want Black", got)
	}
}

func TestUnreadyClassifierRejectsEverything(t *testing.T) {
	c := New()
	if _, ok := c.Classify(Reading{R: 0.55, G: 0.30, B: 0.15, CNorm: 0.40}); ok {
		t.Error("expected classifier without a baseline to reject")
	}
}
