// Package ppg implements the adaptive-acceptance beat-interval pipeline
// that turns a stream of raw IR samples from the pulse-oximeter front end
// into a single, stable final BPM.
//
// The working set (DC EMA, RMS, RR ring, accepted-BPM ring) is owned
// exclusively by an Estimator value; callers construct a fresh one per
// session, matching the Design Notes in SPEC_FULL.md that forbid
// package-level mutable state.
package ppg

import (
	"math"
	"sort"
	"time"

	"github.com/theralink/kiosk/internal/ring"
)

// State is one of the PPG estimator's lifecycle states.
type State int

const (
	Idle State = iota
	WaitFinger
	Settle
	Run
	Done
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case WaitFinger:
		return "WaitFinger"
	case Settle:
		return "Settle"
	case Run:
		return "Run"
	case Done:
		return "Done"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Tunables, named per SPEC_FULL.md §4.1 rather than left as magic numbers.
const (
	fingerDebounce = 300 * time.Millisecond
	dropoutGrace   = 350 * time.Millisecond

	settleWindow = 2 * time.Second

	dcAlpha  = 0.01
	rmsBeta  = 0.03
	beatK    = 0.45
	refrac   = 280 * time.Millisecond
	rrMin    = 280 * time.Millisecond
	rrMax    = 1500 * time.Millisecond
	rrRingSz = 8

	acceptPeriod  = 200 * time.Millisecond
	liveSmoothing = 0.18 // live = (1-smoothing)*live + smoothing*bpm_med
	liveMin       = 35.0
	liveMax       = 180.0
	stallBreak    = 2500 * time.Millisecond
	acceptTarget  = 20

	settleTimeout = 20 * time.Second
	minFinalRing  = 3
	trimEachEnd   = 2
)

// Thresholds carries the part-specific finger-presence gate (see
// devices/max3010x.Thresholds); the estimator does not know about I²C.
type Thresholds struct {
	FingerOnMin  uint32
	FingerOffMin uint32
}

// Estimator is the PPG working set plus state machine described in
// SPEC_FULL.md §4.1. The zero value is not ready for use; construct with
// New.
type Estimator struct {
	th Thresholds

	state State

	// Finger gate.
	belowOffSince time.Time

	// Settle accumulation.
	settleStart  time.Time
	settleSum    float64
	settleSumSq  float64
	settleN      int

	// Run working set.
	dc     float64
	rms    float64
	prevAC float64

	lastBeat time.Time
	rrRing   *ring.Buffer[time.Duration]
	live     float64

	lastAcceptPoll time.Time // gates the ~200ms acceptance-evaluation cadence
	lastAcceptedAt time.Time // time of the last successful acceptance (stall-break)
	acceptedRing   *ring.Buffer[float64]

	runStart time.Time

	finalBPM     float64
	haveFinalBPM bool

	errStreak int
}

// New returns a fresh Estimator for the given sensor thresholds.
func New(th Thresholds) *Estimator {
	return &Estimator{
		th:           th,
		state:        WaitFinger,
		rrRing:       ring.NewBuffer[time.Duration](rrRingSz),
		acceptedRing: ring.NewBuffer[float64](acceptTarget),
	}
}

// State reports the current lifecycle state.
func (e *Estimator) State() State { return e.state }

// LiveBPM reports the current smoothed BPM estimate (meaningful in Run).
func (e *Estimator) LiveBPM() float64 { return e.live }

// ValidCount reports how many samples have been accepted into the final
// ring so far.
func (e *Estimator) ValidCount() int { return e.acceptedRing.Len() }

// FinalBPM reports the frozen final BPM, if the estimator has reached Done
// with enough accepted samples.
func (e *Estimator) FinalBPM() (float64, bool) { return e.finalBPM, e.haveFinalBPM }

// Reset returns the estimator to WaitFinger, discarding all working state.
// Used on button-B cancellation and on entry to a fresh session.
func (e *Estimator) Reset() {
	*e = *New(e.th)
}

// ReadError reports a bus transient on this tick; it does not advance
// state by itself, but repeated calls eventually surface as Error, per the
// SensorAbsent/BusTransient distinction in SPEC_FULL.md §7.
func (e *Estimator) ReadError() {
	e.errStreak++
	if e.errStreak >= 10 {
		e.state = Error
	}
}

// Step processes one raw IR sample at time now and advances the state
// machine by at most one tick.
func (e *Estimator) Step(now time.Time, rawIR uint32) {
	e.errStreak = 0

	switch e.state {
	case Idle, Error:
		return
	case WaitFinger:
		e.stepWaitFinger(now, rawIR)
	case Settle:
		e.stepSettle(now, rawIR)
	case Run:
		e.stepRun(now, rawIR)
	case Done:
		// No further processing; caller must Reset() to start a new session.
	}
}

func (e *Estimator) stepWaitFinger(now time.Time, rawIR uint32) {
	if rawIR > e.th.FingerOnMin {
		e.state = Settle
		e.settleStart = now
		e.settleSum, e.settleSumSq = 0, 0
		e.settleN = 0
	}
}

func (e *Estimator) stepSettle(now time.Time, rawIR uint32) {
	if !e.fingerStillPresent(now, rawIR) {
		e.state = WaitFinger
		return
	}
	x := float64(rawIR)
	e.settleSum += x
	e.settleSumSq += x * x
	e.settleN++
	if now.Sub(e.settleStart) < settleWindow {
		return
	}
	mean := e.settleSum / float64(e.settleN)
	variance := e.settleSumSq/float64(e.settleN) - mean*mean
	if variance < 0 {
		variance = 0
	}
	rms := math.Sqrt(variance)
	if rms < 1 {
		rms = 1
	}
	e.dc = mean
	e.rms = rms
	e.prevAC = 0
	e.runStart = now
	e.lastAcceptPoll = now
	e.lastAcceptedAt = now
	e.state = Run
}

// fingerStillPresent implements the debounced finger-off gate: presence is
// lost only after FingerOffMin has held for the debounce interval.
func (e *Estimator) fingerStillPresent(now time.Time, rawIR uint32) bool {
	if rawIR >= e.th.FingerOffMin {
		e.belowOffSince = time.Time{}
		return true
	}
	if e.belowOffSince.IsZero() {
		e.belowOffSince = now
		return true
	}
	return now.Sub(e.belowOffSince) < fingerDebounce
}

func (e *Estimator) stepRun(now time.Time, rawIR uint32) {
	if !e.fingerPresentInRun(now, rawIR) {
		e.state = WaitFinger
		return
	}

	x := float64(rawIR)
	e.dc += dcAlpha * (x - e.dc)
	ac := x - e.dc
	e.rms = math.Sqrt((1-rmsBeta)*e.rms*e.rms + rmsBeta*ac*ac)
	if e.rms <= 0 {
		e.rms = 1e-9
	}

	threshold := beatK * e.rms
	beat := e.prevAC <= threshold && ac > threshold && now.Sub(e.lastBeat) >= refrac
	e.prevAC = ac

	if beat {
		e.onBeat(now)
	}

	e.maybeAccept(now)
	e.maybeFinishOnTimeout(now)
}

// fingerPresentInRun tolerates brief dropouts (<=350ms) without resetting,
// per SPEC_FULL.md §4.1's Run->WaitFinger tolerance note.
func (e *Estimator) fingerPresentInRun(now time.Time, rawIR uint32) bool {
	if rawIR >= e.th.FingerOffMin {
		e.belowOffSince = time.Time{}
		return true
	}
	if e.belowOffSince.IsZero() {
		e.belowOffSince = now
	}
	return now.Sub(e.belowOffSince) <= dropoutGrace
}

func (e *Estimator) onBeat(now time.Time) {
	if !e.lastBeat.IsZero() {
		d := now.Sub(e.lastBeat)
		if d > rrMin && d <= rrMax {
			e.rrRing.Push(d)
		}
	}
	e.lastBeat = now

	if e.rrRing.Len() >= 3 {
		med := medianDuration(e.rrRing.Slice())
		bpmMed := 60000.0 / float64(med.Milliseconds())
		if e.live == 0 {
			e.live = bpmMed
		} else {
			e.live = (1-liveSmoothing)*e.live + liveSmoothing*bpmMed
		}
	}
}

func (e *Estimator) maybeAccept(now time.Time) {
	if now.Sub(e.lastAcceptPoll) < acceptPeriod {
		return
	}
	e.lastAcceptPoll = now
	if e.live <= liveMin || e.live >= liveMax {
		return
	}

	n := e.acceptedRing.Len()
	var tol float64
	switch {
	case n < 5:
		tol = 0.30
	case n < 10:
		tol = 0.24
	case n < 15:
		tol = 0.20
	default:
		tol = 0.18
	}

	accept := n == 0
	if n > 0 {
		med := median(e.acceptedRing.Slice())
		denom := math.Max(1, med)
		if math.Abs(e.live-med)/denom <= tol {
			accept = true
		}
	}
	if !accept && now.Sub(e.lastAcceptedAt) > stallBreak {
		accept = true
	}
	if accept {
		e.acceptedRing.Push(e.live)
		e.lastAcceptedAt = now
	}
	if e.acceptedRing.Len() >= acceptTarget {
		e.finish(now)
	}
}

func (e *Estimator) maybeFinishOnTimeout(now time.Time) {
	if now.Sub(e.runStart) < settleTimeout {
		return
	}
	if e.acceptedRing.Len() >= minFinalRing {
		e.finish(now)
		return
	}
	e.state = WaitFinger
}

func (e *Estimator) finish(now time.Time) {
	e.finalBPM = trimmedMean(e.acceptedRing.Slice(), trimEachEnd)
	e.haveFinalBPM = true
	e.state = Done
}

func medianDuration(v []time.Duration) time.Duration {
	s := append([]time.Duration(nil), v...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s[len(s)/2]
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// trimmedMean is the arithmetic mean of the sorted slice after discarding
// trim elements from each end. If there are not enough elements to trim,
// it falls back to the plain mean.
func trimmedMean(v []float64, trim int) float64 {
	n := len(v)
	if n == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	if n <= 2*trim {
		sum := 0.0
		for _, x := range s {
			sum += x
		}
		return sum / float64(n)
	}
	sum := 0.0
	for _, x := range s[trim : n-trim] {
		sum += x
	}
	return sum / float64(n-2*trim)
}
