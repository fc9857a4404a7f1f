// Package session drives the kiosk's master state machine: it owns the
// current session state, feeds raw sensor samples to the PPG estimator and
// color classifier, consults the survey via the web surface's token
// protocol, scores the result, and persists to the aggregation store.
package session

import (
	"fmt"
	"time"

	"github.com/theralink/kiosk/internal/colorclass"
	"github.com/theralink/kiosk/internal/display"
	"github.com/theralink/kiosk/internal/input"
	"github.com/theralink/kiosk/internal/ppg"
	"github.com/theralink/kiosk/internal/store"
	"github.com/theralink/kiosk/internal/webap"
)

// State is one of the session orchestrator's top-level states, per
// spec.md §4.3's transition table.
type State int

const (
	Ask State = iota
	OxiRun
	ShowBpm
	SurveyWait
	TriageResult
	ColorIntro
	LevelPrompt
	ColorLoop
	SaveAndDone
	Report
)

func (s State) String() string {
	switch s {
	case Ask:
		return "Ask"
	case OxiRun:
		return "OxiRun"
	case ShowBpm:
		return "ShowBpm"
	case SurveyWait:
		return "SurveyWait"
	case TriageResult:
		return "TriageResult"
	case ColorIntro:
		return "ColorIntro"
	case LevelPrompt:
		return "LevelPrompt"
	case ColorLoop:
		return "ColorLoop"
	case SaveAndDone:
		return "SaveAndDone"
	case Report:
		return "Report"
	default:
		return "Unknown"
	}
}

const (
	showBpmDelay    = 1500 * time.Millisecond
	triageDelay     = 3 * time.Second
	colorIntroDelay = 5 * time.Second
	maxSensorProbes = 3
)

// levelPrompts is the order in which the three device-side 1..4 level
// prompts (spec.md §6) are asked, one per LevelPrompt visit.
var levelPrompts = [...]string{"anxiety", "energy", "humor"}

// PPGSource is satisfied by any device able to produce raw IR samples for
// the PPG estimator; devices/max3010x.Dev implements it.
type PPGSource interface {
	Sample() (ir, red uint32, err error)
}

// ColorSource is satisfied by any device able to produce a normalized RGBC
// reading for the color classifier; devices/tcs3472.Dev implements it.
type ColorSource interface {
	ReadNormalized() (r, g, b, cNorm float64, err error)
}

// Session is the kiosk's master orchestrator. It is driven by a single
// Update call per main-loop tick; it is not safe for concurrent use.
type Session struct {
	state          State
	stateEnteredAt time.Time

	ppgEstimator *ppg.Estimator
	ppgSource    PPGSource

	colorClassifier *colorclass.Classifier
	colorSource     ColorSource

	store  *store.Store
	web    *webap.Server
	mirror *display.Mirror

	btnA, btnB input.Button
	joy        input.Joystick

	baselineToken uint32
	surveyBits    uint16
	lastBPM       *float64

	risk        int
	recommended colorclass.Class

	levelIdx int
	levels   [3]int

	sensorProbes int
	sensorAbsent bool

	statusLine string
}

// New builds a Session wired to its sensor sources, store, web surface and
// display mirror, starting in Ask.
func New(ppgEstimator *ppg.Estimator, ppgSource PPGSource, colorClassifier *colorclass.Classifier, colorSource ColorSource, st *store.Store, web *webap.Server, mirror *display.Mirror, btnA, btnB input.Button, joy input.Joystick) *Session {
	return &Session{
		state:           Ask,
		ppgEstimator:    ppgEstimator,
		ppgSource:       ppgSource,
		colorClassifier: colorClassifier,
		colorSource:     colorSource,
		store:           st,
		web:             web,
		mirror:          mirror,
		btnA:            btnA,
		btnB:            btnB,
		joy:             joy,
	}
}

// State reports the current top-level state.
func (s *Session) State() State { return s.state }

// enter transitions into a new state, stamping the entry time and
// refreshing the display mirror.
func (s *Session) enter(now time.Time, st State) {
	s.state = st
	s.stateEnteredAt = now
	s.render()
}

// Update advances the session by one tick. now is the poll time; it is
// injected so tests can drive the state machine deterministically.
func (s *Session) Update(now time.Time) {
	switch s.state {
	case Ask:
		s.updateAsk(now)
	case OxiRun:
		s.updateOxiRun(now)
	case ShowBpm:
		s.updateShowBpm(now)
	case SurveyWait:
		s.updateSurveyWait(now)
	case TriageResult:
		s.updateTriageResult(now)
	case ColorIntro:
		s.updateColorIntro(now)
	case LevelPrompt:
		s.updateLevelPrompt(now)
	case ColorLoop:
		s.updateColorLoop(now)
	case SaveAndDone:
		s.updateSaveAndDone(now)
	case Report:
		s.updateReport(now)
	}
}

func (s *Session) updateAsk(now time.Time) {
	s.web.SetMode(false)
	switch {
	case s.joy.Clicked():
		s.enter(now, Report)
	case s.btnA.Pressed():
		s.startOxiRun(now)
	case s.btnB.Pressed():
		// B in Ask is a no-op per spec.md's table (cancel path only
		// applies to an in-progress run).
	}
}

func (s *Session) startOxiRun(now time.Time) {
	if s.ppgEstimator == nil || s.ppgSource == nil {
		s.statusLine = "sensor not found"
		return
	}
	s.ppgEstimator.Reset()
	s.sensorAbsent = false
	s.enter(now, OxiRun)
}

func (s *Session) updateOxiRun(now time.Time) {
	if s.btnB.Pressed() {
		s.ppgEstimator.Reset()
		s.enter(now, Ask)
		return
	}

	ir, _, err := s.ppgSource.Sample()
	if err != nil {
		s.ppgEstimator.ReadError()
	} else {
		s.ppgEstimator.Step(now, ir)
	}

	switch s.ppgEstimator.State() {
	case ppg.Done:
		bpm, ok := s.ppgEstimator.FinalBPM()
		if ok {
			s.lastBPM = &bpm
		} else {
			s.lastBPM = nil
		}
		s.enter(now, ShowBpm)
	case ppg.Error:
		s.handleSensorAbsent(now)
	}
}

// handleSensorAbsent implements the SensorAbsent recovery path: surface a
// message and return to Ask, retried up to three times at the entry point
// (spec.md §7).
func (s *Session) handleSensorAbsent(now time.Time) {
	s.sensorProbes++
	s.sensorAbsent = true
	if s.sensorProbes >= maxSensorProbes {
		s.statusLine = "sensor not found"
	} else {
		s.statusLine = fmt.Sprintf("sensor retry %d/%d", s.sensorProbes, maxSensorProbes)
	}
	s.ppgEstimator.Reset()
	s.enter(now, Ask)
}

func (s *Session) updateShowBpm(now time.Time) {
	if now.Sub(s.stateEnteredAt) >= showBpmDelay {
		s.web.SetMode(true)
		s.web.ResetPending()
		_, tok, _ := s.web.Peek()
		s.baselineToken = tok
		s.enter(now, SurveyWait)
	}
}

func (s *Session) updateSurveyWait(now time.Time) {
	if s.btnB.Pressed() {
		s.web.SetMode(false)
		s.enter(now, Ask)
		return
	}

	bits, tok, pending := s.web.Peek()
	if pending && tok != 0 && tok != s.baselineToken {
		s.surveyBits, _ = s.web.Take()
		_ = bits
		s.risk, s.recommended = Triage(s.surveyBits, s.lastBPM)
		s.enter(now, TriageResult)
	}
}

func (s *Session) updateTriageResult(now time.Time) {
	if s.btnA.Pressed() || now.Sub(s.stateEnteredAt) >= triageDelay {
		s.colorClassifier.Begin(now)
		s.levelIdx = 0
		s.levels = [3]int{}
		s.enter(now, ColorIntro)
	}
}

func (s *Session) updateColorIntro(now time.Time) {
	if s.colorSource != nil {
		if r, g, b, c, err := s.colorSource.ReadNormalized(); err == nil {
			s.colorClassifier.Accumulate(now, colorclass.Reading{R: r, G: g, B: b, CNorm: c})
		}
	}
	if s.btnA.Pressed() || now.Sub(s.stateEnteredAt) >= colorIntroDelay {
		s.enter(now, LevelPrompt)
	}
}

// updateLevelPrompt walks the anxiety/energy/humor prompts in sequence;
// spec.md §6 assigns these to the joystick's horizontal edges for level
// selection (1..4) and click-independent A to confirm each prompt, but
// does not give them their own row in the top-level state table. Folding
// them into their own state between TriageResult/ColorIntro and ColorLoop
// keeps the table's states intact while giving each prompt a tick to
// collect input.
func (s *Session) updateLevelPrompt(now time.Time) {
	if s.levels[s.levelIdx] == 0 {
		s.levels[s.levelIdx] = 1
	}
	if s.joy.StepRight() && s.levels[s.levelIdx] < 4 {
		s.levels[s.levelIdx]++
	}
	if s.joy.StepLeft() && s.levels[s.levelIdx] > 1 {
		s.levels[s.levelIdx]--
	}
	s.render()

	if s.btnB.Pressed() {
		s.enter(now, Ask)
		return
	}
	if s.btnA.Pressed() {
		s.levelIdx++
		if s.levelIdx >= len(levelPrompts) {
			s.recordLevels()
			s.enter(now, ColorLoop)
			return
		}
		s.enter(now, LevelPrompt)
	}
}

func (s *Session) recordLevels() {
	s.store.AddAnxiety(s.levels[0])
	s.store.AddEnergy(s.levels[1])
	s.store.AddHumor(s.levels[2])
}

func (s *Session) updateColorLoop(now time.Time) {
	if s.btnB.Pressed() {
		s.enter(now, Ask)
		return
	}
	if s.colorSource == nil || !s.btnA.Pressed() {
		return
	}

	r, g, b, c, err := s.colorSource.ReadNormalized()
	if err != nil {
		s.statusLine = "color read error"
		return
	}
	got, ok := s.colorClassifier.Classify(colorclass.Reading{R: r, G: g, B: b, CNorm: c})
	if !ok || got != s.recommended {
		s.statusLine = fmt.Sprintf("wristband mismatch: got %s, want %s", got, s.recommended)
		s.render()
		return
	}
	s.statusLine = ""
	s.enter(now, SaveAndDone)
}

func (s *Session) updateSaveAndDone(now time.Time) {
	s.store.SetCurrentColor(s.recommended)
	if s.lastBPM != nil {
		s.store.AddBPM(*s.lastBPM)
	}
	s.store.IncColor(s.recommended)
	_, tok, _ := s.web.Peek()
	if tok == 0 {
		tok = s.baselineToken
	}
	s.web.Assign(tok, s.recommended)
	s.store.ClearCurrentColor()
	s.enter(now, Ask)
}

func (s *Session) updateReport(now time.Time) {
	if s.joy.Clicked() {
		s.enter(now, Ask)
	}
}

// render refreshes the four-line display mirror for the current state.
func (s *Session) render() {
	var lines [4]string
	switch s.state {
	case Ask:
		lines = [4]string{"TheraLink", "A: start  B: -", "Joy: report", s.statusLine}
	case OxiRun:
		bpm := 0.0
		if s.ppgEstimator != nil {
			bpm = s.ppgEstimator.LiveBPM()
		}
		lines = [4]string{"Measuring...", fmt.Sprintf("live %.0f bpm", bpm), "B: cancel", ""}
	case ShowBpm:
		bpm := 0.0
		if s.lastBPM != nil {
			bpm = *s.lastBPM
		}
		lines = [4]string{"Heart rate", fmt.Sprintf("%.0f bpm", bpm), "Survey opening...", ""}
	case SurveyWait:
		lines = [4]string{"Survey open", "Use your phone", "B: cancel", ""}
	case TriageResult:
		lines = [4]string{"Result ready", fmt.Sprintf("risk %d", s.risk), fmt.Sprintf("-> %s", s.recommended), "A: continue"}
	case ColorIntro:
		lines = [4]string{"Scan wristband", fmt.Sprintf("target: %s", s.recommended), "A: skip wait", ""}
	case LevelPrompt:
		lines = [4]string{levelPrompts[s.levelIdx], fmt.Sprintf("level: %d", s.levels[s.levelIdx]), "<-  Joy  ->", "A: confirm"}
	case ColorLoop:
		lines = [4]string{fmt.Sprintf("Validate: %s", s.recommended), "A: confirm read", s.statusLine, "B: cancel"}
	case SaveAndDone:
		lines = [4]string{"Saved", "", "", ""}
	case Report:
		snap := s.store.Snapshot(colorclass.Unknown, false)
		lines = [4]string{"Report", fmt.Sprintf("n=%d bpm=%.0f", snap.BPMN, snap.BPMMean), fmt.Sprintf("wellbeing %.0f", snap.WellbeingIndex), "Joy: back"}
	}
	s.mirror.Set(lines)
}
