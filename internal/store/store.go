// Package store implements the aggregation store: per-color and overall
// BPM rings, anxiety/energy/humor accumulators, wristband assignment
// counts, derived wellbeing indices, and CSV export.
//
// The accumulator shapes and the trimmed-mean/stddev helpers are adapted
// from the original firmware's stats.c; the mutex-guarded Store type
// replaces its process-wide statics, per the Global mutable state design
// note.
package store

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/theralink/kiosk/internal/colorclass"
	"github.com/theralink/kiosk/internal/ring"
)

const bpmRingCapacity = 64

// accumulator is a running (sum, count) pair for a 1..4 level rating.
type accumulator struct {
	sum   float64
	count int
}

func (a *accumulator) add(level int) {
	a.sum += float64(level)
	a.count++
}

func (a accumulator) mean() (float64, bool) {
	if a.count == 0 {
		return 0, false
	}
	return a.sum / float64(a.count), true
}

// bucket holds one scope's worth of accumulated data: either the overall
// rollup or one color's slice of it.
type bucket struct {
	bpm         *ring.Buffer[float64]
	bpmLast     float64
	haveBpmLast bool
	anxiety     accumulator
	energy      accumulator
	humor       accumulator
}

func newBucket() *bucket {
	return &bucket{bpm: ring.NewBuffer[float64](bpmRingCapacity)}
}

// Store is the aggregation store described in spec.md §4.5 and §3. The
// zero value is not ready for use; construct with New.
type Store struct {
	mu sync.Mutex

	overall *bucket
	byColor map[colorclass.Class]*bucket
	counts  map[colorclass.Class]int

	currentColor     colorclass.Class
	haveCurrentColor bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		overall: newBucket(),
		byColor: map[colorclass.Class]*bucket{
			colorclass.Green:  newBucket(),
			colorclass.Yellow: newBucket(),
			colorclass.Red:    newBucket(),
		},
		counts: map[colorclass.Class]int{
			colorclass.Green:  0,
			colorclass.Yellow: 0,
			colorclass.Red:    0,
		},
	}
}

func isWristbandColor(c colorclass.Class) bool {
	return c == colorclass.Green || c == colorclass.Yellow || c == colorclass.Red
}

// SetCurrentColor sets the mode variable that routes subsequent
// Add{BPM,Anxiety,Energy,Humor} calls into c's bucket in addition to the
// overall one. A color other than Green/Yellow/Red clears the routing, the
// same as ClearCurrentColor.
func (s *Store) SetCurrentColor(c colorclass.Class) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !isWristbandColor(c) {
		s.haveCurrentColor = false
		return
	}
	s.currentColor = c
	s.haveCurrentColor = true
}

// ClearCurrentColor clears the mode variable, stopping per-color routing.
func (s *Store) ClearCurrentColor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haveCurrentColor = false
}

// GetCurrentColor reports the current routing color, if any.
func (s *Store) GetCurrentColor() (colorclass.Class, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentColor, s.haveCurrentColor
}

func (s *Store) currentBucket() *bucket {
	if s.haveCurrentColor {
		return s.byColor[s.currentColor]
	}
	return nil
}

// AddBPM validates 0 < x < 250, pushes it to the overall ring and (if a
// current color is set) to that color's ring, and updates bpm_last on
// both.
func (s *Store) AddBPM(x float64) {
	if !(x > 0 && x < 250) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overall.bpm.Push(x)
	s.overall.bpmLast = x
	s.overall.haveBpmLast = true
	if b := s.currentBucket(); b != nil {
		b.bpm.Push(x)
		b.bpmLast = x
		b.haveBpmLast = true
	}
}

// IncColor increments c's wristband assignment count. Unlike the
// Add{BPM,Anxiety,...} calls this is not gated by the current-color mode
// variable — it targets the color passed explicitly.
func (s *Store) IncColor(c colorclass.Class) {
	if !isWristbandColor(c) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[c]++
}

// AddAnxiety validates 1 <= level <= 4 and updates the global and (if set)
// current-color anxiety accumulator.
func (s *Store) AddAnxiety(level int) { s.addLevel(level, func(b *bucket) *accumulator { return &b.anxiety }) }

// AddEnergy validates 1 <= level <= 4 and updates the global and (if set)
// current-color energy accumulator.
func (s *Store) AddEnergy(level int) { s.addLevel(level, func(b *bucket) *accumulator { return &b.energy }) }

// AddHumor validates 1 <= level <= 4 and updates the global and (if set)
// current-color humor accumulator.
func (s *Store) AddHumor(level int) { s.addLevel(level, func(b *bucket) *accumulator { return &b.humor }) }

func (s *Store) addLevel(level int, pick func(*bucket) *accumulator) {
	if level < 1 || level > 4 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pick(s.overall).add(level)
	if b := s.currentBucket(); b != nil {
		pick(b).add(level)
	}
}

// Snapshot is a point-in-time read of one scope's aggregated data plus
// its derived indices.
type Snapshot struct {
	BPMMean   float64
	HaveBPM   bool
	BPMLast   float64
	HaveLast  bool
	BPMStddev float64
	HaveStd   bool
	BPMN      int

	AnsMean float64
	HaveAns bool
	AnsN    int

	EnergyMean float64
	HaveEnergy bool
	EnergyN    int

	HumorMean float64
	HaveHumor bool
	HumorN    int

	CoresVerde, CoresAmarelo, CoresVermelho int
	ChecksinTotal                           int

	CalmIndex      float64
	HaveCalm       bool
	EnergyRate     float64
	HaveEnergyRate bool
	HumorIndex     float64
	HaveHumorIndex bool
	WellbeingIndex float64
	HaveWellbeing  bool
}

// Snapshot returns the overall aggregate, or (if color is one of
// Green/Yellow/Red) the aggregate filtered to that color, with the color
// counts outside the filter zeroed per spec.md §4.4.
func (s *Store) Snapshot(color colorclass.Class, filtered bool) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.overall
	if filtered && isWristbandColor(color) {
		b = s.byColor[color]
	}

	out := Snapshot{}
	vals := b.bpm.Slice()
	out.BPMN = len(vals)
	if mean, ok := trimmedMean1(vals); ok {
		out.BPMMean, out.HaveBPM = mean, true
	}
	if b.haveBpmLast {
		out.BPMLast, out.HaveLast = b.bpmLast, true
	}
	if sd, ok := stddev(vals); ok {
		out.BPMStddev, out.HaveStd = sd, true
	}

	if mean, ok := b.anxiety.mean(); ok {
		out.AnsMean, out.HaveAns = mean, true
	}
	out.AnsN = b.anxiety.count
	if mean, ok := b.energy.mean(); ok {
		out.EnergyMean, out.HaveEnergy = mean, true
	}
	out.EnergyN = b.energy.count
	if mean, ok := b.humor.mean(); ok {
		out.HumorMean, out.HaveHumor = mean, true
	}
	out.HumorN = b.humor.count

	if filtered && isWristbandColor(color) {
		if color == colorclass.Green {
			out.CoresVerde = s.counts[colorclass.Green]
		}
		if color == colorclass.Yellow {
			out.CoresAmarelo = s.counts[colorclass.Yellow]
		}
		if color == colorclass.Red {
			out.CoresVermelho = s.counts[colorclass.Red]
		}
		out.ChecksinTotal = s.counts[color]
	} else {
		out.CoresVerde = s.counts[colorclass.Green]
		out.CoresAmarelo = s.counts[colorclass.Yellow]
		out.CoresVermelho = s.counts[colorclass.Red]
		out.ChecksinTotal = s.counts[colorclass.Green] + s.counts[colorclass.Yellow] + s.counts[colorclass.Red]
	}

	calmNorm, haveCalm := normalizeScale(b.anxiety, true)
	energyNorm, haveEnergyNorm := normalizeScale(b.energy, false)
	humorNorm, haveHumorNorm := normalizeScale(b.humor, false)

	if haveCalm {
		out.CalmIndex, out.HaveCalm = 100*calmNorm, true
	}
	if haveEnergyNorm {
		out.EnergyRate, out.HaveEnergyRate = energyNorm, true
	}
	if haveHumorNorm {
		out.HumorIndex, out.HaveHumorIndex = 100*humorNorm, true
	}

	sum, n := 0.0, 0
	if haveCalm {
		sum += calmNorm
		n++
	}
	if haveEnergyNorm {
		sum += energyNorm
		n++
	}
	if haveHumorNorm {
		sum += humorNorm
		n++
	}
	if n > 0 {
		out.WellbeingIndex, out.HaveWellbeing = 100*sum/float64(n), true
	}

	return out
}

// normalizeScale maps a 1..4 level average onto 0..1. When invert is true
// (anxiety→calm) the scale is flipped.
func normalizeScale(a accumulator, invert bool) (float64, bool) {
	mean, ok := a.mean()
	if !ok {
		return 0, false
	}
	norm := (mean - 1) / 3
	if invert {
		norm = 1 - norm
	}
	return clamp01(norm), true
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return x
	}
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// trimmedMean1 is the trimmed mean of v, dropping 1 sample from each end
// once n > 2 (per spec.md §4.5); smaller rings fall back to the plain
// mean, matching stats.c's trimmed_mean_1.
func trimmedMean1(v []float64) (float64, bool) {
	n := len(v)
	if n == 0 {
		return 0, false
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	if n <= 2 {
		sum := 0.0
		for _, x := range s {
			sum += x
		}
		return sum / float64(n), true
	}
	sum := 0.0
	for _, x := range s[1 : n-1] {
		sum += x
	}
	return sum / float64(n-2), true
}

// stddev is the Bessel-corrected sample standard deviation, requiring
// n >= 2.
func stddev(v []float64) (float64, bool) {
	n := len(v)
	if n < 2 {
		return 0, false
	}
	mean := 0.0
	for _, x := range v {
		mean += x
	}
	mean /= float64(n)
	variance := 0.0
	for _, x := range v {
		d := x - mean
		variance += d * d
	}
	variance /= float64(n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance), true
}

// DumpCSV renders the aggregate CSV snapshot described in spec.md §6: one
// header line, one data line, CRLF-terminated, NaN fields emitted as 0.
func (s *Store) DumpCSV() []byte {
	snap := s.Snapshot(colorclass.Unknown, false)
	var b strings.Builder
	b.WriteString("bpm_mean,bpm_last,bpm_stddev,bpm_n,ans_mean,ans_n,energy_mean,energy_n,humor_mean,humor_n,cores_verde,cores_amarelo,cores_vermelho,wellbeing_index,calm_index\r\n")
	fmt.Fprintf(&b, "%.3f,%.3f,%.3f,%d,%.3f,%d,%.3f,%d,%.3f,%d,%d,%d,%d,%.3f,%.3f\r\n",
		or0(snap.BPMMean, snap.HaveBPM), or0(snap.BPMLast, snap.HaveLast), or0(snap.BPMStddev, snap.HaveStd), snap.BPMN,
		or0(snap.AnsMean, snap.HaveAns), snap.AnsN,
		or0(snap.EnergyMean, snap.HaveEnergy), snap.EnergyN,
		or0(snap.HumorMean, snap.HaveHumor), snap.HumorN,
		snap.CoresVerde, snap.CoresAmarelo, snap.CoresVermelho,
		or0(snap.WellbeingIndex, snap.HaveWellbeing), or0(snap.CalmIndex, snap.HaveCalm),
	)
	return []byte(b.String())
}

func or0(x float64, have bool) float64 {
	if !have {
		return 0
	}
	return x
}
