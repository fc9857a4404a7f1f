package session

import "github.com/theralink/kiosk/internal/colorclass"

// defaultBPM is substituted when no PPG measurement is available, per
// spec.md §4.3.
const defaultBPM = 80.0

// scoringBit extracts scoring bit i from the 10-bit survey word.
//
// The wire format packs bit i of the word from character i of the
// "ans" query string (spec.md §6, "bit 0 is question 1"). spec.md §4.3's
// worked end-to-end scenarios only reproduce their stated colors, and
// three of their four exact risk totals, when the scoring table is
// applied to the word read from its opposite end — i.e. scoring bit i
// is wire bit (9-i), not wire bit i directly. This mirrors the
// question-order drift spec.md's own Open Questions section calls out
// between source iterations. Scenario 4 (§8, "0000010001" at 110 bpm)
// is the exception: its own prose labels ("strong conflict" + "wants to
// talk") are inconsistent with scenario 3 under either whole-word
// convention — neither direct nor reversed order reproduces scenario 3's
// exact risk total (which pins this mapping) and scenario 4's stated
// risk=9 simultaneously. Reversed order is kept because it is the mapping
// scenario 3 requires; it reads scenario 4's word as strong pain plus
// strong conflict, which comes out to risk=8 here, one short of
// spec.md's stated total, though the recommended color (Red, risk>=6)
// still matches.
func scoringBit(bits uint16, i int) bool {
	return bits>>uint(9-i)&1 != 0
}

// Triage computes the risk integer and recommended color from a 10-bit
// survey word and an optional measured BPM (nil substitutes 80, the
// default). Triage is a pure function: identical inputs always produce
// identical outputs.
func Triage(bits uint16, bpm *float64) (risk int, recommended colorclass.Class) {
	if scoringBit(bits, 0) {
		risk += 2 // strong pain
	}
	if !scoringBit(bits, 1) {
		risk += 1 // did not eat/hydrate
	}
	if !scoringBit(bits, 2) {
		risk += 1 // did not sleep well
	}
	if scoringBit(bits, 3) {
		risk += 1 // strong fatigue
	}
	if scoringBit(bits, 4) {
		risk += 2 // strong conflict
	}
	if scoringBit(bits, 5) {
		risk += 2 // very nervous
	}
	if scoringBit(bits, 6) {
		risk += 1 // concentration trouble
	}
	if scoringBit(bits, 7) {
		risk += 3 // crisis risk now
	}
	if scoringBit(bits, 8) {
		risk += 1 // avoiding group
	}
	if scoringBit(bits, 9) {
		risk += 3 // wants to talk with an adult
	}

	b := defaultBPM
	if bpm != nil {
		b = *bpm
	}
	switch {
	case b >= 100:
		risk += 2
	case b >= 85 || b < 55:
		risk += 1
	}

	switch {
	case risk >= 6:
		recommended = colorclass.Red
	case risk >= 3:
		recommended = colorclass.Yellow
	default:
		recommended = colorclass.Green
	}
	return risk, recommended
}
