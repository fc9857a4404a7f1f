package session

import (
	"testing"

	"github.com/theralink/kiosk/internal/colorclass"
)

// packAns mirrors the wire packing in internal/webap: character i of the
// ans string becomes bit i of the word.
func packAns(ans string) uint16 {
	var bits uint16
	for i := 0; i < len(ans); i++ {
		if ans[i] == '1' {
			bits |= 1 << uint(i)
		}
	}
	return bits
}

func bpmPtr(v float64) *float64 { return &v }

func TestTriageScenarios(t *testing.T) {
	tests := []struct {
		name     string
		ans      string
		bpm      *float64
		wantRisk int
		wantColor colorclass.Class
	}{
		{"all no, normal bpm", "0000000000", bpmPtr(72), 2, colorclass.Green},
		{"all yes, elevated bpm", "1111111111", bpmPtr(95), 16, colorclass.Red},
		{"only slept-well yes", "0000000100", bpmPtr(80), 1, colorclass.Green},
		{"pain plus conflict, high bpm", "0000010001", bpmPtr(110), 8, colorclass.Red}, // spec.md §8 states risk=9; see scoringBit's doc comment
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			risk, color := Triage(packAns(tt.ans), tt.bpm)
			if risk != tt.wantRisk {
				t.Errorf("risk = %d, want %d", risk, tt.wantRisk)
			}
			if color != tt.wantColor {
				t.Errorf("color = %v, want %v", color, tt.wantColor)
			}
		})
	}
}

func TestTriageMissingBPMDefaultsTo80(t *testing.T) {
	riskWithNil, colorWithNil := Triage(0, nil)
	riskWith80, colorWith80 := Triage(0, bpmPtr(80))
	if riskWithNil != riskWith80 || colorWithNil != colorWith80 {
		t.Error("nil bpm should score identically to an explicit 80")
	}
}

func TestTriageIsDeterministic(t *testing.T) {
	bits := packAns("0000010001")
	bpm := bpmPtr(110)
	r1, c1 := Triage(bits, bpm)
	r2, c2 := Triage(bits, bpm)
	if r1 != r2 || c1 != c2 {
		t.Error("Triage is not deterministic for identical inputs")
	}
}

func TestTriageBPMBands(t *testing.T) {
	tests := []struct {
		bpm  float64
		want int // band contribution
	}{
		{50, 1},  // < 55
		{70, 0},  // 55..85 exclusive of >=85
		{90, 1},  // >=85, <100
		{110, 2}, // >=100
	}
	for _, tt := range tests {
		risk, _ := Triage(0, bpmPtr(tt.bpm))
		// With bits=0, risk = 2 (from ¬bits[1],¬bits[2]) + band.
		if risk-2 != tt.want {
			t.Errorf("bpm=%v band = %d, want %d", tt.bpm, risk-2, tt.want)
		}
	}
}
