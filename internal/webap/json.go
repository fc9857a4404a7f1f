package webap

import "github.com/theralink/kiosk/internal/store"

// statsJSON is the /stats.json response shape from spec.md §4.4.
type statsJSON struct {
	BPMMean        float64    `json:"bpm_mean"`
	BPMN           int        `json:"bpm_n"`
	BPMLast        float64    `json:"bpm_last"`
	BPMStddev      float64    `json:"bpm_stddev"`
	WellbeingIndex float64    `json:"wellbeing_index"`
	CalmIndex      float64    `json:"calm_index"`
	EngagementRate float64    `json:"engagement_rate"`
	ChecksinTotal  int        `json:"checkins_total"`
	Cores          coresJSON  `json:"cores"`
	Survey         surveyJSON `json:"survey"`
}

type coresJSON struct {
	Verde    int `json:"verde"`
	Amarelo  int `json:"amarelo"`
	Vermelho int `json:"vermelho"`
}

type surveyJSON struct {
	N        int          `json:"n"`
	Yes      [10]int      `json:"yes"`
	Rate     [10]float64  `json:"rate"`
	AvgYes   float64      `json:"avg_yes"`
	LastBits uint16       `json:"last_bits"`
	Alerts   surveyAlerts `json:"alerts"`
	Basic    surveyBasic  `json:"basic"`
}

type surveyAlerts struct {
	Crisis int `json:"crisis"`
	Avoid  int `json:"avoid"`
	Talk   int `json:"talk"`
}

type surveyBasic struct {
	NoMeal    int `json:"no_meal"`
	PoorSleep int `json:"poor_sleep"`
}

// engagementRate is survey submissions divided by wristband check-ins,
// clamped to [0,1] per the glossary; absent either, it's 0 rather than NaN.
func engagementRate(surveyN, checkins int) float64 {
	if checkins <= 0 {
		return 0
	}
	rate := float64(surveyN) / float64(checkins)
	if rate > 1 {
		return 1
	}
	return rate
}

// buildStatsJSON assembles the /stats.json body from an aggregation-store
// snapshot and a survey bucket, using the canonical bit order from
// spec.md §4.3 (bit 7 = crisis, bit 8 = avoiding group, bit 9 = wants to
// talk; ¬bit 1 = no_meal, ¬bit 2 = poor_sleep).
func buildStatsJSON(snap store.Snapshot, sb surveyBucket) statsJSON {
	out := statsJSON{
		BPMMean:        snap.BPMMean,
		BPMN:           snap.BPMN,
		BPMLast:        snap.BPMLast,
		BPMStddev:      snap.BPMStddev,
		WellbeingIndex: snap.WellbeingIndex,
		CalmIndex:      snap.CalmIndex,
		EngagementRate: engagementRate(sb.n, snap.ChecksinTotal),
		ChecksinTotal:  snap.ChecksinTotal,
		Cores: coresJSON{
			Verde:    snap.CoresVerde,
			Amarelo:  snap.CoresAmarelo,
			Vermelho: snap.CoresVermelho,
		},
	}

	sv := surveyJSON{N: sb.n, Yes: sb.yes, LastBits: sb.lastBits}
	if sb.n > 0 {
		sum := 0
		for i, y := range sb.yes {
			sv.Rate[i] = float64(y) / float64(sb.n)
			sum += y
		}
		sv.AvgYes = float64(sum) / float64(sb.n)
	}
	sv.Alerts = surveyAlerts{Crisis: sb.yes[7], Avoid: sb.yes[8], Talk: sb.yes[9]}
	sv.Basic = surveyBasic{NoMeal: sb.n - sb.yes[1], PoorSleep: sb.n - sb.yes[2]}
	if sv.Basic.NoMeal < 0 {
		sv.Basic.NoMeal = 0
	}
	if sv.Basic.PoorSleep < 0 {
		sv.Basic.PoorSleep = 0
	}
	out.Survey = sv

	return out
}
