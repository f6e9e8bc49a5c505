package model

import "time"

// Evaluation records one battle that both engines evaluated, so their
// agreement can be reviewed later.
type Evaluation struct {
	ID          int64  `json:"id"`
	Fingerprint string `json:"fingerprint"`
	Attacker    string `json:"attacker"`
	Defender    string `json:"defender"`
	Territory   string `json:"territory"`

	AnalyticAttackerWin  float64 `json:"analytic_attacker_win"`
	AnalyticDefenderWin  float64 `json:"analytic_defender_win"`
	AnalyticDraw         float64 `json:"analytic_draw"`
	AnalyticTUVSwing     float64 `json:"analytic_tuv_swing"`
	SimulatedAttackerWin float64 `json:"simulated_attacker_win"`
	SimulatedDefenderWin float64 `json:"simulated_defender_win"`
	SimulatedDraw        float64 `json:"simulated_draw"`
	SimulatedTUVSwing    float64 `json:"simulated_tuv_swing"`

	// Mismatch is set when the TUV swings differ enough to need a look.
	Mismatch   bool      `json:"mismatch"`
	AnalyticMs int64     `json:"analytic_ms"`
	FallbackMs int64     `json:"fallback_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
