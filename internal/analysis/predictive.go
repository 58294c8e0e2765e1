package analysis

import "github.com/StudentDONGHYUN/DMS-Project/pkg/types"

const (
	// predictHistorySize bounds the score samples used for trend fitting.
	predictHistorySize = 60

	// predictHorizonSamples is how far ahead the fitted trend is
	// projected, in samples.
	predictHorizonSamples = 15

	predictiveHighThreshold = 0.7

	// Microsleep prediction: sustained near-closed eyes with a rising
	// fatigue trend.
	microsleepFatigue = 0.8
	microsleepPerclos = 0.7
)

// PredictiveResult is the risk forecast for one cycle.
type PredictiveResult struct {
	// RiskProbability is the trend-projected combined risk, clamped to
	// [0,1]. Zero until enough history accumulates.
	RiskProbability float64

	// Trend is the fitted per-sample slope of the combined risk score.
	Trend float64

	Events []types.AnalysisEvent
}

// PredictiveAnalyzer forecasts short-term risk from the recent history of
// fused scores. A rising trajectory raises alerts before the immediate
// score itself crosses a threshold.
type PredictiveAnalyzer struct {
	history []float64
}

// NewPredictiveAnalyzer creates a PredictiveAnalyzer.
func NewPredictiveAnalyzer() *PredictiveAnalyzer {
	return &PredictiveAnalyzer{}
}

// Observe records this cycle's fused scores and returns the updated
// forecast. fatigue and perclos feed the microsleep check; combined
// feeds the trend projection.
func (a *PredictiveAnalyzer) Observe(combined, fatigue, perclos float64) PredictiveResult {
	a.history = append(a.history, combined)
	if len(a.history) > predictHistorySize {
		a.history = a.history[1:]
	}

	result := PredictiveResult{}
	if len(a.history) >= 5 {
		slope, intercept := linearFit(a.history)
		result.Trend = slope
		projected := intercept + slope*float64(len(a.history)-1+predictHorizonSamples)
		result.RiskProbability = clamp01(projected)
	}

	if result.RiskProbability > predictiveHighThreshold {
		result.Events = append(result.Events, types.EventPredictiveRiskHigh)
	}
	if fatigue > microsleepFatigue && perclos > microsleepPerclos && result.Trend >= 0 {
		result.Events = append(result.Events, types.EventMicrosleepPredicted)
	}
	return result
}

// linearFit is an ordinary least-squares fit of values against their
// sample index.
func linearFit(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
