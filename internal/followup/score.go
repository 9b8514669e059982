// internal/followup/score.go
package followup

import (
	"math"

	"coaching-workers/internal/models"
)

const (
	// NoFactorsScore is reported for a diagnosis that carries no usable signal.
	NoFactorsScore = 50

	MinScore = 0
	MaxScore = 100
)

// Factor names as reported in score breakdowns.
const (
	FactorStrengths              = "strengths"
	FactorChallenges             = "challenges"
	FactorProgressLevel          = "progressLevel"
	FactorPillarRecommendations  = "pillarRecommendations"
	FactorImplementationProgress = "implementationProgress"
)

// Improvement bands.
const (
	BandStrong   = "strong"
	BandSteady   = "steady"
	BandEmerging = "emerging"
	BandStalled  = "stalled"
)

// Factor is one contribution to the improvement score.
type Factor struct {
	Signal string `json:"signal"`
	Value  int    `json:"value"`
}

// ScoreFactors returns the factors that contribute to the improvement score of d,
// in a fixed order. A nil diagnosis has no factors.
func ScoreFactors(d *models.DiagnosisResult, followupType models.FollowupCategoryType) []Factor {
	if d == nil {
		return nil
	}

	var factors []Factor

	if n := len(d.Strengths); n > 0 {
		factors = append(factors, Factor{Signal: FactorStrengths, Value: min(n*10, 50)})
	}

	if n := len(d.Challenges); n > 0 {
		factors = append(factors, Factor{Signal: FactorChallenges, Value: max(50-n*10, 0)})
	}

	if d.SituationAnalysis != nil && d.SituationAnalysis.ProgressLevel != "" {
		factors = append(factors, Factor{
			Signal: FactorProgressLevel,
			Value:  ParseProgressLevel(d.SituationAnalysis.ProgressLevel),
		})
	}

	switch followupType {
	case models.FollowupTypePillar:
		if n := len(d.PillarRecommendations); n > 0 {
			factors = append(factors, Factor{Signal: FactorPillarRecommendations, Value: max(70-n*10, 30)})
		}
	case models.FollowupTypeWorkbook:
		if d.FollowupRecommendation != nil && d.FollowupRecommendation.ImplementationProgress != "" {
			factors = append(factors, Factor{
				Signal: FactorImplementationProgress,
				Value:  ParseProgressLevel(d.FollowupRecommendation.ImplementationProgress),
			})
		}
	}

	return factors
}

// CalculateImprovementScore derives a 0..100 improvement score from a diagnosis.
// A nil diagnosis scores 0; a diagnosis with no usable signal scores 50.
func CalculateImprovementScore(d *models.DiagnosisResult, followupType models.FollowupCategoryType) int {
	if d == nil {
		return MinScore
	}
	return scoreFromFactors(ScoreFactors(d, followupType))
}

func scoreFromFactors(factors []Factor) int {
	if len(factors) == 0 {
		return NoFactorsScore
	}

	sum := 0
	for _, f := range factors {
		sum += f.Value
	}
	mean := float64(sum) / float64(len(factors))

	// Half-up rounding; the mean is never negative.
	return clamp(int(math.Floor(mean+0.5)), MinScore, MaxScore)
}

// ClassifyImprovement buckets a score into a reporting band.
func ClassifyImprovement(score int) string {
	switch {
	case score >= 75:
		return BandStrong
	case score >= 50:
		return BandSteady
	case score >= 30:
		return BandEmerging
	default:
		return BandStalled
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
