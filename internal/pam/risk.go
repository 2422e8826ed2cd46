package pam

// Risk score contributions for request assessment.
const (
	riskBaseCritical = 60
	riskBaseHigh     = 40
	riskBaseMedium   = 20
	riskBaseLow      = 10

	riskEmergencyBonus    = 30
	riskLongDurationBonus = 20
)

// Level thresholds for a computed score.
const (
	scoreCritical = 70
	scoreHigh     = 50
	scoreMedium   = 30
)

// AssessRequest computes the risk of an access request from the role's risk
// level, the emergency flag, and the requested duration relative to the
// system default maximum. Deterministic: identical inputs always produce the
// same assessment.
func AssessRequest(role PrivilegedRole, durationMinutes int, emergency bool, defaultMaxMinutes int) RiskAssessment {
	var score int
	var factors []string

	switch role.RiskLevel {
	case RiskCritical:
		score += riskBaseCritical
	case RiskHigh:
		score += riskBaseHigh
	case RiskMedium:
		score += riskBaseMedium
	default:
		score += riskBaseLow
	}
	factors = append(factors, "role risk level: "+string(role.RiskLevel))

	if emergency {
		score += riskEmergencyBonus
		factors = append(factors, "emergency access requested")
	}

	if durationMinutes > defaultMaxMinutes {
		score += riskLongDurationBonus
		factors = append(factors, "duration exceeds default maximum")
	}

	return RiskAssessment{
		Score:   clampScore(score),
		Factors: factors,
		Level:   levelForScore(score),
	}
}

// levelForScore maps a numeric score to its qualitative level.
func levelForScore(score int) RiskLevel {
	switch {
	case score >= scoreCritical:
		return RiskCritical
	case score >= scoreHigh:
		return RiskHigh
	case score >= scoreMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
