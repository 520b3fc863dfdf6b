package normalize

import "github.com/sells-group/permit-cli/internal/model"

// Score maps a permit valuation to a 0-100 lead score. Pure and monotone
// in value.
func Score(value int) int {
	switch {
	case value >= 20000:
		return 90
	case value >= 10000:
		return 75
	case value >= 5000:
		return 60
	default:
		return 50
	}
}

// Label buckets a score into the canonical hot/warm/cold scale. Every
// source uses this scale; there is no per-source variant.
func Label(score int) model.ScoreLabel {
	switch {
	case score >= 80:
		return model.LabelHot
	case score >= 65:
		return model.LabelWarm
	default:
		return model.LabelCold
	}
}
