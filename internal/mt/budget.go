// Package mt implements the per-utterance, time-budgeted translation
// pipeline: budget computation, name-token placeholder substitution,
// retry-with-compression, glossary enforcement, and the hard post-checks
// that gate a translation's acceptance. Grounded on the original
// pipeline's phases/mt.py and processors/mt/utterance_translate.py.
package mt

// Speech-rate tiers and their budget multipliers (spec §4.7 step 1).
const (
	SpeechRateFastThreshold   = 5.5
	SpeechRateNormalThreshold = 4.0
	KFast                     = 1.00
	KNormal                   = 1.15
	KSlow                     = 1.20
)

// EnCPS is the assumed English characters-per-second rate used to estimate
// synthesized speech duration from text length.
const EnCPS = 14.0

// MaxRetries bounds the compress-and-retry loop.
const MaxRetries = 3

// PickK selects the budget multiplier for a measured Chinese speech rate.
func PickK(zhTPS float64) float64 {
	switch {
	case zhTPS >= SpeechRateFastThreshold:
		return KFast
	case zhTPS >= SpeechRateNormalThreshold:
		return KNormal
	default:
		return KSlow
	}
}

// BudgetMs computes the English time budget for an utterance.
func BudgetMs(startMs, endMs int64, zhTPS float64) int64 {
	window := endMs - startMs
	return int64(float64(window) * PickK(zhTPS))
}

// EstimateEnDurationMs estimates synthesized duration from text length,
// counting only ASCII letters/digits (spaces and punctuation are assumed
// to cost no speaking time), matching estimate_en_duration_ms.
func EstimateEnDurationMs(text string) int64 {
	n := 0
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			n++
		}
	}
	return int64(float64(n) / EnCPS * 1000.0)
}

// MaxCharsForBudget returns the character budget used in the
// tightened-compression retry prompt, floor(budget_ms/1000 * EN_CPS).
func MaxCharsForBudget(budgetMs int64) int {
	return int(float64(budgetMs) / 1000.0 * EnCPS)
}
