package scoring

import (
	"context"
	"fmt"
	"log"

	"leadscout/models"
	"leadscout/storage"
)

const maxScore = 100

// domSaturation is the days-on-market value at which the staleness signal
// maxes out.
const domSaturation = 120

// Scorer computes the canonical distress score from a lead's signals and the
// configured weight table. Score is pure: it never reads the stored score,
// so rescoring is always reproducible from the signals alone.
type Scorer struct {
	weights map[string]int
}

func NewScorer(weights map[string]int) *Scorer {
	return &Scorer{weights: weights}
}

// Score sums the weights of every active distress signal. Days-on-market
// contributes proportionally, saturating at domSaturation days. The result
// is clamped to [0, 100].
func (s *Scorer) Score(lead *models.Lead) int {
	score := 0

	if lead.IsForeclosure {
		score += s.weights["foreclosure"]
	}
	if lead.IsProbate {
		score += s.weights["probate"]
	}
	if lead.TaxDelinquent {
		score += s.weights["tax_delinquent"]
	}
	if lead.CodeViolations {
		score += s.weights["code_violations"]
	}
	if lead.IsVacant {
		score += s.weights["vacant"]
	}
	if lead.AbsenteeOwner {
		score += s.weights["absentee_owner"]
	}
	if lead.PriceReduced {
		score += s.weights["price_reduced"]
	}

	if lead.DaysOnMarket != nil && *lead.DaysOnMarket > 0 {
		dom := *lead.DaysOnMarket
		if dom > domSaturation {
			dom = domSaturation
		}
		score += dom * s.weights["days_on_market"] / domSaturation
	}

	if score > maxScore {
		score = maxScore
	}
	if score < 0 {
		score = 0
	}
	return score
}

// RescoreAll recomputes every stored lead's score, writing back only the ones
// that changed. Returns the number of updates.
func (s *Scorer) RescoreAll(ctx context.Context, store storage.Store) (int, error) {
	leads, err := store.QueryLeads(ctx, storage.Filter{})
	if err != nil {
		return 0, fmt.Errorf("listing leads: %w", err)
	}

	updated := 0
	for i := range leads {
		lead := &leads[i]
		score := s.Score(lead)
		if score == lead.DistressScore {
			continue
		}
		if err := store.UpdateScore(ctx, lead.ID, score); err != nil {
			return updated, fmt.Errorf("updating score for lead %d: %w", lead.ID, err)
		}
		updated++
	}

	log.Printf("scoring: rescored %d leads, %d changed", len(leads), updated)
	return updated, nil
}
