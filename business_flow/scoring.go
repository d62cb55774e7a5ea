// Package businessflow contains the core business logic for candidate scoring.
package businessflow

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/videostreampro/adserver/config"
	"github.com/videostreampro/adserver/models"
)

// ScoredCandidate pairs an eligible ad with its composite relevance score
type ScoredCandidate struct {
	Ad       *models.Ad
	Campaign *models.Campaign
	Score    float64
}

// Scorer ranks candidate ads against the request targeting. The random
// source drives tie-breaking and is injectable for deterministic tests.
type Scorer struct {
	cfg config.AdServingConfig
	rng *rand.Rand
}

// NewScorer creates a new scorer instance
func NewScorer(cfg config.AdServingConfig, rng *rand.Rand) *Scorer {
	return &Scorer{cfg: cfg, rng: rng}
}

// Score computes the composite relevance of one ad in [0,1].
//
// Factors: tag Jaccard overlap, category membership, remaining-budget
// ratio, and a placeholder bid of 0.5. When the request carries only a
// category the tag weight folds into the category term; only tags, the
// reverse. With neither (fallback pool) the score reduces to the budget
// and bid terms.
func (s *Scorer) Score(ad *models.Ad, campaign *models.Campaign, category *string, tags []string) float64 {
	tagWeight := s.cfg.TagWeight
	categoryWeight := s.cfg.CategoryWeight

	hasCategory := category != nil && *category != ""
	hasTags := len(tags) > 0

	switch {
	case hasCategory && !hasTags:
		categoryWeight += tagWeight
		tagWeight = 0
	case hasTags && !hasCategory:
		tagWeight += categoryWeight
		categoryWeight = 0
	case !hasCategory && !hasTags:
		tagWeight = 0
		categoryWeight = 0
	}

	score := s.cfg.BudgetWeight*budgetFactor(ad, campaign) +
		s.cfg.BidWeight*bidAmount
	if hasTags {
		score += tagWeight * jaccard(tags, ad.Tags)
	}
	if hasCategory {
		score += categoryWeight * categoryMatch(*category, ad.Categories)
	}
	return score
}

// Select filters candidates by minimum score and available budget, ranks
// them descending, and breaks top-score ties uniformly at random. The
// full ranked slice is returned so callers can fall through to the next
// candidate when the best one loses its budget under contention.
func (s *Scorer) Select(candidates []*models.Ad, category *string, tags []string) []ScoredCandidate {
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, ad := range candidates {
		campaign := &ad.Campaign
		if !hasSufficientBudget(ad, campaign, s.cfg.CostPerViewCents) {
			continue
		}
		score := s.Score(ad, campaign, category, tags)
		if score < s.cfg.MinScore {
			continue
		}
		scored = append(scored, ScoredCandidate{Ad: ad, Campaign: campaign, Score: score})
	}
	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	// Uniform random pick among the candidates tied at the top score.
	ties := 1
	for ties < len(scored) && scored[ties].Score == scored[0].Score {
		ties++
	}
	if ties > 1 {
		pick := s.rng.Intn(ties)
		scored[0], scored[pick] = scored[pick], scored[0]
	}
	return scored
}

// bidAmount is a placeholder until real bids exist.
const bidAmount = 0.5

// jaccard computes |V∩A| / |V∪A| over case-insensitive tag sets; 0 when
// either side is empty.
func jaccard(requestTags, adTags []string) float64 {
	if len(requestTags) == 0 || len(adTags) == 0 {
		return 0
	}

	request := make(map[string]struct{}, len(requestTags))
	for _, t := range requestTags {
		request[strings.ToLower(t)] = struct{}{}
	}
	union := make(map[string]struct{}, len(requestTags)+len(adTags))
	for t := range request {
		union[t] = struct{}{}
	}

	intersection := 0
	for _, t := range adTags {
		lower := strings.ToLower(t)
		if _, seen := union[lower]; seen {
			if _, inRequest := request[lower]; inRequest {
				delete(request, lower)
				intersection++
			}
		}
		union[lower] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}

// categoryMatch returns 1 when the request category is one of the ad's
// categories, case-insensitively.
func categoryMatch(category string, adCategories []string) float64 {
	for _, c := range adCategories {
		if strings.EqualFold(c, category) {
			return 1
		}
	}
	return 0
}

// budgetFactor is the remaining fraction of whichever budget applies,
// preferring the ad's own budget over the campaign's; 0 when neither
// defines one.
func budgetFactor(ad *models.Ad, campaign *models.Campaign) float64 {
	if ad.HasOwnBudget() {
		return remainingFraction(ad.Budget, ad.Spent)
	}
	if campaign != nil && campaign.Budget != nil && *campaign.Budget > 0 {
		return remainingFraction(*campaign.Budget, campaign.Spent)
	}
	return 0
}

func remainingFraction(budget, spent int64) float64 {
	f := float64(budget-spent) / float64(budget)
	if f < 0 {
		return 0
	}
	return f
}

// hasSufficientBudget reports whether the applicable budget can cover one
// more impression at the given cost. Comparisons are in minor units. An
// absent budget on both levels means the campaign is uncapped.
func hasSufficientBudget(ad *models.Ad, campaign *models.Campaign, cost int64) bool {
	available, ok := ad.AvailableBudget(campaign)
	if !ok {
		return true
	}
	return available >= cost
}
