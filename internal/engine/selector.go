package engine

import (
	"fmt"
	"sort"

	"github.com/medleaf/ConsultFlow/internal/models"
)

// EmergencyReply is the fixed safe utterance for the case where no candidate
// exists at all. It is deliberately neutral and low-commitment.
const EmergencyReply = "Mm-hm, okay."

// Selection tiers: first non-empty tier wins.
const (
	tierOneThreshold = 0.3
	tierTwoThreshold = 0.2
)

// ChooseResponse picks the final response from scored candidates under the
// tiered quality policy. Ties resolve to the earliest candidate in the given
// order, so the result is deterministic for a fixed candidate multiset.
func ChooseResponse(candidates []models.Candidate) (string, []string) {
	if len(candidates) == 0 {
		return EmergencyReply, []string{"no candidates, using emergency reply"}
	}

	pool := filterAbove(candidates, tierOneThreshold)
	if len(pool) == 0 {
		pool = filterAbove(candidates, tierTwoThreshold)
	}
	if len(pool) == 0 {
		// Tier 3: everything, best first.
		pool = make([]models.Candidate, len(candidates))
		copy(pool, candidates)
		sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score > pool[j].Score })
	}

	if len(pool) == 1 {
		note := fmt.Sprintf("self verification: single qualifying option, choosing '%s' directly", pool[0].Action)
		return pool[0].Response, []string{note}
	}

	best := pool[0]
	for _, c := range pool[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	note := fmt.Sprintf("self verification: choosing highest scorer of %d options (action: %s, score: %.2f)", len(pool), best.Action, best.Score)
	return best.Response, []string{note}
}

func filterAbove(candidates []models.Candidate, threshold float64) []models.Candidate {
	var out []models.Candidate
	for _, c := range candidates {
		if c.Score > threshold {
			out = append(out, c)
		}
	}
	return out
}
