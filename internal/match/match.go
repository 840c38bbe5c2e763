// Package match scores roommate compatibility from survey traits.
package match

import (
	"sort"

	"github.com/npezzotti/sarthi/internal/types"
)

// Per-trait weights. A full match across every trait scores 100.
const (
	DietWeight           = 20
	PersonalityWeight    = 20
	SleepHabitWeight     = 15
	NoiseToleranceWeight = 15
	SmokeAlcoholWeight   = 30

	MaxScore = DietWeight + PersonalityWeight + SleepHabitWeight + NoiseToleranceWeight + SmokeAlcoholWeight
)

func same(a, b string) bool {
	return a != "" && a == b
}

// Score sums the weight of every trait that matches exactly. A trait that is
// unset on either side never matches.
func Score(a, b types.Traits) int {
	score := 0
	if same(a.Diet, b.Diet) {
		score += DietWeight
	}
	if same(a.Personality, b.Personality) {
		score += PersonalityWeight
	}
	if same(a.SleepHabit, b.SleepHabit) {
		score += SleepHabitWeight
	}
	if same(a.NoiseTolerance, b.NoiseTolerance) {
		score += NoiseToleranceWeight
	}
	if same(a.SmokeAlcohol, b.SmokeAlcohol) {
		score += SmokeAlcoholWeight
	}

	return score
}

// Rank scores every candidate against subject and orders them by descending
// score. Equal scores keep the order candidates were given in, so callers
// control the tie-break through the order of their store query.
func Rank(subject types.User, candidates []types.User) []types.Candidate {
	var subjectTraits types.Traits
	if subject.Traits != nil {
		subjectTraits = *subject.Traits
	}

	ranked := make([]types.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Id == subject.Id {
			continue
		}

		var traits types.Traits
		if c.Traits != nil {
			traits = *c.Traits
		}

		ranked = append(ranked, types.Candidate{
			Id:                 c.Id,
			Name:               c.Name,
			City:               c.City,
			CompatibilityScore: Score(subjectTraits, traits),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompatibilityScore > ranked[j].CompatibilityScore
	})

	return ranked
}
