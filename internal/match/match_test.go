package match

import (
	"testing"

	"github.com/npezzotti/sarthi/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	base := types.Traits{
		Diet:           "veg",
		Personality:    "introvert",
		SleepHabit:     "early",
		NoiseTolerance: "low",
		SmokeAlcohol:   "no",
	}

	tcases := []struct {
		name     string
		other    types.Traits
		expected int
	}{
		{
			name:     "identical traits",
			other:    base,
			expected: 100,
		},
		{
			name: "differs only in smoke_alcohol",
			other: types.Traits{
				Diet:           "veg",
				Personality:    "introvert",
				SleepHabit:     "early",
				NoiseTolerance: "low",
				SmokeAlcohol:   "yes",
			},
			expected: 70,
		},
		{
			name: "only diet and sleep habit match",
			other: types.Traits{
				Diet:           "veg",
				Personality:    "extrovert",
				SleepHabit:     "early",
				NoiseTolerance: "high",
				SmokeAlcohol:   "yes",
			},
			expected: 35,
		},
		{
			name:     "nothing set on other side",
			other:    types.Traits{},
			expected: 0,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Score(base, tc.other), "unexpected score")
			assert.Equal(t, tc.expected, Score(tc.other, base), "expected score to be symmetric")
		})
	}
}

func TestScore_UnsetTraitsNeverMatch(t *testing.T) {
	assert.Equal(t, 0, Score(types.Traits{}, types.Traits{}), "expected two empty trait sets to score 0")
	assert.Equal(t, SmokeAlcoholWeight, Score(types.Traits{SmokeAlcohol: "no"}, types.Traits{SmokeAlcohol: "no"}))
	assert.Equal(t, 100, MaxScore, "expected weights to total 100")
}

func TestRank(t *testing.T) {
	subject := types.User{
		Id:     1,
		Name:   "me",
		Traits: &types.Traits{Diet: "veg", Personality: "introvert", SleepHabit: "early", NoiseTolerance: "low", SmokeAlcohol: "no"},
	}

	candidates := []types.User{
		{Id: 2, Name: "two", City: "Pune", Traits: &types.Traits{Diet: "veg"}},
		{Id: 3, Name: "three", City: "Delhi", Traits: &types.Traits{SmokeAlcohol: "no"}},
		{Id: 4, Name: "four", City: "Goa", Traits: &types.Traits{Personality: "introvert"}},
		{Id: 5, Name: "five", City: "Agra"},
		{Id: 1, Name: "me"},
	}

	ranked := Rank(subject, candidates)

	assert.Len(t, ranked, 4, "expected subject to be excluded from ranking")
	ids := make([]int, len(ranked))
	for i, c := range ranked {
		ids[i] = c.Id
	}
	// 3 scores 30; 2 and 4 tie on 20 and keep their input order.
	assert.Equal(t, []int{3, 2, 4, 5}, ids, "expected descending score with stable ties")
	assert.Equal(t, types.Candidate{Id: 3, Name: "three", City: "Delhi", CompatibilityScore: 30}, ranked[0])
	assert.Equal(t, 0, ranked[3].CompatibilityScore, "expected candidate without traits to score 0")
}

func TestRank_NoCandidates(t *testing.T) {
	ranked := Rank(types.User{Id: 1}, nil)
	assert.NotNil(t, ranked, "expected empty, non-nil ranking")
	assert.Empty(t, ranked)
}
