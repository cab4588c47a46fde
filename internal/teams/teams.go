// Package teams splits a roster into two teams.
package teams

import (
	"math/rand"
	"sort"
)

// Split is a pair of disjoint rosters.
type Split struct {
	Team1 []string
	Team2 []string
}

// Size returns the number of players across both teams.
func (s Split) Size() int {
	return len(s.Team1) + len(s.Team2)
}

// MinCaptainsRoster is the smallest roster that may run a captain draft.
const MinCaptainsRoster = 4

// Random shuffles the users and splits them at the midpoint. Team one gets
// the extra player on odd input.
func Random(users []string, rng *rand.Rand) Split {
	shuffled := append([]string(nil), users...)
	swap := func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] }
	if rng != nil {
		rng.Shuffle(len(shuffled), swap)
	} else {
		rand.Shuffle(len(shuffled), swap)
	}
	mid := (len(shuffled) + 1) / 2
	return Split{
		Team1: shuffled[:mid:mid],
		Team2: shuffled[mid:],
	}
}

// Autobalance sorts users by rating descending and assigns each one to the
// team with the lower running total. Ties go to team one and a team stops
// receiving players once it holds half the roster.
func Autobalance(users []string, ratings map[string]float64) Split {
	sorted := append([]string(nil), users...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return ratings[sorted[i]] > ratings[sorted[j]]
	})

	size := (len(sorted) + 1) / 2
	var split Split
	var r1, r2 float64
	for _, u := range sorted {
		if len(split.Team1) < size && (len(split.Team2) == size || r1 <= r2) {
			split.Team1 = append(split.Team1, u)
			r1 += ratings[u]
		} else {
			split.Team2 = append(split.Team2, u)
			r2 += ratings[u]
		}
	}
	return split
}

// Total sums the ratings of a roster.
func Total(roster []string, ratings map[string]float64) float64 {
	var sum float64
	for _, u := range roster {
		sum += ratings[u]
	}
	return sum
}
