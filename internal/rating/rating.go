package rating

import (
	"math"

	"github.com/jason-s-yu/matchhost/internal/models"
)

// Weights of the rating formula. The weighted sum is halved.
const (
	weightKDR        = 1.0
	weightAssistRate = 0.7
	weightHSP        = 0.2
	weightMVPRate    = 0.4
	weightK2Rate     = 0.6
	weightK3Rate     = 3.0
	weightK4Rate     = 5.0
	weightK5Rate     = 10.0
	weightWinRate    = 1.5
)

// Breakdown is the set of derived ratios a rating is computed from.
type Breakdown struct {
	KDR        float64 `json:"kdr"`
	HSP        float64 `json:"hsp"`
	AssistRate float64 `json:"assist_rate"`
	MVPRate    float64 `json:"mvp_rate"`
	K2Rate     float64 `json:"k2_rate"`
	K3Rate     float64 `json:"k3_rate"`
	K4Rate     float64 `json:"k4_rate"`
	K5Rate     float64 `json:"k5_rate"`
	WinRate    float64 `json:"win_rate"`
	Rating     float64 `json:"rating"`
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ratio returns n/d rounded to two places, or 0 when d is zero.
func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return round2(float64(n) / float64(d))
}

// KDR is kills per death, 0 when the player never died.
func KDR(s models.PlayerStats) float64 {
	return ratio(s.Kills, s.Deaths)
}

// HSP is the headshot percentage (0..100), 0 without kills.
func HSP(s models.PlayerStats) float64 {
	return ratio(s.Headshots, s.Kills) * 100
}

// WinRate is wins per match played.
func WinRate(s models.PlayerStats) float64 {
	return ratio(s.Wins, s.TotalMatches)
}

// Compute derives every ratio and the resulting rating.
func Compute(s models.PlayerStats) Breakdown {
	b := Breakdown{
		KDR:        KDR(s),
		HSP:        HSP(s),
		AssistRate: ratio(s.Assists, s.RoundsPlayed),
		MVPRate:    ratio(s.MVPs, s.RoundsPlayed),
		K2Rate:     ratio(s.K2, s.RoundsPlayed),
		K3Rate:     ratio(s.K3, s.RoundsPlayed),
		K4Rate:     ratio(s.K4, s.RoundsPlayed),
		K5Rate:     ratio(s.K5, s.RoundsPlayed),
		WinRate:    WinRate(s),
	}
	sum := b.KDR*weightKDR +
		b.AssistRate*weightAssistRate +
		(b.HSP/100)*weightHSP +
		b.MVPRate*weightMVPRate +
		b.K2Rate*weightK2Rate +
		b.K3Rate*weightK3Rate +
		b.K4Rate*weightK4Rate +
		b.K5Rate*weightK5Rate +
		b.WinRate*weightWinRate
	b.Rating = round2(sum / 2)
	return b
}

// Rating is a shortcut for Compute(s).Rating.
func Rating(s models.PlayerStats) float64 {
	return Compute(s).Rating
}

// ByUser computes ratings for a set of stat rows keyed by user id.
func ByUser(stats []models.PlayerStats) map[string]float64 {
	out := make(map[string]float64, len(stats))
	for _, s := range stats {
		out[s.UserID] = Rating(s)
	}
	return out
}
