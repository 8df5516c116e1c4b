package usecase

import (
	"sort"

	"smartbot/internal/domain"
)

// SetupProfile parameterizes the long-setup rule so the loose and tight
// variants share one implementation instead of forked copies.
type SetupProfile struct {
	MinDrop          float64
	MaxDrop          float64
	MinBounce        float64
	RequireBelowOpen bool
}

// DefaultLongProfile is the standard dip-and-bounce entry.
var DefaultLongProfile = SetupProfile{MinDrop: 2, MaxDrop: 10, MinBounce: 0.5}

// TightLongProfile demands a deeper dip and a stronger bounce, and the
// price still under the open.
var TightLongProfile = SetupProfile{MinDrop: 3, MaxDrop: 10, MinBounce: 1, RequireBelowOpen: true}

// Classifier decides whether a symbol's intraday stats constitute a
// tradable setup. Pure: no side effects, no venue calls.
type Classifier struct {
	Long SetupProfile
}

func NewClassifier(long SetupProfile) *Classifier {
	return &Classifier{Long: long}
}

// IsLongSetup: the symbol dropped from the open but is bouncing off its low.
func (c *Classifier) IsLongSetup(s domain.CandidateStats) bool {
	if s.Open <= 0 || s.Low <= 0 {
		return false
	}
	drop := s.Drop()
	if drop < c.Long.MinDrop || drop > c.Long.MaxDrop {
		return false
	}
	if s.Bounce() < c.Long.MinBounce {
		return false
	}
	if c.Long.RequireBelowOpen && s.Current >= s.Open {
		return false
	}
	return true
}

// IsShortSetup: the symbol dropped hard and is still pinned near its low.
func (c *Classifier) IsShortSetup(s domain.CandidateStats) bool {
	if s.Open <= 0 || s.Low <= 0 {
		return false
	}
	return s.Drop() >= 3 && s.Bounce() <= 1
}

// MeetsMomentum is the high-scanning variant: up at least 3% from the open
// and within 1% of the session high. Used by the standalone scanner.
func MeetsMomentum(s domain.CandidateStats) bool {
	if s.Open <= 0 || s.High <= 0 {
		return false
	}
	change := ((s.Current - s.Open) / s.Open) * 100
	distToHigh := ((s.High - s.Current) / s.High) * 100
	return change >= 3 && distToHigh <= 1
}

// RankLongs orders candidates by descending bounce: favor the symbols
// furthest off their low.
func RankLongs(list []domain.CandidateStats) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Bounce() > list[j].Bounce()
	})
}

// RankShorts orders candidates by descending drop: favor the weakest symbols.
func RankShorts(list []domain.CandidateStats) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Drop() > list[j].Drop()
	})
}
