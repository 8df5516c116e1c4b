package domain

// CandidateStats holds the intraday numbers the classifier works on.
// Fetched fresh per evaluation, never persisted. High is only populated
// for the momentum variant that scans distance to the session high.
type CandidateStats struct {
	Symbol  string
	Open    float64
	High    float64
	Low     float64
	Current float64
}

// Drop is the percent fall from the session open to the current price.
func (s CandidateStats) Drop() float64 {
	if s.Open == 0 {
		return 0
	}
	return ((s.Open - s.Current) / s.Open) * 100
}

// Bounce is the percent recovery off the session low. The short setup
// reads the same number as distance-to-low.
func (s CandidateStats) Bounce() float64 {
	if s.Low == 0 {
		return 0
	}
	return ((s.Current - s.Low) / s.Low) * 100
}
