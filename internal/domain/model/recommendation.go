package model

// PairScore is the transient similarity of one candidate to a target.
type PairScore struct {
	ProfileID   string
	CandidateID string
	Similarity  float64
}

// StoredRecommendation is a persisted snapshot row. Recomputing a source
// profile replaces every row it previously owned.
type StoredRecommendation struct {
	ID              string
	SourceProfileID string
	TargetProfileID string
	Similarity      float64
}
