// Package types contains common types used across the application
package types

// Entry represents a ranked recommendation
type Entry struct {
	Rank       int     `json:"rank"`
	ProfileID  string  `json:"profile_id"`
	Similarity float64 `json:"similarity"`
}

// Ranking is the ordered outcome of scoring candidates against one target
type Ranking struct {
	TargetID string  `json:"target_id"`
	Entries  []Entry `json:"entries"`
	// Skipped counts candidates whose scoring failed
	Skipped int `json:"skipped"`
	// Scored counts candidates that produced a similarity, before truncation
	Scored int `json:"scored"`
}

// Breakdown is the per-factor view of a pair similarity
type Breakdown struct {
	City        float64 `json:"city"`
	Profession  float64 `json:"profession"`
	Age         float64 `json:"age"`
	Experience  float64 `json:"experience"`
	Description float64 `json:"description"`
	Total       float64 `json:"total"`
}

// Weights are the factor weights applied to a Breakdown
type Weights struct {
	City        float64 `json:"city"`
	Profession  float64 `json:"profession"`
	Age         float64 `json:"age"`
	Experience  float64 `json:"experience"`
	Description float64 `json:"description"`
}

// Sum returns the total weight
func (w Weights) Sum() float64 {
	return w.City + w.Profession + w.Age + w.Experience + w.Description
}

// Apply computes the weighted total of b's factors. The result is not clamped.
func (w Weights) Apply(b Breakdown) float64 {
	return b.City*w.City +
		b.Profession*w.Profession +
		b.Age*w.Age +
		b.Experience*w.Experience +
		b.Description*w.Description
}

// DefaultWeights returns the standard factor weights
func DefaultWeights() Weights {
	return Weights{City: 0.2, Profession: 0.3, Age: 0.2, Experience: 0.1, Description: 0.2}
}

// EntriesFrom converts descending similarities into 1-based ranked entries
func EntriesFrom(ids []string, similarities []float64) []Entry {
	out := make([]Entry, 0, len(ids))
	for i := range ids {
		out = append(out, Entry{Rank: i + 1, ProfileID: ids[i], Similarity: similarities[i]})
	}
	return out
}
