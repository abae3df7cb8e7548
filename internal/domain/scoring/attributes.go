package scoring

import (
	"math"
	"time"
)

// Known profession labels.
const (
	SoftwareEngineer = "Software Engineer"
	DataScientist    = "Data Scientist"
	ProjectManager   = "Project Manager"
)

type professionPair struct{ a, b string }

// professionTable holds each unordered pair once; lookups try both orders.
var professionTable = map[professionPair]float64{ //nolint:gochecknoglobals // static lookup table
	{SoftwareEngineer, DataScientist}:  0.8,
	{SoftwareEngineer, ProjectManager}: 0.5,
	{DataScientist, ProjectManager}:    0.6,
}

// ProfessionSimilarity is 1 for identical labels, the table value for a
// known pair in either order, and 0 otherwise.
func ProfessionSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if v, ok := professionTable[professionPair{a, b}]; ok {
		return v
	}
	if v, ok := professionTable[professionPair{b, a}]; ok {
		return v
	}
	return 0
}

// AgeOn returns the number of full years between birth and now.
func AgeOn(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// AgeSimilarity is 1 - |ageA-ageB|/100. It is not clamped, so age gaps over
// a century go negative.
func AgeSimilarity(birthA, birthB, now time.Time) float64 {
	diff := math.Abs(float64(AgeOn(birthA, now) - AgeOn(birthB, now)))
	return 1 - diff/100
}

// Logistic curve used to normalize years of experience.
const (
	experienceMidpoint = 5.0
	experienceScale    = 2.0
)

// NormalizeExperience maps years onto (0, 1) with a logistic curve centered on 5 years.
func NormalizeExperience(years float64) float64 {
	return 1 / (1 + math.Exp(-(years-experienceMidpoint)/experienceScale))
}

// ExperienceSimilarity is 1 minus the distance of the normalized values.
func ExperienceSimilarity(a, b float64) float64 {
	return 1 - math.Abs(NormalizeExperience(a)-NormalizeExperience(b))
}
