package model

import "time"

// Gender of a profile owner.
type Gender string

// Known genders.
const (
	GenderMan   Gender = "man"
	GenderWoman Gender = "woman"
)

// Valid reports whether g is one of the known genders.
func (g Gender) Valid() bool {
	return g == GenderMan || g == GenderWoman
}

// Profile is a person being recommended. Profiles are owned by an external
// collaborator and treated as read-only input.
type Profile struct {
	ID              string    `json:"id"`
	FirstName       string    `json:"first_name"`
	Surname         string    `json:"surname"`
	CreatedDate     time.Time `json:"created_date"`
	Description     string    `json:"description"`
	BirthDate       time.Time `json:"birth_date"`
	Gender          Gender    `json:"gender"`
	CityName        string    `json:"city_name"`
	ProfessionLabel string    `json:"profession_label"`
	ExperienceYears float64   `json:"experience_years"`
}
