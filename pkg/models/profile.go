package models

import "time"

// Profile is the stored per-user fitness profile record.
type Profile struct {
	UserID          string    `json:"user_id"`
	ExperienceLevel string    `json:"experience_level,omitempty"`
	PrimaryGoal     string    `json:"primary_goal,omitempty"`
	SchedulePrefs   string    `json:"schedule_prefs,omitempty"`
	MealPrefs       string    `json:"meal_prefs,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Summary projects the stored profile onto the fields handlers prompt with.
func (p *Profile) Summary() ProfileSummary {
	return ProfileSummary{
		ExperienceLevel: p.ExperienceLevel,
		PrimaryGoal:     p.PrimaryGoal,
	}
}
