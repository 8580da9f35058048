package domain

import "time"

// User is the persisted part of a profile. Trip preferences are per request
// (see QueryContext) and never stored.
type User struct {
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecommendationRun is one ranked result kept for audit/export.
type RecommendationRun struct {
	ID        string           `json:"id"`
	Username  string           `json:"username"`
	Query     QueryContext     `json:"query"`
	Items     []Recommendation `json:"items"`
	CreatedAt time.Time        `json:"created_at"`
}
