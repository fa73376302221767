// internal/models/profile.go
package models

import "time"

// ProfileInput is the canonical numeric input to the scoring engine.
// All fields are derived by an input builder; raw source records are
// never interpreted anywhere else.
type ProfileInput struct {
	TotalMonths      float64  `json:"totalMonths"`      // >= 0, verified tenure only
	ReviewCount      int      `json:"reviewCount"`      // >= 0
	SentimentAverage float64  `json:"sentimentAverage"` // [-1, 1]
	AverageRating    float64  `json:"averageRating"`    // clamped [1, 5]
	RehireEligible   bool     `json:"rehireEligible"`
	FraudScore       *float64 `json:"fraudScore,omitempty"` // [0, 1], nil when unknown
}

// EmploymentSpan is one work-history record as stored.
type EmploymentSpan struct {
	ID        string     `json:"id"`
	ProfileID string     `json:"profileId"`
	Employer  string     `json:"employer"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate"` // nil for an open span
	Verified  bool       `json:"verified"`
}

// PeerReview carries a rating and a sentiment reading for a profile.
type PeerReview struct {
	ID        string  `json:"id"`
	ProfileID string  `json:"profileId"`
	Rating    float64 `json:"rating"`    // source scale 1-5
	Sentiment float64 `json:"sentiment"` // source scale 0-100
}

// EntityType tags which data space a scored record belongs to.
type EntityType string

const (
	EntityTypeRealProfile      EntityType = "real-profile"
	EntityTypeSyntheticProfile EntityType = "synthetic-profile"
)
