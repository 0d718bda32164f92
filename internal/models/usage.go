package models

import "time"

// Usage is the singleton record tracking provider-call counts for the
// current day and month. The daily counter rolls at day boundaries,
// the monthly counter at month boundaries.
type Usage struct {
	DailyCalls   int       `json:"dailyCalls"`
	MonthlyCalls int       `json:"monthlyCalls"`
	LastReset    time.Time `json:"lastReset"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
