package domain

import "time"

// ContributionStatus enumerates contribution program states.
type ContributionStatus string

const (
	ContributionActive    ContributionStatus = "ACTIVE"
	ContributionCompleted ContributionStatus = "COMPLETED"
	ContributionCancelled ContributionStatus = "CANCELLED"
)

// Contribution is a funding program residents pay dues toward.
// CollectedAmount is a derived ledger total and is mutated only through
// Ledger.ApplyDelta, never written directly.
type Contribution struct {
	ID              string
	Title           string
	Description     string
	TargetAmount    int64
	CollectedAmount int64
	StartDate       time.Time
	EndDate         time.Time
	Status          ContributionStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AcceptsPayments reports whether the contribution is active and the
// given time falls inside its collection window.
func (c *Contribution) AcceptsPayments(now time.Time) bool {
	if c.Status != ContributionActive {
		return false
	}
	if now.Before(c.StartDate) {
		return false
	}
	return !now.After(c.EndDate)
}
