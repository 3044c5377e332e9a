package circulation

import "time"

const (
	DefaultFinePerDay int64 = 10

	day = 24 * time.Hour
)

// FinePolicy computes overdue fines in whole days; partial days are not charged.
type FinePolicy struct {
	PerDay int64
}

func NewFinePolicy(perDay int64) FinePolicy {
	if perDay < 0 {
		perDay = 0
	}
	return FinePolicy{PerDay: perDay}
}

// DaysOverdue returns the number of whole days elapsed between due and at, or 0 if at is not after due.
func (p FinePolicy) DaysOverdue(due, at time.Time) int64 {
	if !at.After(due) {
		return 0
	}
	return int64(at.Sub(due) / day)
}

func (p FinePolicy) Fine(due, at time.Time) int64 {
	return p.DaysOverdue(due, at) * p.PerDay
}
