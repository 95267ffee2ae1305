package profile

import "time"

// Profile is the application-level data held for an account, separate from
// its authentication record.
type Profile struct {
	AccountID   string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}
