package domain

import "time"

// UsageResetLog records one bulk usage reset run. The newest RunAt acts
// as the recompute cutoff: claims submitted before it stay forgotten.
type UsageResetLog struct {
	ID            string
	RunAt         time.Time
	UsersAffected int64
	Note          string
	CreatedAt     time.Time
}
