package cron_feature

import "time"

// ScheduledSync is one registered auto-sync job.
type ScheduledSync struct {
	ConnectionID string    `json:"connection_id"`
	TenantID     string    `json:"tenant_id"`
	Schedule     string    `json:"schedule"` // cron spec, minute hour
	NextRun      time.Time `json:"next_run"`
}
