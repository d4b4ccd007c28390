package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun records one scrape execution for one site. RunUID correlates
// log lines across the run.
type ScrapeRun struct {
	ID           int64      `json:"id" db:"id"`
	RunUID       string     `json:"run_uid" db:"run_uid"`
	SiteID       string     `json:"site_id" db:"site_id"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	Status       RunStatus  `json:"status" db:"status"`
	LeadsFound   int        `json:"leads_found" db:"leads_found"`
	LeadsSaved   int        `json:"leads_saved" db:"leads_saved"`
	LeadsUpdated int        `json:"leads_updated" db:"leads_updated"`
	ErrorsCount  int        `json:"errors_count" db:"errors_count"`
}
