package history

import "time"

// Record statuses.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Record is a single task run against a target.
type Record struct {
	ID              int64      `json:"id"`
	Target          string     `json:"target"`
	Operation       string     `json:"operation"`
	Hosts           string     `json:"hosts"`
	Branch          string     `json:"branch"`
	Revision        *string    `json:"revision,omitempty"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
}

// TargetStatus is the latest run of a target plus its recent history.
type TargetStatus struct {
	Target        string   `json:"target"`
	Latest        *Record  `json:"latest,omitempty"`
	RecentHistory []Record `json:"recent_history"`
}
