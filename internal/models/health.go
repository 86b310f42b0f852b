package models

// HealthReason classifies the result of a health check.
type HealthReason string

const (
	ReasonOK       HealthReason = "ok"
	ReasonEmpty    HealthReason = "empty"
	ReasonMismatch HealthReason = "mismatch"
)

// HealthReport compares the number of files the preset matches against the hash cache size.
type HealthReport struct {
	Expected     int          `json:"expected"`
	Cached       int          `json:"cached"`
	NeedsReindex bool         `json:"needs_reindex"`
	Reason       HealthReason `json:"reason"`
}
