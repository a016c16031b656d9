package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// DaemonStopReason is the progress message set when a job is reset because
// the daemon stopped while it was running.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// DatabaseHealth captures diagnostic information about the database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary aggregates job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Item is one persisted processing job.
type Item struct {
	ID              int64
	AssetID         string
	Kind            string
	SourcePath      string
	MIMEType        string
	SourceSize      int64
	OptionsJSON     string
	Status          Status
	ProgressStage   string
	ProgressPercent int
	ProgressMessage string
	ResultJSON      string
	ErrorKind       string
	ErrorMessage    string
	FailedStage     string
	NeedsReview     bool
	Attempts        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	LastHeartbeat   *time.Time
}

// NewJob describes a job to enqueue.
type NewJob struct {
	AssetID     string
	Kind        string
	SourcePath  string
	MIMEType    string
	SourceSize  int64
	OptionsJSON string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing reports whether the job is being worked on.
func (i Item) IsProcessing() bool {
	return i.Status == StatusProcessing
}

// IsTerminal reports whether the job finished, successfully or not.
func (i Item) IsTerminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusFailed
}

// SetProgress updates all three progress fields together.
func (i *Item) SetProgress(stage, message string, percent int) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// MarkProcessing starts a new attempt.
func (i *Item) MarkProcessing(now time.Time) {
	i.Status = StatusProcessing
	i.Attempts++
	i.StartedAt = &now
	i.CompletedAt = nil
	i.LastHeartbeat = &now
	i.ErrorKind = ""
	i.ErrorMessage = ""
	i.FailedStage = ""
	i.NeedsReview = false
	i.SetProgress("INIT", "Starting", 0)
}

// MarkCompleted records a successful run and its result payload.
func (i *Item) MarkCompleted(resultJSON string, now time.Time) {
	i.Status = StatusCompleted
	i.ResultJSON = resultJSON
	i.CompletedAt = &now
	i.LastHeartbeat = nil
	i.SetProgress("DONE", "Completed", 100)
}

// SetFailed marks the job failed. kind is the stable error classification;
// NeedsReview is set for failures a plain retry cannot fix.
func (i *Item) SetFailed(stage, kind, message string, now time.Time) {
	i.Status = StatusFailed
	i.FailedStage = stage
	i.ErrorKind = kind
	i.ErrorMessage = message
	i.NeedsReview = NeedsReview(kind)
	i.CompletedAt = &now
	i.LastHeartbeat = nil
	i.ProgressMessage = message
	i.ProgressStage = "FAILED"
}
