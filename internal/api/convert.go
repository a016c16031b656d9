package api

import (
	"encoding/json"
	"time"

	"sermoncast/internal/deps"
	"sermoncast/internal/playback"
	"sermoncast/internal/preflight"
	"sermoncast/internal/queue"
	"sermoncast/internal/workflow"
)

// FromItem converts a queue record to its API representation.
func FromItem(item *queue.Item) Job {
	if item == nil {
		return Job{}
	}
	dto := Job{
		ID:         item.ID,
		AssetID:    item.AssetID,
		Kind:       item.Kind,
		SourcePath: item.SourcePath,
		MIMEType:   item.MIMEType,
		SourceSize: item.SourceSize,
		Status:     string(item.Status),
		Progress: JobProgress{
			Stage:   item.ProgressStage,
			Label:   workflow.StageLabel(item.ProgressStage),
			Percent: item.ProgressPercent,
			Message: item.ProgressMessage,
		},
		ErrorKind:   item.ErrorKind,
		Error:       item.ErrorMessage,
		FailedStage: item.FailedStage,
		NeedsReview: item.NeedsReview,
		Attempts:    item.Attempts,
		CreatedAt:   FormatTime(item.CreatedAt),
		UpdatedAt:   FormatTime(item.UpdatedAt),
	}
	if item.StartedAt != nil {
		dto.StartedAt = FormatTime(*item.StartedAt)
	}
	if item.CompletedAt != nil {
		dto.CompletedAt = FormatTime(*item.CompletedAt)
	}
	if raw := item.OptionsJSON; raw != "" && json.Valid([]byte(raw)) {
		dto.Options = json.RawMessage(raw)
	}
	if raw := item.ResultJSON; raw != "" && json.Valid([]byte(raw)) {
		dto.Result = json.RawMessage(raw)
	}
	return dto
}

// FromItems converts a slice of queue records into API DTOs.
func FromItems(items []*queue.Item) []Job {
	if len(items) == 0 {
		return nil
	}
	out := make([]Job, 0, len(items))
	for _, item := range items {
		out = append(out, FromItem(item))
	}
	return out
}

// FromStatusSummary converts workflow diagnostics into the API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:    summary.Running,
		QueueStats: MergeQueueStats(summary.QueueStats),
		LastError:  summary.LastError,
	}
	if summary.LastItem != nil {
		last := FromItem(summary.LastItem)
		wf.LastJob = &last
	}
	if summary.Current != nil {
		current := FromItem(summary.Current)
		wf.Current = &current
	}
	return wf
}

// MergeQueueStats keys stats by status string and fills absent statuses with
// zero so clients always see every bucket.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FromDependencies converts binary checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Version:     s.Version,
			Detail:      s.Detail,
		})
	}
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckStatus {
	out := make([]CheckStatus, 0, len(results))
	for _, r := range results {
		out = append(out, CheckStatus{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// FromSnapshot converts a playback session snapshot.
func FromSnapshot(s playback.Snapshot) PlaybackState {
	return PlaybackState{
		State:      string(s.State),
		Position:   s.Position,
		Duration:   s.Duration,
		Percent:    s.Percent,
		Rendition:  s.Rendition,
		Rate:       s.Rate,
		Milestones: s.Milestones,
	}
}

// FromRenditions converts the quality ladder offered to a player.
func FromRenditions(renditions []playback.Rendition) []Rendition {
	if len(renditions) == 0 {
		return nil
	}
	out := make([]Rendition, 0, len(renditions))
	for _, r := range renditions {
		out = append(out, Rendition{Label: r.Label, Bitrate: r.Bitrate, URI: r.URI})
	}
	return out
}

// FormatTime renders t in the API timestamp format; zero times render empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
