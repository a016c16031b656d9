package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a processing job in a transport-friendly format.
type Job struct {
	ID          int64           `json:"id"`
	AssetID     string          `json:"assetId"`
	Kind        string          `json:"kind"`
	SourcePath  string          `json:"sourcePath"`
	MIMEType    string          `json:"mimeType,omitempty"`
	SourceSize  int64           `json:"sourceSize"`
	Status      string          `json:"status"`
	Progress    JobProgress     `json:"progress"`
	Options     json.RawMessage `json:"options,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorKind   string          `json:"errorKind,omitempty"`
	Error       string          `json:"error,omitempty"`
	FailedStage string          `json:"failedStage,omitempty"`
	NeedsReview bool            `json:"needsReview"`
	Attempts    int             `json:"attempts"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	UpdatedAt   string          `json:"updatedAt,omitempty"`
	StartedAt   string          `json:"startedAt,omitempty"`
	CompletedAt string          `json:"completedAt,omitempty"`
}

// JobProgress captures the current pipeline state of a job.
type JobProgress struct {
	Stage   string `json:"stage"`
	Label   string `json:"label,omitempty"`
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

// EnqueueRequest is the payload for submitting an upload for processing.
type EnqueueRequest struct {
	AssetID    string          `json:"assetId,omitempty"`
	Kind       string          `json:"kind"`
	SourcePath string          `json:"sourcePath"`
	MIMEType   string          `json:"mimeType,omitempty"`
	Options    json.RawMessage `json:"options,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running    bool           `json:"running"`
	QueueStats map[string]int `json:"queueStats"`
	LastError  string         `json:"lastError,omitempty"`
	LastJob    *Job           `json:"lastJob,omitempty"`
	Current    *Job           `json:"current,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// CheckStatus mirrors a preflight check result.
type CheckStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool               `json:"running"`
	PID            int                `json:"pid"`
	DatabasePath   string             `json:"databasePath"`
	LockFilePath   string             `json:"lockFilePath"`
	StorageBackend string             `json:"storageBackend"`
	TelemetrySink  string             `json:"telemetrySink"`
	IngestDir      string             `json:"ingestDir,omitempty"`
	Sessions       int                `json:"playbackSessions"`
	Workflow       WorkflowStatus     `json:"workflow"`
	Dependencies   []DependencyStatus `json:"dependencies"`
	Checks         []CheckStatus      `json:"checks,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// PlaybackSessionRequest opens a playback session for a published asset.
// MasterPlaylist, when present, supplies the quality ladder.
type PlaybackSessionRequest struct {
	AssetID        string  `json:"assetId"`
	Duration       float64 `json:"duration"`
	MasterPlaylist string  `json:"masterPlaylist,omitempty"`
}

// PlaybackSessionResponse describes an open playback session.
type PlaybackSessionResponse struct {
	SessionID  string        `json:"sessionId"`
	ResumeAt   float64       `json:"resumeAt"`
	Renditions []Rendition   `json:"renditions,omitempty"`
	Rates      []float64     `json:"rates"`
	State      PlaybackState `json:"state"`
}

// Rendition is one selectable quality level.
type Rendition struct {
	Label   string `json:"label"`
	Bitrate int    `json:"bitrate"`
	URI     string `json:"uri"`
}

// PlaybackEventRequest reports a player event. Type is one of play, pause,
// timeupdate, ended, quality, speed, download or error.
type PlaybackEventRequest struct {
	Type      string  `json:"type"`
	Position  float64 `json:"position,omitempty"`
	Rendition *int    `json:"rendition,omitempty"`
	Rate      float64 `json:"rate,omitempty"`
	URL       string  `json:"url,omitempty"`
	ErrorKind string  `json:"errorKind,omitempty"`
	Detail    string  `json:"detail,omitempty"`
}

// PlaybackEventResponse carries the session state after an event and, for
// fatal errors, the recovery action the player should take.
type PlaybackEventResponse struct {
	Action string        `json:"action,omitempty"`
	State  PlaybackState `json:"state"`
}

// PlaybackState is the transport form of a session snapshot.
type PlaybackState struct {
	State      string          `json:"state"`
	Position   float64         `json:"position"`
	Duration   float64         `json:"duration"`
	Percent    int             `json:"percent"`
	Rendition  int             `json:"rendition"`
	Rate       float64         `json:"rate"`
	Milestones map[string]bool `json:"milestones"`
}
