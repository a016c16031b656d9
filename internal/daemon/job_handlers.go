package daemon

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"sermoncast/internal/api"
	"sermoncast/internal/logging"
	"sermoncast/internal/queue"
)

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := queue.ParseStatus(part)
			if !ok {
				s.writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(part))
				return
			}
			statuses = append(statuses, status)
		}
	}
	jobs, err := s.daemon.jobs.List(r.Context(), statuses...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []api.Job{}
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	job, err := s.daemon.jobs.Enqueue(r.Context(), req)
	if errors.Is(err, api.ErrAlreadyQueued) && job != nil {
		s.writeJSON(w, http.StatusConflict, api.JobResponse{Job: *job})
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.daemon.workflow.Wake()
	s.logger.Info("job enqueued",
		logging.JobID(job.ID),
		logging.AssetID(job.AssetID),
		logging.String("kind", job.Kind),
		logging.String(logging.FieldEventType, "job_enqueued"),
	)
	w.Header().Set("Location", "/api/jobs/"+strconv.FormatInt(job.ID, 10))
	s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: *job})
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	job, err := s.daemon.jobs.Describe(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: *job})
}

func (s *apiServer) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	result, err := s.daemon.jobs.RetryFailedJobsByID(r.Context(), []int64{id})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	switch result.Jobs[0].Outcome {
	case api.RetryJobNotFound:
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	case api.RetryJobNotFailed:
		s.writeError(w, http.StatusConflict, "only failed jobs can be retried")
		return
	}
	s.daemon.workflow.Hub().Forget(id)
	s.daemon.workflow.Wake()
	s.handleGetJob(w, r)
}

func (s *apiServer) handleRemoveJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	result, err := s.daemon.jobs.RemoveJobsByID(r.Context(), []int64{id})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	switch result.Jobs[0].Outcome {
	case api.RemoveJobNotFound:
		s.writeError(w, http.StatusNotFound, "job not found")
	case api.RemoveJobProcessing:
		s.writeError(w, http.StatusConflict, "job is processing")
	default:
		s.daemon.workflow.Hub().Forget(id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *apiServer) jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return 0, false
	}
	return id, true
}
