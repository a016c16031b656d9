package daemon

import (
	"errors"
	"math"
	"net/http"
	"strings"

	"sermoncast/internal/api"
	"sermoncast/internal/blob"
	"sermoncast/internal/logging"
	"sermoncast/internal/playback"
)

func (s *apiServer) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req api.PlaybackSessionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.AssetID = strings.TrimSpace(req.AssetID)
	if err := blob.ValidateAssetID(req.AssetID); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Duration < 0 || math.IsNaN(req.Duration) || math.IsInf(req.Duration, 0) {
		s.writeError(w, http.StatusBadRequest, "duration must be a non-negative number of seconds")
		return
	}
	var renditions []playback.Rendition
	if strings.TrimSpace(req.MasterPlaylist) != "" {
		parsed, err := playback.RenditionsFromMaster(req.MasterPlaylist)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid master playlist: "+err.Error())
			return
		}
		renditions = parsed
	}

	d := s.daemon
	controller := playback.NewController(req.AssetID, req.Duration,
		playback.WithStore(d.store),
		playback.WithEmitter(d.emitter),
		playback.WithRenditions(renditions),
		playback.WithLogger(s.logger),
	)
	resumeAt, err := controller.Mount(r.Context())
	if err != nil {
		s.logger.Warn("failed to restore playback position",
			logging.AssetID(req.AssetID),
			logging.Error(err),
		)
	}
	id := d.sessions.Add(controller)
	s.writeJSON(w, http.StatusCreated, api.PlaybackSessionResponse{
		SessionID:  id,
		ResumeAt:   resumeAt,
		Renditions: api.FromRenditions(renditions),
		Rates:      playback.AllowedRates,
		State:      api.FromSnapshot(controller.Snapshot()),
	})
}

func (s *apiServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	controller, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, api.PlaybackEventResponse{State: api.FromSnapshot(controller.Snapshot())})
}

func (s *apiServer) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if !s.daemon.sessions.Remove(r.PathValue("id")) {
		s.writeError(w, http.StatusNotFound, "playback session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionEvent applies one player event to the session. A session that
// has become unplayable answers 409 for everything except further errors.
func (s *apiServer) handleSessionEvent(w http.ResponseWriter, r *http.Request) {
	controller, ok := s.session(w, r)
	if !ok {
		return
	}
	var req api.PlaybackEventRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	resp := api.PlaybackEventResponse{}
	var err error
	switch strings.ToLower(strings.TrimSpace(req.Type)) {
	case "play":
		err = controller.Play(ctx)
	case "pause":
		if req.Position > 0 {
			err = controller.TimeUpdate(ctx, req.Position)
		}
		if err == nil {
			err = controller.Pause(ctx)
		}
	case "timeupdate":
		err = controller.TimeUpdate(ctx, req.Position)
	case "ended":
		err = controller.Ended(ctx)
	case "quality":
		index := playback.AutoQuality
		if req.Rendition != nil {
			index = *req.Rendition
		}
		if qErr := controller.SetQuality(ctx, index); qErr != nil {
			s.writeError(w, http.StatusBadRequest, qErr.Error())
			return
		}
	case "speed":
		if !playback.ValidRate(req.Rate) {
			s.writeError(w, http.StatusBadRequest, "unsupported playback rate")
			return
		}
		controller.SetSpeed(ctx, req.Rate)
	case "download":
		controller.Download(ctx, req.URL)
	case "error":
		kind, kErr := playback.ParseErrorKind(req.ErrorKind)
		if kErr != nil {
			s.writeError(w, http.StatusBadRequest, kErr.Error())
			return
		}
		action, hErr := controller.HandleError(ctx, kind, req.Detail)
		if hErr != nil && !errors.Is(hErr, playback.ErrUnplayable) {
			err = hErr
		}
		resp.Action = string(action)
	default:
		s.writeError(w, http.StatusBadRequest, "unknown event type "+req.Type)
		return
	}

	if errors.Is(err, playback.ErrUnplayable) {
		s.writeJSON(w, http.StatusConflict, api.PlaybackEventResponse{State: api.FromSnapshot(controller.Snapshot())})
		return
	}
	if err != nil {
		s.logger.Warn("playback event failed", logging.String("event", req.Type), logging.Error(err))
	}
	resp.State = api.FromSnapshot(controller.Snapshot())
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) session(w http.ResponseWriter, r *http.Request) (*playback.Controller, bool) {
	controller, ok := s.daemon.sessions.Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "playback session not found")
		return nil, false
	}
	return controller, true
}
