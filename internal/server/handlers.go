package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rostermap/internal/model"
	"github.com/sells-group/rostermap/internal/scheduler"
	"github.com/sells-group/rostermap/pkg/geocode"
)

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	State      string            `json:"state"`
	Skipped    int64             `json:"skipped_ticks"`
	LastReport *scheduler.Report `json:"last_report,omitempty"`
	Geocode    *geocode.Stats    `json:"geocode,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func respondJSONError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		MapOptions
		RefreshMillis int64
	}{s.opts.Map, s.opts.Map.Refresh.Milliseconds()}
	if err := s.page.Execute(w, data); err != nil {
		zap.L().Error("server: render map page", zap.Error(err))
	}
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	etag := `"` + strconv.FormatUint(s.deps.Layer.Version(), 10) + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	body, err := s.deps.Layer.GeoJSON()
	if err != nil {
		zap.L().Error("server: build geojson", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "could not build marker layer")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(body)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		State:   s.deps.Syncer.State().String(),
		Skipped: s.deps.Syncer.Skipped(),
	}
	if rep, ok := s.deps.Syncer.LastReport(); ok {
		rep.Entities = nil
		resp.LastReport = &rep
	}
	if s.deps.Geocoder != nil {
		st := s.deps.Geocoder.Stats()
		resp.Geocode = &st
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleSync runs a cycle now. The cycle is detached from the request so a
// client hanging up does not abort it halfway.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	rep, err := s.deps.Syncer.RunOnce(context.WithoutCancel(r.Context()))
	switch {
	case eris.Is(err, scheduler.ErrCycleInProgress):
		respondJSONError(w, http.StatusConflict, "a sync cycle is already running")
	case err != nil:
		rep.Entities = nil
		respondJSON(w, http.StatusBadGateway, rep)
	default:
		rep.Entities = nil
		respondJSON(w, http.StatusOK, rep)
	}
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	all := s.deps.Entities.Snapshot()

	filter := r.URL.Query().Get("renderable")
	if filter == "" {
		respondJSON(w, http.StatusOK, all)
		return
	}
	want, err := strconv.ParseBool(filter)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "renderable must be true or false")
		return
	}
	out := make([]model.Entity, 0, len(all))
	for _, e := range all {
		if e.Renderable() == want {
			out = append(out, e)
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, ok := s.deps.Entities.Get(chi.URLParam(r, "id"))
	if !ok {
		respondJSONError(w, http.StatusNotFound, "entity not found")
		return
	}
	respondJSON(w, http.StatusOK, e)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.deps.Entities.Invalidate(id) {
		respondJSONError(w, http.StatusNotFound, "entity not found")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "invalidated", "id": id})
}
