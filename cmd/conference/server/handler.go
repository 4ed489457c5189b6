package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thesyncim/confcheck/pkg/media"
	"github.com/thesyncim/confcheck/pkg/relay"
)

// negotiationTimeout bounds ICE gathering for one offer.
const negotiationTimeout = 10 * time.Second

// PublishRequest is the body of POST /api/publish.
type PublishRequest struct {
	StreamName string                    `json:"streamName"`
	Offer      webrtc.SessionDescription `json:"offer"`
	Sources    []relay.Source            `json:"sources"`
}

// ViewRequest is the body of POST /api/view.
type ViewRequest struct {
	StreamName string                    `json:"streamName"`
	Offer      webrtc.SessionDescription `json:"offer"`
}

// AnswerResponse carries the relay's answer. ViewerID is set for viewers.
type AnswerResponse struct {
	Answer   *webrtc.SessionDescription `json:"answer"`
	ViewerID string                     `json:"viewerId,omitempty"`
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /publisher", s.handleApp(publisherApp))
	mux.HandleFunc("GET /viewer", s.handleApp(viewerApp))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	mux.HandleFunc("POST /api/publish", s.handlePublish)
	mux.HandleFunc("DELETE /api/publish", s.handleUnpublish)
	mux.HandleFunc("POST /api/view", s.handleView)
	mux.HandleFunc("DELETE /api/view", s.handleLeave)
	mux.HandleFunc("POST /api/resolutions", handleResolutions)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/events", s.hub.HandleEvents)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("duration", time.Since(start)).Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// relayStatus maps relay errors to HTTP status codes.
func relayStatus(err error) int {
	switch {
	case errors.Is(err, relay.ErrAlreadyLive), errors.Is(err, relay.ErrNotLive):
		return http.StatusConflict
	case errors.Is(err, relay.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Warn().Err(err).Msg("failed to decode publish request")
		http.Error(w, "invalid publish request", http.StatusBadRequest)
		return
	}
	if req.StreamName == "" {
		http.Error(w, "streamName is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), negotiationTimeout)
	defer cancel()
	answer, err := s.relay.Publish(ctx, req.StreamName, req.Offer, req.Sources...)
	if err != nil {
		s.log.Warn().Err(err).Str("stream", req.StreamName).Msg("publish failed")
		http.Error(w, err.Error(), relayStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, AnswerResponse{Answer: answer})
}

func (s *Server) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("streamName")
	if err := s.relay.Unpublish(name); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	var req ViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Warn().Err(err).Msg("failed to decode view request")
		http.Error(w, "invalid view request", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), negotiationTimeout)
	defer cancel()
	answer, id, err := s.relay.View(ctx, req.StreamName, req.Offer)
	if err != nil {
		s.log.Debug().Err(err).Str("stream", req.StreamName).Msg("view failed")
		http.Error(w, err.Error(), relayStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, AnswerResponse{Answer: answer, ViewerID: id})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.relay.Leave(q.Get("streamName"), q.Get("viewerId"))
	w.WriteHeader(http.StatusNoContent)
}

// handleResolutions answers the camera capabilities posted by the publisher
// with the resolutions it may offer.
func handleResolutions(w http.ResponseWriter, r *http.Request) {
	var caps media.Capabilities
	if err := json.NewDecoder(r.Body).Decode(&caps); err != nil {
		http.Error(w, "invalid capabilities", http.StatusBadRequest)
		return
	}
	res := media.Resolutions(caps)
	if res == nil {
		res = []media.Resolution{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("streamName"); name != "" {
		writeJSON(w, http.StatusOK, s.relay.Status(name))
		return
	}
	writeJSON(w, http.StatusOK, s.relay.Streams())
}
