// Package control exposes the call manager to local UI collaborators over
// HTTP, with a WebSocket stream of session snapshots.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"vico_home/callcore/internal/call"
	"vico_home/callcore/internal/domain"
)

// Calls is the subset of call.Manager the API drives.
type Calls interface {
	StartCall(ctx context.Context, peerID string, kind domain.MediaKind) (*domain.CallSession, error)
	AcceptCall(ctx context.Context) error
	RejectCall(ctx context.Context) error
	EndCall(ctx context.Context) error
	ToggleMute(ctx context.Context) (bool, error)
	ToggleVideo(ctx context.Context) (bool, error)
	SwitchCamera(ctx context.Context) error
	State() *domain.CallSession
	OnStateChange(fn call.Observer) func()
}

// Server is the local control API.
type Server struct {
	calls     Calls
	connected func() bool
	log       zerolog.Logger
}

// NewServer creates the API. connected reports the event channel state for
// /healthz and may be nil.
func NewServer(calls Calls, connected func() bool, logger zerolog.Logger) *Server {
	if connected == nil {
		connected = func() bool { return true }
	}
	return &Server{
		calls:     calls,
		connected: connected,
		log:       logger.With().Str("component", "control").Logger(),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Route("/call", func(r chi.Router) {
		r.Get("/", s.state)
		r.Get("/events", s.events)
		r.Post("/start", s.start)
		r.Post("/accept", s.action(s.calls.AcceptCall))
		r.Post("/reject", s.action(s.calls.RejectCall))
		r.Post("/end", s.action(s.calls.EndCall))
		r.Post("/mute", s.mute)
		r.Post("/video", s.video)
		r.Post("/camera", s.action(s.calls.SwitchCamera))
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("control API listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

type startRequest struct {
	PeerID    string           `json:"peerId"`
	MediaKind domain.MediaKind `json:"mediaKind"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"connected": s.connected(),
	})
}

func (s *Server) state(w http.ResponseWriter, _ *http.Request) {
	st := s.calls.State()
	if st == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.MediaKind == "" {
		req.MediaKind = domain.MediaVoice
	}

	sess, err := s.calls.StartCall(r.Context(), req.PeerID, req.MediaKind)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) action(fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context()); err != nil {
			s.fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) mute(w http.ResponseWriter, r *http.Request) {
	muted, err := s.calls.ToggleMute(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isMuted": muted})
}

func (s *Server) video(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.calls.ToggleVideo(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isVideoEnabled": enabled})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidMediaKind), errors.Is(err, domain.ErrInvalidPeer):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrCallInProgress),
		errors.Is(err, domain.ErrNoIncomingCall),
		errors.Is(err, domain.ErrNoActiveCall):
		return http.StatusConflict
	case errors.Is(err, call.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
