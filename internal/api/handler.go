// Package api exposes the REST and SSE surface: session lifecycle, audio
// ingest, caption history, backend discovery, and the live event stream.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/livetranslate/livetranslate/internal/audio"
	"github.com/livetranslate/livetranslate/internal/session"
	"github.com/livetranslate/livetranslate/internal/speech/engine"
	"github.com/livetranslate/livetranslate/internal/speech/registry"
	"github.com/livetranslate/livetranslate/pkg/events"
)

// maxAudioBodySize bounds one audio push: 60 s of 16 kHz PCM16 plus headers.
const maxAudioBodySize = 2 << 20

const maxRequestBodySize = 1 << 20

// Handler serves the transcription API.
type Handler struct {
	sessions  *session.Manager
	registry  *registry.Registry
	publisher *events.Publisher
}

// NewHandler creates the API handler.
func NewHandler(sessions *session.Manager, reg *registry.Registry, publisher *events.Publisher) *Handler {
	return &Handler{sessions: sessions, registry: reg, publisher: publisher}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sessions", h.CreateSession)
	mux.HandleFunc("GET /api/v1/sessions", h.ListSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.CloseSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/audio", h.PushAudio)
	mux.HandleFunc("GET /api/v1/sessions/{id}/captions", h.GetCaptions)
	mux.HandleFunc("GET /api/v1/backends", h.ListBackends)
	mux.HandleFunc("GET /api/v1/events", h.StreamEvents)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func toSessionResponse(s *session.Session) SessionResponse {
	var models []ModelResponse
	for _, m := range s.Models() {
		models = append(models, ModelResponse{
			ID:          m.ID,
			DisplayName: m.DisplayName,
			IsDefault:   m.IsDefault,
		})
	}
	return SessionResponse{
		ID:               s.ID,
		RequestedBackend: string(s.RequestedBackend),
		ActiveBackend:    string(s.ActiveBackend()),
		Model:            s.Model(),
		AvailableModels:  models,
		Chunks:           s.Chunks(),
		StartedAt:        s.StartedAt.Format(time.RFC3339),
		LastActivity:     s.LastActivity().Format(time.RFC3339),
	}
}

// CreateSession handles POST /api/v1/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	backend, err := engine.ParseBackend(req.Backend)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.sessions.Open(r.Context(), session.OpenRequest{
		Backend:        backend,
		Model:          req.Model,
		SourceLanguage: req.SourceLanguage,
	})
	if err != nil {
		var exhausted *engine.FallbackExhaustedError
		if errors.As(err, &exhausted) {
			writeError(w, http.StatusServiceUnavailable, exhausted.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to open session")
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(s))
}

// ListSessions handles GET /api/v1/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	open := h.sessions.List()
	resp := make([]SessionResponse, 0, len(open))
	for _, s := range open {
		resp = append(resp, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSession handles GET /api/v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// CloseSession handles DELETE /api/v1/sessions/{id}
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.sessions.Close(r.Context(), id, "client_request"); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PushAudio handles POST /api/v1/sessions/{id}/audio. The body is either a
// 16-bit PCM WAV file (Content-Type audio/wav) or raw little-endian PCM16
// with a sample_rate query parameter. Audio is resampled to 16 kHz.
func (h *Handler) PushAudio(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty audio body")
		return
	}

	var (
		samples []float32
		rate    int
	)
	switch r.Header.Get("Content-Type") {
	case "audio/wav", "audio/x-wav", "audio/wave":
		samples, rate, err = audio.DecodeWAV(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid WAV: %v", err))
			return
		}
	default:
		rate, err = strconv.Atoi(r.URL.Query().Get("sample_rate"))
		if err != nil || rate <= 0 {
			writeError(w, http.StatusBadRequest, "raw PCM requires a sample_rate query parameter")
			return
		}
		if len(body)%2 != 0 {
			writeError(w, http.StatusBadRequest, "raw PCM body must be 16-bit aligned")
			return
		}
		samples = audio.PCM16ToFloat32(body)
	}

	if rate != engine.SampleRate {
		samples = audio.Resample(samples, rate, engine.SampleRate)
	}

	if err := s.PushAudio(samples); err != nil {
		writeError(w, http.StatusGone, "session closed")
		return
	}

	writeJSON(w, http.StatusAccepted, AudioAcceptedResponse{
		SessionID:  s.ID,
		DurationMs: float64(len(samples)) / float64(engine.SampleRate) * 1000,
	})
}

// GetCaptions handles GET /api/v1/sessions/{id}/captions
func (h *Handler) GetCaptions(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
		since = n
	}

	writeJSON(w, http.StatusOK, CaptionsResponse{
		SessionID: s.ID,
		Captions:  s.Captions(since),
	})
}

// ListBackends handles GET /api/v1/backends
func (h *Handler) ListBackends(w http.ResponseWriter, r *http.Request) {
	names := h.registry.List()
	resp := make([]BackendResponse, 0, len(names))
	for _, name := range names {
		resp = append(resp, BackendResponse{
			Name:      string(name),
			IsPrimary: name == engine.FallbackTarget,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// StreamEvents handles GET /api/v1/events as a server-sent event stream.
// An optional session_id query parameter narrows the stream to one session.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sessionFilter := r.URL.Query().Get("session_id")

	subID := "sse-" + xid.New().String()
	ch := h.publisher.Subscribe(subID, 128)
	defer h.publisher.Unsubscribe(subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case env, ok := <-ch:
			if !ok {
				return
			}
			if sessionFilter != "" && env.SessionID != sessionFilter {
				continue
			}
			payload, err := json.Marshal(env)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Type, payload)
			flusher.Flush()
		}
	}
}
