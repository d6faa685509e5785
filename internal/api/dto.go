package api

import "github.com/livetranslate/livetranslate/internal/session"

// CreateSessionRequest is the request body for opening a session.
type CreateSessionRequest struct {
	Backend        string `json:"backend,omitempty"`
	Model          string `json:"model,omitempty"`
	SourceLanguage string `json:"source_language,omitempty"`
}

// SessionResponse is the API view of a session.
type SessionResponse struct {
	ID               string          `json:"id"`
	RequestedBackend string          `json:"requested_backend"`
	ActiveBackend    string          `json:"active_backend"`
	Model            string          `json:"model"`
	AvailableModels  []ModelResponse `json:"available_models,omitempty"`
	Chunks           int             `json:"chunks"`
	StartedAt        string          `json:"started_at"`
	LastActivity     string          `json:"last_activity"`
}

// ModelResponse describes one model the session's active engine can load.
type ModelResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsDefault   bool   `json:"is_default,omitempty"`
}

// CaptionsResponse is the caption history of a session.
type CaptionsResponse struct {
	SessionID string            `json:"session_id"`
	Captions  []session.Caption `json:"captions"`
}

// BackendResponse describes one registered speech backend.
type BackendResponse struct {
	Name      string `json:"name"`
	IsPrimary bool   `json:"is_primary"`
}

// AudioAcceptedResponse acknowledges a pushed audio chunk.
type AudioAcceptedResponse struct {
	SessionID  string  `json:"session_id"`
	DurationMs float64 `json:"duration_ms"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
