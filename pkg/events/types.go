package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the system.
type EventType string

const (
	SessionStarted       EventType = "session.started"
	SessionEnded         EventType = "session.ended"
	CaptionPartial       EventType = "caption.partial"
	CaptionFinal         EventType = "caption.final"
	TranslationCompleted EventType = "translation.completed"
	TranslationFailed    EventType = "translation.failed"
	TranscriberFallback  EventType = "transcriber.fallback"
	SystemError          EventType = "error"
	WebhookTest          EventType = "webhook.test"
)

// Envelope is the standard event wrapper published to the event bus.
type Envelope struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Source    string            `json:"source"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SessionStartedData is the payload for session.started events.
type SessionStartedData struct {
	RequestedBackend string `json:"requested_backend"`
	ActiveBackend    string `json:"active_backend"`
	Model            string `json:"model"`
	SourceLanguage   string `json:"source_language,omitempty"`
	TargetLanguage   string `json:"target_language,omitempty"`
}

// SessionEndedData is the payload for session.ended events.
type SessionEndedData struct {
	Reason     string `json:"reason"`
	DurationMs int64  `json:"duration_ms"`
	Chunks     int    `json:"chunks"`
}

// CaptionData is the payload for caption.partial and caption.final events.
type CaptionData struct {
	ChunkID    int    `json:"chunk_id"`
	Text       string `json:"text"`
	Backend    string `json:"backend"`
	DurationMs int64  `json:"duration_ms"`
}

// TranslationData is the payload for translation.completed events.
type TranslationData struct {
	ChunkID    int    `json:"chunk_id"`
	SourceText string `json:"source_text"`
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

// TranslationFailedData is the payload for translation.failed events.
type TranslationFailedData struct {
	ChunkID    int    `json:"chunk_id"`
	SourceText string `json:"source_text"`
	Error      string `json:"error"`
}

// TranscriberFallbackData is the payload for transcriber.fallback events,
// emitted when a requested backend could not initialize and the primary
// engine was substituted.
type TranscriberFallbackData struct {
	RequestedBackend string `json:"requested_backend"`
	RequestedModel   string `json:"requested_model"`
	ActiveBackend    string `json:"active_backend"`
	ActiveModel      string `json:"active_model"`
	Error            string `json:"error"`
}

// WebhookTestData is the payload for webhook.test events.
type WebhookTestData struct {
	WebhookID string `json:"webhook_id"`
	Message   string `json:"message"`
}
