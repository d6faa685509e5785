package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"
	"github.com/rs/xid"

	"github.com/livetranslate/livetranslate/internal/pipeline"
	"github.com/livetranslate/livetranslate/internal/speech/engine"
	"github.com/livetranslate/livetranslate/internal/speech/filter"
	"github.com/livetranslate/livetranslate/internal/speech/registry"
	"github.com/livetranslate/livetranslate/internal/speech/transcriber"
	"github.com/livetranslate/livetranslate/pkg/events"
)

// OpenRequest holds the caller's choices for a new session.
type OpenRequest struct {
	Backend        engine.Backend
	Model          string
	SourceLanguage string
}

// ManagerConfig wires the manager's collaborators and defaults.
type ManagerConfig struct {
	Registry   *registry.Registry
	Filters    *filter.Filter
	Translator pipeline.Translator
	Publisher  *events.Publisher
	Pool       workerpool.WorkerPool

	// EngineConfig is the base per-engine config (endpoints, device hints,
	// fallback model). Open clones it per session.
	EngineConfig map[string]string
	Pipeline     pipeline.Config
	IdleTimeout  time.Duration
}

// Manager opens, tracks, and reaps sessions.
type Manager struct {
	cfg ManagerConfig

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager. Call StartReaper to enable idle
// cleanup.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Open initializes an engine for the requested backend (falling back to the
// primary engine once if needed) and starts the session's pipeline. The
// error is a *engine.FallbackExhaustedError when no engine could be built.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	engineCfg := make(map[string]string, len(m.cfg.EngineConfig)+2)
	for k, v := range m.cfg.EngineConfig {
		engineCfg[k] = v
	}
	if req.Model != "" {
		engineCfg["model"] = req.Model
	}
	if req.SourceLanguage != "" {
		engineCfg["language"] = req.SourceLanguage
	}

	tr, err := transcriber.New(ctx, m.cfg.Registry, req.Backend, engineCfg, m.cfg.Filters)
	if err != nil {
		return nil, err
	}

	id := xid.New().String()
	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	pipeCfg := m.cfg.Pipeline
	if tr.ActiveBackend() == engine.BackendMLX {
		// The Metal-backed engine serializes inference anyway; extra
		// workers only queue up behind it.
		pipeCfg.Workers = 1
	}

	pipe := pipeline.New(pipeCfg, tr, m.cfg.Translator, m.cfg.Publisher, m.cfg.Pool, id, string(tr.ActiveBackend()))

	s := &Session{
		ID:               id,
		RequestedBackend: req.Backend,
		StartedAt:        time.Now(),
		tr:               tr,
		pipe:             pipe,
		frames:           make(chan []float32, 32),
		cancel:           cancel,
		done:             make(chan struct{}),
		lastActivity:     time.Now(),
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if tr.ActiveBackend() != req.Backend {
		m.emit(ctx, events.TranscriberFallback, id, events.TranscriberFallbackData{
			RequestedBackend: string(req.Backend),
			RequestedModel:   req.Model,
			ActiveBackend:    string(tr.ActiveBackend()),
			ActiveModel:      tr.Model(),
			Error:            "requested backend failed to initialize",
		})
	}

	targetLang := ""
	if m.cfg.Translator != nil {
		targetLang = m.cfg.Translator.TargetLang()
	}
	m.emit(ctx, events.SessionStarted, id, events.SessionStartedData{
		RequestedBackend: string(req.Backend),
		ActiveBackend:    string(tr.ActiveBackend()),
		Model:            tr.Model(),
		SourceLanguage:   req.SourceLanguage,
		TargetLanguage:   targetLang,
	})

	go s.tr.Warmup(sessCtx)
	go m.run(sessCtx, s)
	if m.cfg.Publisher != nil {
		go m.collect(s)
	}

	slog.InfoContext(ctx, "session opened",
		slog.String("session_id", id),
		slog.String("requested_backend", string(req.Backend)),
		slog.String("active_backend", string(tr.ActiveBackend())),
		slog.String("model", tr.Model()))
	return s, nil
}

// run drives the pipeline until the frames channel closes, then finishes
// the session.
func (m *Manager) run(ctx context.Context, s *Session) {
	err := s.pipe.Run(ctx, s.frames)
	if err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "session pipeline stopped",
			slog.String("session_id", s.ID), slog.String("error", err.Error()))
	}

	s.mu.Lock()
	reason := s.closeReason
	if reason == "" {
		reason = "pipeline_stopped"
	}
	s.mu.Unlock()

	m.emit(ctx, events.SessionEnded, s.ID, events.SessionEndedData{
		Reason:     reason,
		DurationMs: time.Since(s.StartedAt).Milliseconds(),
		Chunks:     s.pipe.Chunks(),
	})

	if err := s.tr.Close(); err != nil {
		slog.WarnContext(ctx, "engine close failed",
			slog.String("session_id", s.ID), slog.String("error", err.Error()))
	}

	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()

	close(s.done)
	s.cancel()
}

// collect mirrors the session's caption events into its history.
func (m *Manager) collect(s *Session) {
	subID := "session-" + s.ID
	ch := m.cfg.Publisher.Subscribe(subID, 128)
	defer m.cfg.Publisher.Unsubscribe(subID)

	for {
		select {
		case env, ok := <-ch:
			if !ok {
				return
			}
			if env.SessionID == s.ID {
				s.recordEvent(env)
			}
		case <-s.done:
			return
		}
	}
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns all open sessions.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Close ends a session, flushing any buffered audio first.
func (m *Manager) Close(ctx context.Context, id, reason string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.closeReason = reason
	s.mu.Unlock()

	// Wait out in-flight pushes, then close the frames channel so the
	// pipeline flushes and exits.
	s.pushMu.Lock()
	close(s.frames)
	s.pushMu.Unlock()

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// CloseAll ends every open session, used during shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	for _, s := range m.List() {
		if err := m.Close(ctx, s.ID, "shutdown"); err != nil {
			slog.WarnContext(ctx, "session close failed",
				slog.String("session_id", s.ID), slog.String("error", err.Error()))
		}
	}
}

// StartReaper closes sessions idle past the configured timeout. It returns
// when ctx is done.
func (m *Manager) StartReaper(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range m.List() {
				if time.Since(s.LastActivity()) > m.cfg.IdleTimeout {
					slog.InfoContext(ctx, "reaping idle session", slog.String("session_id", s.ID))
					if err := m.Close(ctx, s.ID, "idle_timeout"); err != nil {
						slog.WarnContext(ctx, "idle session close failed",
							slog.String("session_id", s.ID), slog.String("error", err.Error()))
					}
				}
			}
		}
	}
}

func (m *Manager) emit(ctx context.Context, et events.EventType, sessionID string, data interface{}) {
	if m.cfg.Publisher == nil {
		return
	}
	if err := m.cfg.Publisher.Emit(ctx, et, sessionID, data); err != nil {
		slog.WarnContext(ctx, "session event emit failed",
			slog.String("event_type", string(et)), slog.String("error", err.Error()))
	}
}
