// Package transcriber is the facade in front of the speech-recognition
// backends. It owns backend selection at startup, the single fallback to
// the primary engine, and the post-filters that run identically for every
// backend.
package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/livetranslate/livetranslate/internal/speech/engine"
	"github.com/livetranslate/livetranslate/internal/speech/filter"
	"github.com/livetranslate/livetranslate/internal/speech/registry"
)

// DefaultFallbackModel is the primary-engine model used when a fallback
// happens and no fallback model was configured.
const DefaultFallbackModel = "base"

// Transcriber holds the one active engine handle for a session. The handle
// is immutable after New returns; Transcribe may be called concurrently.
type Transcriber struct {
	eng     engine.Engine
	backend engine.Backend
	model   string
	filter  *filter.Filter
}

// New constructs the engine for the requested backend, falling back to the
// primary engine exactly once when the request fails with a recoverable
// initialization error. The returned handle is tagged with the backend that
// actually succeeded. When the fallback fails too (or the primary engine
// was requested and failed), the error is a *engine.FallbackExhaustedError
// and no handle exists.
//
// config carries the model selector under "model" plus opaque pass-through
// hints (device, compute_type, endpoints). filters may be nil to disable
// post-filtering, which only tests should do.
func New(ctx context.Context, reg *registry.Registry, requested engine.Backend, config map[string]string, filters *filter.Filter) (*Transcriber, error) {
	model := config["model"]

	eng, err := reg.Create(requested, config)
	if err == nil {
		slog.InfoContext(ctx, "transcriber: engine ready",
			slog.String("backend", string(requested)),
			slog.String("model", model))
		return &Transcriber{eng: eng, backend: requested, model: model, filter: filters}, nil
	}

	if requested == engine.FallbackTarget || !engine.Recoverable(err) {
		return nil, &engine.FallbackExhaustedError{
			Requested:   requested,
			FallbackErr: err,
		}
	}

	slog.WarnContext(ctx, "transcriber: backend failed to initialize, falling back",
		slog.String("backend", string(requested)),
		slog.String("model", model),
		slog.String("fallback", string(engine.FallbackTarget)),
		slog.String("error", err.Error()))

	fallbackCfg := make(map[string]string, len(config))
	for k, v := range config {
		fallbackCfg[k] = v
	}
	fallbackModel := config["fallback_model"]
	if fallbackModel == "" {
		fallbackModel = DefaultFallbackModel
	}
	fallbackCfg["model"] = fallbackModel

	fbEng, fbErr := reg.Create(engine.FallbackTarget, fallbackCfg)
	if fbErr != nil {
		return nil, &engine.FallbackExhaustedError{
			Requested:    requested,
			RequestedErr: err,
			FallbackErr:  fbErr,
		}
	}

	slog.InfoContext(ctx, "transcriber: engine ready after fallback",
		slog.String("backend", string(engine.FallbackTarget)),
		slog.String("model", fallbackModel))
	return &Transcriber{eng: fbEng, backend: engine.FallbackTarget, model: fallbackModel, filter: filters}, nil
}

// ActiveBackend returns the backend that actually initialized, which may
// differ from the requested one when a fallback happened.
func (t *Transcriber) ActiveBackend() engine.Backend { return t.backend }

// Model returns the model selector the active engine loaded.
func (t *Transcriber) Model() string { return t.model }

// Models lists the models the active engine advertises.
func (t *Transcriber) Models() []engine.ModelInfo { return t.eng.Models() }

// Transcribe runs recognition over one audio buffer and applies the
// hallucination and prompt-echo filters. A suppressed result is returned
// as the empty string with no error.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, prompt string) (string, error) {
	text, err := t.eng.Transcribe(ctx, samples, prompt)
	if err != nil {
		return "", fmt.Errorf("transcribe (%s): %w", t.backend, err)
	}
	text = strings.TrimSpace(text)

	if t.filter == nil {
		return text, nil
	}

	filtered, reason := t.filter.Apply(text, prompt)
	if reason != filter.ReasonNone {
		slog.DebugContext(ctx, "transcriber: output suppressed",
			slog.String("backend", string(t.backend)),
			slog.String("reason", string(reason)),
			slog.String("text", truncate(text, 50)))
	}
	return filtered, nil
}

// Warmup runs one second of silence through the engine so the first real
// inference does not pay model spin-up latency. Failures are non-fatal.
func (t *Transcriber) Warmup(ctx context.Context) {
	silence := make([]float32, engine.SampleRate)
	if _, err := t.Transcribe(ctx, silence, ""); err != nil {
		slog.WarnContext(ctx, "transcriber: warmup failed",
			slog.String("backend", string(t.backend)),
			slog.String("error", err.Error()))
		return
	}
	slog.InfoContext(ctx, "transcriber: warmup complete", slog.String("backend", string(t.backend)))
}

// Close releases the active engine.
func (t *Transcriber) Close() error { return t.eng.Close() }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
