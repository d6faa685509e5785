package transcriber

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/livetranslate/livetranslate/internal/speech/engine"
	"github.com/livetranslate/livetranslate/internal/speech/filter"
	"github.com/livetranslate/livetranslate/internal/speech/registry"
)

type fakeEngine struct {
	output string
	err    error
	closed bool

	lastPrompt string
}

func (f *fakeEngine) Transcribe(_ context.Context, _ []float32, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.output, f.err
}
func (f *fakeEngine) Models() []engine.ModelInfo { return nil }
func (f *fakeEngine) Close() error               { f.closed = true; return nil }

// failingFactory counts calls and always fails with err.
func failingFactory(err error, calls *int) registry.Factory {
	return func(map[string]string) (engine.Engine, error) {
		*calls++
		return nil, err
	}
}

func TestNewRequestedSucceeds(t *testing.T) {
	reg := registry.New()
	reg.Register(engine.BackendFunASR, func(config map[string]string) (engine.Engine, error) {
		return &fakeEngine{output: "你好"}, nil
	})

	tr, err := New(context.Background(), reg, engine.BackendFunASR, map[string]string{"model": "paraformer-zh"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.ActiveBackend() != engine.BackendFunASR {
		t.Errorf("ActiveBackend = %q, want funasr", tr.ActiveBackend())
	}
	if tr.Model() != "paraformer-zh" {
		t.Errorf("Model = %q, want paraformer-zh", tr.Model())
	}
}

func TestNewFallsBackOnce(t *testing.T) {
	mlxCalls, whisperCalls := 0, 0
	var whisperModel string

	reg := registry.New()
	reg.Register(engine.BackendMLX, failingFactory(fmt.Errorf("probe: %w", engine.ErrEngineUnavailable), &mlxCalls))
	reg.Register(engine.BackendWhisper, func(config map[string]string) (engine.Engine, error) {
		whisperCalls++
		whisperModel = config["model"]
		return &fakeEngine{}, nil
	})

	tr, err := New(context.Background(), reg, engine.BackendMLX, map[string]string{"model": "large-v3-turbo"}, nil)
	if err != nil {
		t.Fatalf("New should fall back, got: %v", err)
	}

	if mlxCalls != 1 || whisperCalls != 1 {
		t.Errorf("calls = (mlx %d, whisper %d), want exactly one each", mlxCalls, whisperCalls)
	}
	if tr.ActiveBackend() != engine.BackendWhisper {
		t.Errorf("ActiveBackend = %q, want whisper after fallback", tr.ActiveBackend())
	}
	// The fallback does not inherit the requested backend's model selector.
	if whisperModel != DefaultFallbackModel {
		t.Errorf("fallback model = %q, want %q", whisperModel, DefaultFallbackModel)
	}
}

func TestNewFallbackModelConfigurable(t *testing.T) {
	var whisperModel string
	calls := 0

	reg := registry.New()
	reg.Register(engine.BackendFunASR, failingFactory(fmt.Errorf("load: %w", engine.ErrModelLoadFailed), &calls))
	reg.Register(engine.BackendWhisper, func(config map[string]string) (engine.Engine, error) {
		whisperModel = config["model"]
		return &fakeEngine{}, nil
	})

	cfg := map[string]string{"model": "SenseVoiceSmall", "fallback_model": "small"}
	if _, err := New(context.Background(), reg, engine.BackendFunASR, cfg, nil); err != nil {
		t.Fatalf("New: %v", err)
	}
	if whisperModel != "small" {
		t.Errorf("fallback model = %q, want configured small", whisperModel)
	}
}

func TestNewPrimaryFailureIsFatal(t *testing.T) {
	calls := 0
	reg := registry.New()
	reg.Register(engine.BackendWhisper, failingFactory(fmt.Errorf("probe: %w", engine.ErrEngineUnavailable), &calls))

	_, err := New(context.Background(), reg, engine.BackendWhisper, map[string]string{"model": "base"}, nil)
	if err == nil {
		t.Fatal("primary failure must be fatal")
	}

	var exhausted *engine.FallbackExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *engine.FallbackExhaustedError", err)
	}
	if calls != 1 {
		t.Errorf("whisper factory called %d times, want 1 (no self-fallback)", calls)
	}
}

func TestNewBothFailIsFatal(t *testing.T) {
	mlxCalls, whisperCalls := 0, 0
	reg := registry.New()
	reg.Register(engine.BackendMLX, failingFactory(fmt.Errorf("probe: %w", engine.ErrEngineUnavailable), &mlxCalls))
	reg.Register(engine.BackendWhisper, failingFactory(fmt.Errorf("load: %w", engine.ErrModelLoadFailed), &whisperCalls))

	_, err := New(context.Background(), reg, engine.BackendMLX, map[string]string{"model": "large-v3-turbo"}, nil)

	var exhausted *engine.FallbackExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *engine.FallbackExhaustedError", err)
	}
	if exhausted.Requested != engine.BackendMLX {
		t.Errorf("Requested = %q, want mlx", exhausted.Requested)
	}
	if exhausted.RequestedErr == nil || exhausted.FallbackErr == nil {
		t.Error("both causes should be recorded")
	}
	// Exactly one fallback attempt, never a second.
	if mlxCalls != 1 || whisperCalls != 1 {
		t.Errorf("calls = (mlx %d, whisper %d), want exactly one each", mlxCalls, whisperCalls)
	}
}

func TestNewUnrecoverableErrorSkipsFallback(t *testing.T) {
	whisperCalls := 0
	reg := registry.New()
	reg.Register(engine.BackendFunASR, func(map[string]string) (engine.Engine, error) {
		return nil, errors.New("funasr: model selector is required")
	})
	reg.Register(engine.BackendWhisper, failingFactory(engine.ErrEngineUnavailable, &whisperCalls))

	_, err := New(context.Background(), reg, engine.BackendFunASR, map[string]string{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if whisperCalls != 0 {
		t.Error("configuration errors must not trigger a fallback")
	}
}

func TestTranscribeAppliesFilters(t *testing.T) {
	eng := &fakeEngine{output: "  no no no no no no  "}
	reg := registry.New()
	reg.Register(engine.BackendWhisper, func(map[string]string) (engine.Engine, error) {
		return eng, nil
	})

	tr, err := New(context.Background(), reg, engine.BackendWhisper, map[string]string{"model": "base"},
		filter.New(filter.DefaultConfig(), nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text, err := tr.Transcribe(context.Background(), make([]float32, engine.SampleRate), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "" {
		t.Errorf("hallucinated output should be suppressed, got %q", text)
	}

	eng.output = "a normal sentence"
	text, err = tr.Transcribe(context.Background(), make([]float32, engine.SampleRate), "bias words")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "a normal sentence" {
		t.Errorf("clean output should pass trimmed, got %q", text)
	}
	if eng.lastPrompt != "bias words" {
		t.Errorf("prompt not forwarded, got %q", eng.lastPrompt)
	}
}

func TestTranscribeEngineError(t *testing.T) {
	reg := registry.New()
	reg.Register(engine.BackendWhisper, func(map[string]string) (engine.Engine, error) {
		return &fakeEngine{err: errors.New("server gone")}, nil
	})

	tr, err := New(context.Background(), reg, engine.BackendWhisper, map[string]string{"model": "base"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := tr.Transcribe(context.Background(), nil, ""); err == nil {
		t.Error("engine errors should propagate")
	}
}

func TestClose(t *testing.T) {
	eng := &fakeEngine{}
	reg := registry.New()
	reg.Register(engine.BackendWhisper, func(map[string]string) (engine.Engine, error) {
		return eng, nil
	})

	tr, err := New(context.Background(), reg, engine.BackendWhisper, map[string]string{"model": "base"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !eng.closed {
		t.Error("Close should release the engine")
	}
}
