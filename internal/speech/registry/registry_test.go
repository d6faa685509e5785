package registry

import (
	"context"
	"testing"

	"github.com/livetranslate/livetranslate/internal/speech/engine"
)

type stubEngine struct {
	model string
}

func (s *stubEngine) Transcribe(_ context.Context, _ []float32, _ string) (string, error) {
	return "", nil
}
func (s *stubEngine) Models() []engine.ModelInfo { return nil }
func (s *stubEngine) Close() error               { return nil }

func TestRegistryCreate(t *testing.T) {
	r := New()
	r.Register(engine.BackendWhisper, func(config map[string]string) (engine.Engine, error) {
		return &stubEngine{model: config["model"]}, nil
	})

	eng, err := r.Create(engine.BackendWhisper, map[string]string{"model": "base"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if eng.(*stubEngine).model != "base" {
		t.Errorf("factory did not receive config, model = %q", eng.(*stubEngine).model)
	}
}

func TestRegistryCreateUnregistered(t *testing.T) {
	r := New()
	if _, err := r.Create(engine.BackendMLX, nil); err == nil {
		t.Error("creating an unregistered backend should fail")
	}
}

func TestRegistryHasAndList(t *testing.T) {
	r := New()
	if r.Has(engine.BackendFunASR) {
		t.Error("empty registry should have nothing")
	}

	r.Register(engine.BackendFunASR, func(map[string]string) (engine.Engine, error) {
		return &stubEngine{}, nil
	})
	r.Register(engine.BackendWhisper, func(map[string]string) (engine.Engine, error) {
		return &stubEngine{}, nil
	})

	if !r.Has(engine.BackendFunASR) {
		t.Error("Has should report registered backend")
	}
	if got := len(r.List()); got != 2 {
		t.Errorf("List returned %d backends, want 2", got)
	}
}
