package mlx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/livetranslate/livetranslate/internal/speech/engine"
)

func TestNewProbesHealth(t *testing.T) {
	probed := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			probed = true
			w.Write([]byte(`{"status":"ok"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	eng, err := New(srv.URL, "large-v3-turbo", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !probed {
		t.Error("New should probe /health")
	}
	if eng.repo != "mlx-community/whisper-large-v3-turbo-mlx" {
		t.Errorf("repo = %q", eng.repo)
	}
}

func TestNewRuntimeMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := New(srv.URL, "base", "")
	if !errors.Is(err, engine.ErrEngineUnavailable) {
		t.Errorf("uninstalled runtime should map to ErrEngineUnavailable, got %v", err)
	}
}

func TestTranscribeRetriesUnsupportedLanguage(t *testing.T) {
	var languages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Write([]byte(`{}`))
		case "/v1/audio/transcriptions":
			r.ParseMultipartForm(10 << 20)
			lang := ""
			if v := r.MultipartForm.Value["language"]; len(v) > 0 {
				lang = v[0]
			}
			languages = append(languages, lang)
			if lang != "" {
				http.Error(w, "unsupported language: xx", http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"text": "detected fine"})
		}
	}))
	defer srv.Close()

	eng, err := New(srv.URL, "base", "xx")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text, err := eng.Transcribe(context.Background(), make([]float32, 1600), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "detected fine" {
		t.Errorf("text = %q", text)
	}
	if len(languages) != 2 || languages[0] != "xx" || languages[1] != "" {
		t.Errorf("languages = %v, want one forced then one auto attempt", languages)
	}
}
