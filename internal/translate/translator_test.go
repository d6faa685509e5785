package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newAPI(t *testing.T, reply string, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{BaseURL: "http://x"}); err == nil {
		t.Error("missing target language should fail")
	}
	if _, err := New(Config{TargetLang: "German"}); err == nil {
		t.Error("missing base URL should fail")
	}
	tr, err := New(Config{TargetLang: "German", BaseURL: "http://x"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.TargetLang() != "German" {
		t.Errorf("TargetLang = %q", tr.TargetLang())
	}
}

func TestTranslate(t *testing.T) {
	var calls atomic.Int64
	srv := newAPI(t, " Hallo Welt ", &calls)

	tr, err := New(Config{TargetLang: "German", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := tr.Translate(context.Background(), "Hello world")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "Hallo Welt" {
		t.Errorf("out = %q, want trimmed translation", out)
	}
}

func TestTranslateCaches(t *testing.T) {
	var calls atomic.Int64
	srv := newAPI(t, "Hallo", &calls)

	tr, err := New(Config{TargetLang: "German", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := tr.Translate(context.Background(), "Hello"); err != nil {
			t.Fatalf("Translate: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("API called %d times, want 1 (cached)", calls.Load())
	}

	// Different input misses the cache.
	if _, err := tr.Translate(context.Background(), "Goodbye"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("API called %d times, want 2", calls.Load())
	}
}

func TestTranslateEmptyInput(t *testing.T) {
	var calls atomic.Int64
	srv := newAPI(t, "never", &calls)

	tr, err := New(Config{TargetLang: "German", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := tr.Translate(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "" || calls.Load() != 0 {
		t.Errorf("blank input should short-circuit, got %q after %d calls", out, calls.Load())
	}
}

func TestTranslateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tr, err := New(Config{TargetLang: "German", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := tr.Translate(context.Background(), "Hello"); err == nil {
		t.Error("API errors should propagate")
	}
}
