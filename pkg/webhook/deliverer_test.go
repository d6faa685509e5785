package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/livetranslate/livetranslate/pkg/events"
	"github.com/livetranslate/livetranslate/pkg/urlvalidation"
)

func testEnvelope() events.Envelope {
	data, _ := json.Marshal(events.CaptionData{
		ChunkID: 1,
		Text:    "hello over there",
		Backend: "whisper",
	})
	return events.Envelope{
		ID:        "evt-1",
		Type:      events.CaptionFinal,
		Source:    "test",
		SessionID: "sess-1",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

func testDeliverer(maxRetries int) *Deliverer {
	// Zero initial backoff so retries fire immediately; repo and pool stay
	// nil, so nothing is persisted and retries run on plain timers.
	return NewDeliverer(nil, DelivererConfig{
		MaxRetries:        maxRetries,
		TimeoutSec:        5,
		BackoffInitialSec: 0,
		BackoffMaxSec:     1,
		CBFailThreshold:   10,
		CBResetTimeoutSec: 60,
	}, nil, urlvalidation.AllowPrivateIPs())
}

func TestDelivererSendsSignedRequest(t *testing.T) {
	var received atomic.Bool

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if r.Header.Get(SignatureHeader) == "" {
			t.Error("missing signature header")
		}
		if et := r.Header.Get("X-Livetranslate-Event"); et != string(events.CaptionFinal) {
			t.Errorf("event header = %q", et)
		}
		if id := r.Header.Get("X-Livetranslate-Delivery"); id != "evt-1" {
			t.Errorf("delivery header = %q", id)
		}
		received.Store(true)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ep := Endpoint{URL: ts.URL, Secret: "test-secret"}
	ep.ID = "wh-1"

	testDeliverer(1).Deliver(context.Background(), ep, testEnvelope())

	if !received.Load() {
		t.Error("server did not receive the delivery")
	}
}

func TestDelivererSignatureVerifies(t *testing.T) {
	secret := "webhook-secret-123"
	var sigValid atomic.Bool

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if Verify(secret, body, r.Header.Get(SignatureHeader)) {
			sigValid.Store(true)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ep := Endpoint{URL: ts.URL, Secret: secret}
	ep.ID = "wh-sig"

	testDeliverer(1).Deliver(context.Background(), ep, testEnvelope())

	if !sigValid.Load() {
		t.Error("signature did not verify against the request body")
	}
}

func TestDelivererRetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ep := Endpoint{URL: ts.URL, Secret: "s"}
	ep.ID = "wh-retry"

	testDeliverer(3).Deliver(context.Background(), ep, testEnvelope())

	// The retry is scheduled asynchronously.
	deadline := time.After(2 * time.Second)
	for attempts.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("attempts = %d, want 2", attempts.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
	time.Sleep(100 * time.Millisecond)
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want exactly 2 (no retry after success)", got)
	}
}

func TestDelivererStopsAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	ep := Endpoint{URL: ts.URL, Secret: "s"}
	ep.ID = "wh-dead"

	testDeliverer(2).Deliver(context.Background(), ep, testEnvelope())

	deadline := time.After(2 * time.Second)
	for attempts.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("attempts = %d, want 2", attempts.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
	// The failed event dead-letters instead of retrying forever.
	time.Sleep(100 * time.Millisecond)
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want exactly 2", got)
	}
}

func TestDelivererRejectsReservedAddress(t *testing.T) {
	var received atomic.Bool

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Store(true)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	// No AllowPrivateIPs option: the loopback test server must be refused
	// before any request goes out.
	d := NewDeliverer(nil, DelivererConfig{
		MaxRetries: 1,
		TimeoutSec: 5,
	}, nil)

	ep := Endpoint{URL: ts.URL, Secret: "s"}
	ep.ID = "wh-ssrf"

	d.Deliver(context.Background(), ep, testEnvelope())

	if received.Load() {
		t.Error("delivery to a loopback address should have been blocked")
	}
}
