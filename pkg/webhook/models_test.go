package webhook

import (
	"testing"

	"github.com/livetranslate/livetranslate/pkg/events"
)

func TestEndpointMatches(t *testing.T) {
	ep := Endpoint{
		EventTypes: EventTypesJSON{events.CaptionFinal, events.SessionEnded},
	}

	if !ep.Matches(events.Envelope{Type: events.CaptionFinal, SessionID: "s1"}) {
		t.Error("endpoint without session filter should match any session")
	}
	if ep.Matches(events.Envelope{Type: events.CaptionPartial, SessionID: "s1"}) {
		t.Error("unsubscribed event type should not match")
	}

	ep.SessionFilter = "s1"
	if !ep.Matches(events.Envelope{Type: events.CaptionFinal, SessionID: "s1"}) {
		t.Error("session filter should match its own session")
	}
	if ep.Matches(events.Envelope{Type: events.CaptionFinal, SessionID: "s2"}) {
		t.Error("session filter should reject other sessions")
	}
}

func TestEventTypesJSONScan(t *testing.T) {
	var et EventTypesJSON
	if err := et.Scan([]byte(`["caption.final","session.ended"]`)); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(et) != 2 {
		t.Fatalf("len = %d, want 2", len(et))
	}
	if !et.Contains(events.CaptionFinal) {
		t.Error("should contain caption.final")
	}
	if et.Contains(events.CaptionPartial) {
		t.Error("should not contain caption.partial")
	}

	var empty EventTypesJSON
	if err := empty.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("scan of unknown type should yield empty list, got %d", len(empty))
	}
}
