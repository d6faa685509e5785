// Package session manages live transcription sessions. Each session owns
// one engine handle, one segmentation pipeline, and a bounded history of
// the captions it produced.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/livetranslate/livetranslate/internal/pipeline"
	"github.com/livetranslate/livetranslate/internal/speech/engine"
	"github.com/livetranslate/livetranslate/internal/speech/transcriber"
	"github.com/livetranslate/livetranslate/pkg/events"
)

// ErrSessionClosed is returned when audio is pushed to a finished session.
var ErrSessionClosed = errors.New("session closed")

// Caption is one history entry: a partial or final caption, optionally with
// its translation filled in later.
type Caption struct {
	ChunkID     int       `json:"chunk_id"`
	Text        string    `json:"text"`
	Translation string    `json:"translation,omitempty"`
	Final       bool      `json:"final"`
	Backend     string    `json:"backend"`
	Timestamp   time.Time `json:"timestamp"`
}

const captionHistorySize = 200

// Session is one live transcription stream.
type Session struct {
	ID               string
	RequestedBackend engine.Backend
	StartedAt        time.Time

	tr     *transcriber.Transcriber
	pipe   *pipeline.Pipeline
	frames chan []float32
	cancel context.CancelFunc
	done   chan struct{}

	mu           sync.Mutex
	lastActivity time.Time
	closed       bool
	closeReason  string
	captions     []Caption

	// pushMu lets Close wait out in-flight PushAudio sends before it
	// closes the frames channel.
	pushMu sync.RWMutex
}

// ActiveBackend returns the backend that actually serves this session.
func (s *Session) ActiveBackend() engine.Backend { return s.tr.ActiveBackend() }

// Model returns the model the session's engine loaded.
func (s *Session) Model() string { return s.tr.Model() }

// Models lists the models the session's active engine can load.
func (s *Session) Models() []engine.ModelInfo { return s.tr.Models() }

// Chunks returns the number of finalized utterances so far.
func (s *Session) Chunks() int { return s.pipe.Chunks() }

// LastActivity returns when audio was last pushed.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// PushAudio feeds PCM samples into the session's pipeline. The samples must
// already be 16 kHz mono float32.
func (s *Session) PushAudio(samples []float32) error {
	s.pushMu.RLock()
	defer s.pushMu.RUnlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.lastActivity = time.Now()
	s.mu.Unlock()

	select {
	case s.frames <- samples:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Captions returns the caption history since the given chunk ID, oldest
// first.
func (s *Session) Captions(sinceChunk int) []Caption {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Caption, 0, len(s.captions))
	for _, c := range s.captions {
		if c.ChunkID > sinceChunk {
			out = append(out, c)
		}
	}
	return out
}

// recordEvent folds a caption or translation event into the history ring.
func (s *Session) recordEvent(env events.Envelope) {
	switch env.Type {
	case events.CaptionPartial, events.CaptionFinal:
		var data events.CaptionData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return
		}
		s.mu.Lock()
		s.captions = append(s.captions, Caption{
			ChunkID:   data.ChunkID,
			Text:      data.Text,
			Final:     env.Type == events.CaptionFinal,
			Backend:   data.Backend,
			Timestamp: env.Timestamp,
		})
		if len(s.captions) > captionHistorySize {
			s.captions = s.captions[len(s.captions)-captionHistorySize:]
		}
		s.mu.Unlock()

	case events.TranslationCompleted:
		var data events.TranslationData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return
		}
		s.mu.Lock()
		for i := len(s.captions) - 1; i >= 0; i-- {
			if s.captions[i].ChunkID == data.ChunkID && s.captions[i].Final {
				s.captions[i].Translation = data.Text
				break
			}
		}
		s.mu.Unlock()
	}
}
