// Package pipeline chops a continuous PCM stream into utterances and runs
// them through transcription and translation. Finalization is silence
// driven with soft and hard duration limits so captions stay low-latency
// even when the speaker never pauses.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"

	"github.com/livetranslate/livetranslate/internal/audio"
	"github.com/livetranslate/livetranslate/pkg/events"
)

// Recognizer is the slice of the transcriber facade the pipeline needs.
type Recognizer interface {
	Transcribe(ctx context.Context, samples []float32, prompt string) (string, error)
}

// Translator translates finalized captions. A nil Translator disables
// translation.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
	TargetLang() string
}

// Config tunes utterance segmentation.
type Config struct {
	SampleRate int

	// SilenceThreshold is the RMS level below which audio counts as
	// silence, on float32 samples in [-1, 1].
	SilenceThreshold float64
	// SilenceDuration is the trailing silence that finalizes an utterance
	// once MinPhraseDuration of audio has accumulated (standard cut).
	SilenceDuration float64
	// MinPhraseDuration gates the standard cut.
	MinPhraseDuration float64
	// SoftLimitDuration is the buffer length after which a much shorter
	// silence (SoftSilenceDuration) already finalizes, catching brief
	// pauses before latency piles up.
	SoftLimitDuration   float64
	SoftSilenceDuration float64
	// MaxPhraseDuration force-cuts regardless of silence (hard cut).
	MaxPhraseDuration float64
	// UpdateInterval is how often a partial caption is emitted while an
	// utterance is still accumulating.
	UpdateInterval float64
	// MinBufferDuration is the least audio worth transcribing at all.
	MinBufferDuration float64
	// MinContextWords is the word count a final caption needs before it
	// becomes the bias prompt for the next utterance.
	MinContextWords int
	// Workers bounds concurrent transcription calls for this pipeline.
	Workers int
}

// DefaultConfig returns the segmentation tuning from production use.
func DefaultConfig() Config {
	return Config{
		SampleRate:          16000,
		SilenceThreshold:    0.01,
		SilenceDuration:     1.0,
		MinPhraseDuration:   2.0,
		SoftLimitDuration:   6.0,
		SoftSilenceDuration: 0.4,
		MaxPhraseDuration:   15.0,
		UpdateInterval:      1.0,
		MinBufferDuration:   0.5,
		MinContextWords:     3,
		Workers:             2,
	}
}

// Pipeline consumes PCM frames and emits caption and translation events.
type Pipeline struct {
	config    Config
	rec       Recognizer
	trans     Translator
	pub       *events.Publisher
	pool      workerpool.WorkerPool
	sessionID string
	backend   string

	slots chan struct{}

	mu        sync.Mutex
	lastFinal string
	chunks    int

	wg sync.WaitGroup
}

// New creates a pipeline. pool may be nil; tasks then run on plain
// goroutines.
func New(cfg Config, rec Recognizer, trans Translator, pub *events.Publisher, pool workerpool.WorkerPool, sessionID, backend string) *Pipeline {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Pipeline{
		config:    cfg,
		rec:       rec,
		trans:     trans,
		pub:       pub,
		pool:      pool,
		sessionID: sessionID,
		backend:   backend,
		slots:     make(chan struct{}, cfg.Workers),
	}
}

// Chunks returns how many utterances were finalized so far.
func (p *Pipeline) Chunks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chunks
}

// Run consumes frames until the channel closes or the context is done,
// then flushes the remaining buffer and waits for in-flight work.
func (p *Pipeline) Run(ctx context.Context, frames <-chan []float32) error {
	var buffer []float32
	chunkID := 1
	lastUpdate := time.Now()

	defer p.wg.Wait()

	for {
		var (
			frame []float32
			ok    bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok = <-frames:
		}
		if !ok {
			// Stream ended: flush whatever accumulated.
			p.maybeFinalize(ctx, buffer, chunkID)
			return nil
		}

		buffer = append(buffer, frame...)
		now := time.Now()
		dur := p.seconds(len(buffer))

		standardCut := dur > p.config.MinPhraseDuration && p.tailSilent(buffer, p.config.SilenceDuration)
		softCut := dur > p.config.SoftLimitDuration && p.tailSilent(buffer, p.config.SoftSilenceDuration)
		hardCut := dur > p.config.MaxPhraseDuration

		switch {
		case (standardCut || softCut || hardCut) && dur > p.config.MinBufferDuration:
			p.maybeFinalize(ctx, buffer, chunkID)
			buffer = nil
			chunkID++
			lastUpdate = now

		case now.Sub(lastUpdate).Seconds() > p.config.UpdateInterval && dur > p.config.MinBufferDuration:
			partial := make([]float32, len(buffer))
			copy(partial, buffer)
			// Partial hallucinations on silence are cheap to avoid here.
			if audio.RMS(partial) > p.config.SilenceThreshold {
				p.submit(ctx, func() { p.transcribePartial(ctx, partial, chunkID) })
			}
			lastUpdate = now
		}
	}
}

// maybeFinalize submits the buffer as a final utterance unless it is too
// short or entirely silent.
func (p *Pipeline) maybeFinalize(ctx context.Context, buffer []float32, chunkID int) {
	if p.seconds(len(buffer)) <= p.config.MinBufferDuration {
		return
	}
	if audio.RMS(buffer) < p.config.SilenceThreshold {
		slog.DebugContext(ctx, "pipeline: skipped silent chunk",
			slog.String("session_id", p.sessionID), slog.Int("chunk_id", chunkID))
		return
	}

	final := make([]float32, len(buffer))
	copy(final, buffer)
	prompt := p.prompt()
	p.submit(ctx, func() { p.transcribeFinal(ctx, final, chunkID, prompt) })
}

func (p *Pipeline) transcribePartial(ctx context.Context, samples []float32, chunkID int) {
	p.slots <- struct{}{}
	defer func() { <-p.slots }()

	start := time.Now()
	text, err := p.rec.Transcribe(ctx, samples, p.prompt())
	if err != nil {
		slog.WarnContext(ctx, "pipeline: partial transcription failed",
			slog.String("session_id", p.sessionID),
			slog.Int("chunk_id", chunkID),
			slog.String("error", err.Error()))
		return
	}
	if text == "" {
		return
	}

	p.emit(ctx, events.CaptionPartial, events.CaptionData{
		ChunkID:    chunkID,
		Text:       text,
		Backend:    p.backend,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

func (p *Pipeline) transcribeFinal(ctx context.Context, samples []float32, chunkID int, prompt string) {
	p.slots <- struct{}{}
	defer func() { <-p.slots }()

	start := time.Now()
	text, err := p.rec.Transcribe(ctx, samples, prompt)
	if err != nil {
		slog.ErrorContext(ctx, "pipeline: transcription failed",
			slog.String("session_id", p.sessionID),
			slog.Int("chunk_id", chunkID),
			slog.String("error", err.Error()))
		return
	}
	if text == "" {
		return
	}

	p.mu.Lock()
	p.chunks++
	if len(strings.Fields(text)) >= p.config.MinContextWords {
		p.lastFinal = text
	}
	p.mu.Unlock()

	p.emit(ctx, events.CaptionFinal, events.CaptionData{
		ChunkID:    chunkID,
		Text:       text,
		Backend:    p.backend,
		DurationMs: time.Since(start).Milliseconds(),
	})

	if p.trans == nil {
		return
	}
	// Translation must not block the next transcription.
	p.submit(ctx, func() { p.translateChunk(ctx, text, chunkID) })
}

func (p *Pipeline) translateChunk(ctx context.Context, text string, chunkID int) {
	translated, err := p.trans.Translate(ctx, text)
	if err != nil {
		slog.WarnContext(ctx, "pipeline: translation failed",
			slog.String("session_id", p.sessionID),
			slog.Int("chunk_id", chunkID),
			slog.String("error", err.Error()))
		p.emit(ctx, events.TranslationFailed, events.TranslationFailedData{
			ChunkID:    chunkID,
			SourceText: text,
			Error:      err.Error(),
		})
		return
	}

	p.emit(ctx, events.TranslationCompleted, events.TranslationData{
		ChunkID:    chunkID,
		SourceText: text,
		Text:       translated,
		TargetLang: p.trans.TargetLang(),
	})
}

func (p *Pipeline) emit(ctx context.Context, et events.EventType, data interface{}) {
	if p.pub == nil {
		return
	}
	if err := p.pub.Emit(ctx, et, p.sessionID, data); err != nil {
		slog.WarnContext(ctx, "pipeline: emit failed",
			slog.String("session_id", p.sessionID),
			slog.String("event_type", string(et)),
			slog.String("error", err.Error()))
	}
}

func (p *Pipeline) submit(ctx context.Context, task func()) {
	p.wg.Add(1)
	wrapped := func() {
		defer p.wg.Done()
		task()
	}
	if p.pool != nil {
		if err := p.pool.Submit(ctx, wrapped); err == nil {
			return
		}
		// Pool saturated; fall through so the task still runs.
	}
	go wrapped()
}

// prompt returns the bias context for the next transcription.
func (p *Pipeline) prompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFinal
}

func (p *Pipeline) seconds(samples int) float64 {
	return float64(samples) / float64(p.config.SampleRate)
}

// tailSilent reports whether the trailing window of the buffer is below
// the silence threshold. Returns false when the buffer is shorter than the
// window.
func (p *Pipeline) tailSilent(buffer []float32, windowSec float64) bool {
	window := int(float64(p.config.SampleRate) * windowSec)
	if window <= 0 || len(buffer) < window {
		return false
	}
	return audio.RMS(buffer[len(buffer)-window:]) < p.config.SilenceThreshold
}
