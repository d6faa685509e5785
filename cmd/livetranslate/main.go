package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pitabwire/frame"
	frameconfig "github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/workerpool"

	ltconfig "github.com/livetranslate/livetranslate/config"
	"github.com/livetranslate/livetranslate/internal/api"
	"github.com/livetranslate/livetranslate/internal/session"
	"github.com/livetranslate/livetranslate/internal/speech/engine"
	"github.com/livetranslate/livetranslate/internal/speech/filter"
	"github.com/livetranslate/livetranslate/internal/speech/registry"
	"github.com/livetranslate/livetranslate/internal/translate"
	"github.com/livetranslate/livetranslate/pkg/events"
	"github.com/livetranslate/livetranslate/pkg/webhook"
	webhookapi "github.com/livetranslate/livetranslate/pkg/webhook/api"

	// Register speech backends via init().
	_ "github.com/livetranslate/livetranslate/internal/speech/backends/funasr"
	_ "github.com/livetranslate/livetranslate/internal/speech/backends/mlx"
	_ "github.com/livetranslate/livetranslate/internal/speech/backends/whisper"
)

func main() {
	ctx := context.Background()

	cfg, err := frameconfig.LoadWithOIDC[ltconfig.LivetranslateConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if _, err := engine.ParseBackend(cfg.ASRBackend); err != nil {
		log.Fatalf("invalid ASR_BACKEND: %v", err)
	}

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()

	ctx, srv := frame.NewService(
		frame.WithConfig(&cfg),
		frame.WithName("livetranslate"),
		frame.WithDatastore(),
		frame.WithRegisterPublisher(eventRef, eventURL),
		frame.WithWorkerPoolOptions(
			workerpool.WithPoolCount(cfg.WorkerPoolCount),
			workerpool.WithSinglePoolCapacity(cfg.WorkerPoolCapacity),
		),
	)
	defer srv.Stop(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	pub := events.NewPublisher(srv.QueueManager(), "livetranslate", eventRef)

	// --- Post-filters ---
	phrases := filter.NewPhraseList(cfg.FilterPhrasesDir)
	if cfg.FilterPhrasesDir != "" {
		if err := phrases.LoadAll(); err != nil {
			log.Printf("warning: loading filter phrases: %v", err)
		}
		if cfg.FilterPhrasesReload {
			go func() {
				if err := phrases.WatchAndReload(ctx.Done()); err != nil {
					slog.WarnContext(ctx, "phrase reload watcher stopped",
						slog.String("error", err.Error()))
				}
			}()
		}
	}
	filters := filter.New(cfg.FilterConfig(), phrases)

	// --- Translation (enabled by TARGET_LANGUAGE) ---
	var translator *translate.Translator
	if cfg.TargetLanguage != "" {
		translator, err = translate.New(cfg.TranslateConfig())
		if err != nil {
			log.Fatalf("creating translator: %v", err)
		}
	}

	// --- Sessions ---
	mgrCfg := session.ManagerConfig{
		Registry:     registry.ASR,
		Filters:      filters,
		Publisher:    pub,
		Pool:         pool,
		EngineConfig: cfg.EngineConfig(),
		Pipeline:     cfg.PipelineConfig(),
		IdleTimeout:  time.Duration(cfg.SessionIdleSec) * time.Second,
	}
	if translator != nil {
		mgrCfg.Translator = translator
	}
	sessions := session.NewManager(mgrCfg)
	go sessions.StartReaper(ctx)
	defer sessions.CloseAll(ctx)

	// --- Webhooks ---
	whRepo := webhook.NewRepository(
		srv.DatastoreManager().GetPool(ctx, "__default__pool_name__"),
	)
	whDeliverer := webhook.NewDeliverer(whRepo, cfg.DelivererConfig(), pool)
	whSubscriber := &webhook.Subscriber{
		Repo:      whRepo,
		Deliverer: whDeliverer,
		Pool:      pool,
	}

	// --- HTTP ---
	mux := http.NewServeMux()
	api.NewHandler(sessions, registry.ASR, pub).RegisterRoutes(mux)
	webhookapi.NewHandler(whRepo, pub).RegisterRoutes(mux)

	slog.InfoContext(ctx, "starting livetranslate",
		slog.String("asr_backend", strings.ToLower(cfg.ASRBackend)),
		slog.String("target_language", cfg.TargetLanguage),
		slog.Int("transcription_workers", cfg.TranscriptionWorkers))

	srv.Init(ctx,
		frame.WithRegisterSubscriber(eventRef+".webhooks", eventURL, whSubscriber),
		frame.WithHTTPHandler(mux),
	)

	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}
