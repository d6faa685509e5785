// Package config defines the service configuration, loaded from the
// environment with frame's config loader.
package config

import (
	"strings"

	"github.com/pitabwire/frame/config"

	"github.com/livetranslate/livetranslate/internal/pipeline"
	"github.com/livetranslate/livetranslate/internal/speech/filter"
	"github.com/livetranslate/livetranslate/internal/translate"
	"github.com/livetranslate/livetranslate/pkg/webhook"
)

// LivetranslateConfig holds all settings for the livetranslate service.
type LivetranslateConfig struct {
	config.ConfigurationDefault

	// Speech backends
	ASRBackend         string `envDefault:"whisper"               env:"ASR_BACKEND"`
	WhisperModel       string `envDefault:"base"                  env:"WHISPER_MODEL"`
	WhisperDevice      string `envDefault:"auto"                  env:"WHISPER_DEVICE"`
	WhisperComputeType string `envDefault:"default"               env:"WHISPER_COMPUTE_TYPE"`
	WhisperEndpoint    string `envDefault:"http://localhost:9090" env:"WHISPER_ENDPOINT"`
	MLXModel           string `envDefault:"large-v3-turbo"        env:"MLX_MODEL"`
	MLXEndpoint        string `envDefault:"http://localhost:9091" env:"MLX_ENDPOINT"`
	FunASRModel        string `envDefault:"paraformer-zh"         env:"FUNASR_MODEL"`
	FunASREndpoint     string `envDefault:"http://localhost:9092" env:"FUNASR_ENDPOINT"`
	FallbackModel      string `envDefault:"base"                  env:"FALLBACK_MODEL"`
	SourceLanguage     string `envDefault:""                      env:"SOURCE_LANGUAGE"`

	// Transcription pipeline
	TranscriptionWorkers int     `envDefault:"2"    env:"TRANSCRIPTION_WORKERS"`
	SilenceThreshold     float64 `envDefault:"0.01" env:"SILENCE_THRESHOLD"`
	SilenceDurationSec   float64 `envDefault:"1.0"  env:"SILENCE_DURATION_SEC"`
	MinPhraseSec         float64 `envDefault:"2.0"  env:"MIN_PHRASE_SEC"`
	SoftLimitSec         float64 `envDefault:"6.0"  env:"SOFT_LIMIT_SEC"`
	SoftSilenceSec       float64 `envDefault:"0.4"  env:"SOFT_SILENCE_SEC"`
	MaxPhraseSec         float64 `envDefault:"15.0" env:"MAX_PHRASE_SEC"`
	UpdateIntervalSec    float64 `envDefault:"1.0"  env:"UPDATE_INTERVAL_SEC"`
	SessionIdleSec       int     `envDefault:"300"  env:"SESSION_IDLE_SEC"`

	// Post-filters
	FilterMaxWordRepeats  int     `envDefault:"4"   env:"FILTER_MAX_WORD_REPEATS"`
	FilterMinUniqueRatio  float64 `envDefault:"0.4" env:"FILTER_MIN_UNIQUE_RATIO"`
	FilterMinWordsRatio   int     `envDefault:"10"  env:"FILTER_MIN_WORDS_FOR_RATIO"`
	FilterPhrasesDir      string  `envDefault:""    env:"FILTER_PHRASES_DIR"`
	FilterPhrasesReload   bool    `envDefault:"false" env:"FILTER_PHRASES_RELOAD"`

	// Translation
	TargetLanguage     string `envDefault:""                          env:"TARGET_LANGUAGE"`
	TranslateBaseURL   string `envDefault:"https://api.openai.com/v1" env:"TRANSLATE_BASE_URL"`
	TranslateAPIKey    string `envDefault:""                          env:"TRANSLATE_API_KEY"`
	TranslateModel     string `envDefault:"gpt-4o-mini"               env:"TRANSLATE_MODEL"`
	TranslateCacheSize int    `envDefault:"256"                       env:"TRANSLATE_CACHE_SIZE"`
	TranslateTimeout   int    `envDefault:"30"                        env:"TRANSLATE_TIMEOUT_SEC"`

	// Webhooks
	WebhookWorkers    int `envDefault:"16"  env:"WEBHOOK_WORKERS"`
	WebhookMaxRetries int `envDefault:"5"   env:"WEBHOOK_MAX_RETRIES"`
	WebhookTimeoutSec int `envDefault:"10"  env:"WEBHOOK_TIMEOUT_SEC"`
	WebhookBackoffSec int `envDefault:"1"   env:"WEBHOOK_BACKOFF_INITIAL_SEC"`
	WebhookBackoffMax int `envDefault:"300" env:"WEBHOOK_BACKOFF_MAX_SEC"`
	CBFailThreshold   int `envDefault:"5"   env:"CB_FAILURE_THRESHOLD"`
	CBResetTimeoutSec int `envDefault:"60"  env:"CB_RESET_TIMEOUT_SEC"`
}

// EngineConfig builds the per-engine config map handed to backend
// factories. The model selector matches the configured default backend;
// a session request can override it.
func (c *LivetranslateConfig) EngineConfig() map[string]string {
	model := c.WhisperModel
	switch strings.ToLower(c.ASRBackend) {
	case "mlx":
		model = c.MLXModel
	case "funasr":
		model = c.FunASRModel
	}
	return map[string]string{
		"model":            model,
		"language":         c.SourceLanguage,
		"device":           c.WhisperDevice,
		"compute_type":     c.WhisperComputeType,
		"whisper_endpoint": c.WhisperEndpoint,
		"mlx_endpoint":     c.MLXEndpoint,
		"funasr_endpoint":  c.FunASREndpoint,
		"fallback_model":   c.FallbackModel,
	}
}

// PipelineConfig builds the segmentation tuning from the environment.
func (c *LivetranslateConfig) PipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.SilenceThreshold = c.SilenceThreshold
	cfg.SilenceDuration = c.SilenceDurationSec
	cfg.MinPhraseDuration = c.MinPhraseSec
	cfg.SoftLimitDuration = c.SoftLimitSec
	cfg.SoftSilenceDuration = c.SoftSilenceSec
	cfg.MaxPhraseDuration = c.MaxPhraseSec
	cfg.UpdateInterval = c.UpdateIntervalSec
	cfg.Workers = c.TranscriptionWorkers
	return cfg
}

// FilterConfig builds the post-filter thresholds.
func (c *LivetranslateConfig) FilterConfig() filter.Config {
	return filter.Config{
		MaxWordRepeats:   c.FilterMaxWordRepeats,
		MinUniqueRatio:   c.FilterMinUniqueRatio,
		MinWordsForRatio: c.FilterMinWordsRatio,
	}
}

// TranslateConfig builds the translator settings. Translation is enabled
// only when a target language is set.
func (c *LivetranslateConfig) TranslateConfig() translate.Config {
	return translate.Config{
		TargetLang: c.TargetLanguage,
		BaseURL:    c.TranslateBaseURL,
		APIKey:     c.TranslateAPIKey,
		Model:      c.TranslateModel,
		CacheSize:  c.TranslateCacheSize,
		TimeoutSec: c.TranslateTimeout,
	}
}

// DelivererConfig builds the webhook delivery settings.
func (c *LivetranslateConfig) DelivererConfig() webhook.DelivererConfig {
	return webhook.DelivererConfig{
		MaxRetries:        c.WebhookMaxRetries,
		TimeoutSec:        c.WebhookTimeoutSec,
		BackoffInitialSec: c.WebhookBackoffSec,
		BackoffMaxSec:     c.WebhookBackoffMax,
		CBFailThreshold:   c.CBFailThreshold,
		CBResetTimeoutSec: c.CBResetTimeoutSec,
	}
}
