// Package translate turns finalized captions into the target language
// through an OpenAI-compatible chat-completions API.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Config holds translator settings.
type Config struct {
	TargetLang string
	BaseURL    string
	APIKey     string
	Model      string
	// CacheSize bounds the result cache. Live captions repeat partial
	// phrases constantly, so a small cache saves a lot of API calls.
	CacheSize int
	// TimeoutSec bounds one translation request.
	TimeoutSec int
}

// Translator translates caption text, caching results.
type Translator struct {
	config Config
	client *http.Client
	cache  *lru.Cache[string, string]
}

// New creates a translator. Returns an error only on invalid settings.
func New(cfg Config) (*Translator, error) {
	if cfg.TargetLang == "" {
		return nil, fmt.Errorf("translate: target language is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("translate: base URL is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 30
	}

	cache, err := lru.New[string, string](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("translate: create cache: %w", err)
	}

	return &Translator{
		config: cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		cache:  cache,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Translate returns text in the target language. Identical inputs within
// the cache window return the cached result without an API call.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	if cached, ok := t.cache.Get(text); ok {
		return cached, nil
	}

	reqBody := chatRequest{
		Model: t.config.Model,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: fmt.Sprintf(
					"You are a translator. Translate the user's text into %s. Output only the translation, nothing else.",
					t.config.TargetLang),
			},
			{Role: "user", Content: text},
		},
		Temperature: 0.3,
	}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("translate: marshal request: %w", err)
	}

	url := strings.TrimRight(t.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return "", fmt.Errorf("translate: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.config.APIKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("translate: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("translate: decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("translate: empty response")
	}

	result := strings.TrimSpace(cr.Choices[0].Message.Content)
	t.cache.Add(text, result)
	return result, nil
}

// TargetLang returns the configured target language.
func (t *Translator) TargetLang() string { return t.config.TargetLang }
