// Package mlx implements the Metal-accelerated speech-recognition backend,
// served by an mlx-whisper runtime on Apple Silicon hosts. The runtime is
// an optional install; when it is absent the facade falls back to whisper.
package mlx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/livetranslate/livetranslate/internal/audio"
	"github.com/livetranslate/livetranslate/internal/speech/backends/restutil"
	"github.com/livetranslate/livetranslate/internal/speech/engine"
	"github.com/livetranslate/livetranslate/internal/speech/registry"
)

const defaultEndpoint = "http://localhost:9091"

func init() {
	registry.ASR.Register(engine.BackendMLX, func(config map[string]string) (engine.Engine, error) {
		endpoint := config["mlx_endpoint"]
		if endpoint == "" {
			endpoint = defaultEndpoint
		}
		model := config["model"]
		if model == "" {
			model = "base"
		}
		return New(endpoint, model, config["language"])
	})
}

// Engine runs transcription against an mlx-whisper runtime.
type Engine struct {
	endpoint string
	repo     string
	language string
}

// New probes the runtime and returns a ready engine. The runtime loads
// models lazily, so there is no explicit load step; an unreachable runtime
// is the "optional dependency not installed" case.
func New(endpoint, model, language string) (*Engine, error) {
	endpoint = strings.TrimRight(endpoint, "/")

	if err := restutil.DoJSON("GET", endpoint+"/health", nil, nil, nil); err != nil {
		return nil, restutil.ClassifyInitError(err)
	}

	return &Engine{
		endpoint: endpoint,
		repo:     fmt.Sprintf("mlx-community/whisper-%s-mlx", model),
		language: language,
	}, nil
}

// Transcribe sends one audio buffer to the runtime. When the runtime
// rejects the configured language it retries once with auto-detection,
// matching how the runtime behaves on rare language codes.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, prompt string) (string, error) {
	text, err := e.transcribe(samples, prompt, e.language)
	if err != nil {
		var se *restutil.StatusError
		if e.language != "" && errors.As(err, &se) && strings.Contains(strings.ToLower(se.Body), "unsupported language") {
			return e.transcribe(samples, prompt, "")
		}
		return "", err
	}
	return text, nil
}

func (e *Engine) transcribe(samples []float32, prompt, language string) (string, error) {
	wav, err := audio.EncodeWAV(samples, engine.SampleRate)
	if err != nil {
		return "", fmt.Errorf("mlx: encode audio: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("mlx: create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("mlx: write form file: %w", err)
	}
	_ = writer.WriteField("path_or_hf_repo", e.repo)
	if language != "" {
		_ = writer.WriteField("language", language)
	}
	if prompt != "" {
		_ = writer.WriteField("initial_prompt", prompt)
	}
	_ = writer.WriteField("temperature", "0")
	writer.Close()

	headers := map[string]string{"Content-Type": writer.FormDataContentType()}
	respBody, err := restutil.DoRaw("POST", e.endpoint+"/v1/audio/transcriptions", headers, &body)
	if err != nil {
		return "", fmt.Errorf("mlx: %w", err)
	}
	defer respBody.Close()

	var resp struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return "", fmt.Errorf("mlx: decode response: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (e *Engine) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: "tiny", DisplayName: "MLX Whisper Tiny"},
		{ID: "base", DisplayName: "MLX Whisper Base", IsDefault: true},
		{ID: "small", DisplayName: "MLX Whisper Small"},
		{ID: "medium", DisplayName: "MLX Whisper Medium"},
		{ID: "large-v3", DisplayName: "MLX Whisper Large v3"},
	}
}

func (e *Engine) Close() error { return nil }
