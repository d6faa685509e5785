// Package whisper implements the primary speech-recognition backend. It
// talks to a faster-whisper inference runtime over HTTP. This backend is
// also the fallback target when mlx or funasr cannot be initialized.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/livetranslate/livetranslate/internal/audio"
	"github.com/livetranslate/livetranslate/internal/speech/backends/restutil"
	"github.com/livetranslate/livetranslate/internal/speech/engine"
	"github.com/livetranslate/livetranslate/internal/speech/registry"
)

const defaultEndpoint = "http://localhost:9090"

func init() {
	registry.ASR.Register(engine.BackendWhisper, func(config map[string]string) (engine.Engine, error) {
		endpoint := config["whisper_endpoint"]
		if endpoint == "" {
			endpoint = defaultEndpoint
		}
		model := config["model"]
		if model == "" {
			model = "base"
		}
		return New(endpoint, model, config["language"], config["device"], config["compute_type"])
	})
}

// Engine runs transcription against a faster-whisper runtime.
type Engine struct {
	endpoint string
	model    string
	language string
}

type loadRequest struct {
	Model       string `json:"model"`
	Device      string `json:"device,omitempty"`
	ComputeType string `json:"compute_type,omitempty"`
}

// New loads the given model on the runtime and returns a ready engine.
// Device and computeType are passed through to the runtime unvalidated.
func New(endpoint, model, language, device, computeType string) (*Engine, error) {
	endpoint = strings.TrimRight(endpoint, "/")

	err := restutil.DoJSON("POST", endpoint+"/v1/models/load", nil, loadRequest{
		Model:       model,
		Device:      device,
		ComputeType: computeType,
	}, nil)
	if err != nil {
		return nil, restutil.ClassifyInitError(err)
	}

	return &Engine{endpoint: endpoint, model: model, language: language}, nil
}

// Transcribe sends one audio buffer to the runtime. The prompt is forwarded
// as the initial_prompt bias hint.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, prompt string) (string, error) {
	wav, err := audio.EncodeWAV(samples, engine.SampleRate)
	if err != nil {
		return "", fmt.Errorf("whisper: encode audio: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write form file: %w", err)
	}
	_ = writer.WriteField("model", e.model)
	if e.language != "" {
		_ = writer.WriteField("language", e.language)
	}
	if prompt != "" {
		_ = writer.WriteField("initial_prompt", prompt)
	}
	_ = writer.WriteField("beam_size", "5")
	_ = writer.WriteField("no_speech_threshold", "0.6")
	// Context is handed over explicitly through initial_prompt.
	_ = writer.WriteField("condition_on_previous_text", "false")
	writer.Close()

	headers := map[string]string{"Content-Type": writer.FormDataContentType()}
	respBody, err := restutil.DoRaw("POST", e.endpoint+"/v1/audio/transcriptions", headers, &body)
	if err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	defer respBody.Close()

	var resp struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return "", fmt.Errorf("whisper: decode response: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (e *Engine) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: "tiny", DisplayName: "Whisper Tiny"},
		{ID: "base", DisplayName: "Whisper Base", IsDefault: true},
		{ID: "small", DisplayName: "Whisper Small"},
		{ID: "medium", DisplayName: "Whisper Medium"},
		{ID: "large-v3", DisplayName: "Whisper Large v3"},
		{ID: "turbo", DisplayName: "Whisper Turbo"},
	}
}

func (e *Engine) Close() error { return nil }
