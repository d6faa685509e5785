// Package funasr implements the alternate speech-recognition backend
// served by a FunASR runtime. The model selector names a FunASR model
// (paraformer-zh, paraformer-zh-streaming, SenseVoiceSmall, Fun-ASR-Nano).
package funasr

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

const defaultEndpoint = "http://localhost:9092"

func init() {
	registry.ASR.Register(engine.BackendFunASR, func(config map[string]string) (engine.Engine, error) {
		endpoint := config["funasr_endpoint"]
		if endpoint == "" {
			endpoint = defaultEndpoint
		}
		model := config["model"]
		if model == "" {
			return nil, fmt.Errorf("funasr: model selector is required")
		}
		return New(endpoint, model)
	})
}

// Engine runs transcription against a FunASR runtime.
type Engine struct {
	endpoint string
	model    string
}

// New loads the named model on the runtime and returns a ready engine.
// First use of a model triggers a weights download on the runtime side, so
// a load rejection usually means the fetch failed.
func New(endpoint, model string) (*Engine, error) {
	endpoint = strings.TrimRight(endpoint, "/")

	err := restutil.DoJSON("POST", endpoint+"/v1/models/load", nil, map[string]string{
		"model": model,
	}, nil)
	if err != nil {
		return nil, restutil.ClassifyInitError(err)
	}

	return &Engine{endpoint: endpoint, model: model}, nil
}

// Transcribe sends one audio buffer to the runtime. The prompt is forwarded
// as a hotword bias hint, the closest FunASR equivalent of a prompt.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, prompt string) (string, error) {
	wav, err := audio.EncodeWAV(samples, engine.SampleRate)
	if err != nil {
		return "", fmt.Errorf("funasr: encode audio: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("funasr: create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("funasr: write form file: %w", err)
	}
	_ = writer.WriteField("model", e.model)
	_ = writer.WriteField("batch_size_s", "300")
	if prompt != "" {
		_ = writer.WriteField("hotword", prompt)
	}
	writer.Close()

	headers := map[string]string{"Content-Type": writer.FormDataContentType()}
	respBody, err := restutil.DoRaw("POST", e.endpoint+"/v1/audio/transcriptions", headers, &body)
	if err != nil {
		return "", fmt.Errorf("funasr: %w", err)
	}
	defer respBody.Close()

	// The runtime returns one result per recognized segment.
	var resp struct {
		Results []struct {
			Text string `json:"text"`
		} `json:"results"`
	}
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return "", fmt.Errorf("funasr: decode response: %w", err)
	}

	parts := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Text != "" {
			parts = append(parts, r.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

func (e *Engine) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: "paraformer-zh", DisplayName: "Paraformer (Mandarin)", IsDefault: true},
		{ID: "paraformer-zh-streaming", DisplayName: "Paraformer Streaming (Mandarin)"},
		{ID: "SenseVoiceSmall", DisplayName: "SenseVoice Small"},
		{ID: "Fun-ASR-Nano", DisplayName: "Fun-ASR Nano"},
	}
}

func (e *Engine) Close() error { return nil }
