package engine

import (
	"context"
	"fmt"
	"strings"
)

// Backend identifies one of the interchangeable speech-recognition engines.
type Backend string

const (
	// BackendWhisper is the primary engine and the fallback target.
	BackendWhisper Backend = "whisper"
	// BackendMLX is the Metal-accelerated engine.
	BackendMLX Backend = "mlx"
	// BackendFunASR is the alternate engine.
	BackendFunASR Backend = "funasr"
)

// FallbackTarget is the backend substituted when the requested one cannot
// be initialized.
const FallbackTarget = BackendWhisper

// ParseBackend converts a configuration string into a Backend.
// The empty string maps to the primary engine so configurations written
// before backend selection existed keep their behavior.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case BackendWhisper, "":
		return BackendWhisper, nil
	case BackendMLX:
		return BackendMLX, nil
	case BackendFunASR:
		return BackendFunASR, nil
	default:
		return "", fmt.Errorf("unknown ASR backend %q (supported: whisper, mlx, funasr)", s)
	}
}

// ModelInfo describes an available model for a backend.
type ModelInfo struct {
	ID          string
	DisplayName string
	IsDefault   bool
}

// Engine runs speech recognition over fixed-format audio buffers.
//
// Transcribe takes mono 16kHz float32 PCM samples and an optional prompt.
// The prompt is previous caption text used as a bias hint; engines that do
// not support biasing ignore it. Implementations must be safe for
// concurrent Transcribe calls.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, prompt string) (string, error)
	Models() []ModelInfo
	Close() error
}

// SampleRate is the fixed input sample rate every engine consumes.
const SampleRate = 16000
