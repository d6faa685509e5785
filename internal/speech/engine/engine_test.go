package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseBackend(t *testing.T) {
	cases := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"whisper", BackendWhisper, false},
		{"mlx", BackendMLX, false},
		{"funasr", BackendFunASR, false},
		{"", BackendWhisper, false},
		{"  Whisper ", BackendWhisper, false},
		{"MLX", BackendMLX, false},
		{"deepgram", "", true},
	}
	for _, tc := range cases {
		got, err := ParseBackend(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseBackend(%q) should fail", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseBackend(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseBackend(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRecoverable(t *testing.T) {
	if !Recoverable(fmt.Errorf("init: %w", ErrEngineUnavailable)) {
		t.Error("wrapped ErrEngineUnavailable should be recoverable")
	}
	if !Recoverable(fmt.Errorf("init: %w", ErrModelLoadFailed)) {
		t.Error("wrapped ErrModelLoadFailed should be recoverable")
	}
	if Recoverable(errors.New("invalid model selector")) {
		t.Error("arbitrary errors should not be recoverable")
	}
	if Recoverable(nil) {
		t.Error("nil should not be recoverable")
	}
}

func TestFallbackExhaustedError(t *testing.T) {
	reqErr := fmt.Errorf("load: %w", ErrModelLoadFailed)
	fbErr := fmt.Errorf("probe: %w", ErrEngineUnavailable)

	err := &FallbackExhaustedError{
		Requested:    BackendFunASR,
		RequestedErr: reqErr,
		FallbackErr:  fbErr,
	}

	if !errors.Is(err, ErrEngineUnavailable) {
		t.Error("should unwrap to the fallback error")
	}
	if msg := err.Error(); msg == "" {
		t.Error("error message should not be empty")
	}

	// Primary-requested form: no separate requested error.
	primary := &FallbackExhaustedError{
		Requested:   BackendWhisper,
		FallbackErr: fbErr,
	}
	if !errors.Is(primary, ErrEngineUnavailable) {
		t.Error("primary form should unwrap to the fallback error")
	}
}
