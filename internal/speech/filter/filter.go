// Package filter suppresses recognizer output that is not genuine speech
// content. The two filters here run after every transcription, identically
// for every backend.
package filter

import (
	"strings"
	"unicode"
)

// Config tunes the hallucination heuristics. Tuning is global; the filters
// are not backend-aware.
type Config struct {
	// MaxWordRepeats is the longest allowed run of one word repeated
	// consecutively. Longer runs mark the output as a hallucination.
	MaxWordRepeats int
	// MinUniqueRatio is the lowest allowed unique-word ratio for outputs
	// longer than MinWordsForRatio words.
	MinUniqueRatio float64
	// MinWordsForRatio is the word count above which the unique-word ratio
	// check applies.
	MinWordsForRatio int
}

// DefaultConfig returns the tuning used in production.
func DefaultConfig() Config {
	return Config{
		MaxWordRepeats:   4,
		MinUniqueRatio:   0.4,
		MinWordsForRatio: 10,
	}
}

// Filter applies hallucination and prompt-echo suppression.
type Filter struct {
	config  Config
	phrases *PhraseList
}

// New creates a filter. phrases may be nil when no known-phrase list is
// configured.
func New(cfg Config, phrases *PhraseList) *Filter {
	if cfg.MaxWordRepeats <= 0 {
		cfg.MaxWordRepeats = 4
	}
	if cfg.MinUniqueRatio <= 0 {
		cfg.MinUniqueRatio = 0.4
	}
	if cfg.MinWordsForRatio <= 0 {
		cfg.MinWordsForRatio = 10
	}
	return &Filter{config: cfg, phrases: phrases}
}

// Apply runs both filters over the recognizer output and returns the text
// to surface. Suppressed output comes back as the empty string together
// with the reason.
func (f *Filter) Apply(text, prompt string) (string, Reason) {
	if f.IsHallucination(text) {
		return "", ReasonHallucination
	}
	if prompt != "" && f.IsPromptEcho(text, prompt) {
		return "", ReasonPromptEcho
	}
	return text, ReasonNone
}

// Reason names why output was suppressed.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonHallucination Reason = "hallucination"
	ReasonPromptEcho    Reason = "prompt_echo"
)

// IsHallucination reports whether text looks like a recognizer artifact
// rather than speech: a repetitive word loop, a low-information output, or
// a phrase on the known spurious-phrase list.
func (f *Filter) IsHallucination(text string) bool {
	words := strings.Fields(text)
	if len(words) == 0 {
		return false
	}

	// Immediate consecutive repetitions, e.g. "once once once once once".
	maxRepeats := 0
	currentRepeats := 1
	lastWord := ""
	for _, word := range words {
		if word == lastWord {
			currentRepeats++
		} else {
			if currentRepeats > maxRepeats {
				maxRepeats = currentRepeats
			}
			currentRepeats = 1
			lastWord = word
		}
	}
	if currentRepeats > maxRepeats {
		maxRepeats = currentRepeats
	}
	if maxRepeats > f.config.MaxWordRepeats {
		return true
	}

	// Low information density, e.g. "that was that was that was that was".
	if len(words) > f.config.MinWordsForRatio {
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[w] = struct{}{}
		}
		if float64(len(unique))/float64(len(words)) < f.config.MinUniqueRatio {
			return true
		}
	}

	if f.phrases != nil && f.phrases.Contains(text) {
		return true
	}

	return false
}

// IsPromptEcho reports whether text merely repeats the supplied prompt, a
// common artifact when the audio is silence or music. Comparison ignores
// case and punctuation; a text that equals the tail of the prompt counts
// as an echo too.
func (f *Filter) IsPromptEcho(text, prompt string) bool {
	normText := Normalize(text)
	normPrompt := Normalize(prompt)
	if normText == "" || normPrompt == "" {
		return false
	}
	if normText == normPrompt {
		return true
	}
	return strings.HasSuffix(normPrompt, normText)
}

// Normalize lowercases and strips everything but letters, digits, and
// single spaces.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
