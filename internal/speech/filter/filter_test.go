package filter

import "testing"

func TestIsHallucinationRepeats(t *testing.T) {
	f := New(DefaultConfig(), nil)

	cases := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"normal speech", "the quick brown fox jumps over the lazy dog", false},
		{"four repeats allowed", "okay okay okay okay", false},
		{"five repeats flagged", "okay okay okay okay okay", true},
		{"repeats mid sentence", "so I said thanks thanks thanks thanks thanks to him", true},
		{"single word", "hello", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.IsHallucination(tc.text); got != tc.want {
				t.Errorf("IsHallucination(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestIsHallucinationUniqueRatio(t *testing.T) {
	f := New(DefaultConfig(), nil)

	// 12 words, 3 unique: ratio 0.25 < 0.4, and no run longer than 4.
	looping := "that was nice that was nice that was nice that was nice"
	if !f.IsHallucination(looping) {
		t.Errorf("low unique ratio should be flagged: %q", looping)
	}

	// Short outputs never hit the ratio check.
	short := "that was that was"
	if f.IsHallucination(short) {
		t.Errorf("ratio check should not apply below the word threshold: %q", short)
	}

	// 12 words, all unique.
	varied := "one two three four five six seven eight nine ten eleven twelve"
	if f.IsHallucination(varied) {
		t.Errorf("varied speech should pass: %q", varied)
	}
}

func TestIsHallucinationPhraseList(t *testing.T) {
	phrases := NewPhraseList("")
	phrases.phrases = map[string]struct{}{
		Normalize("Thank you for watching!"): {},
	}
	f := New(DefaultConfig(), phrases)

	if !f.IsHallucination("Thank you for watching") {
		t.Error("known spurious phrase should be flagged")
	}
	if f.IsHallucination("Thank you for the coffee") {
		t.Error("unlisted phrase should pass")
	}
}

func TestIsPromptEcho(t *testing.T) {
	f := New(DefaultConfig(), nil)

	cases := []struct {
		name   string
		text   string
		prompt string
		want   bool
	}{
		{"exact echo", "Hello world", "Hello world", true},
		{"punctuation and case ignored", "hello, World!", "Hello world", true},
		{"tail of prompt", "see you tomorrow", "I will see you tomorrow", true},
		{"fresh content", "a completely new sentence", "Hello world", false},
		{"empty prompt", "Hello world", "", false},
		{"empty text", "", "Hello world", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.IsPromptEcho(tc.text, tc.prompt); got != tc.want {
				t.Errorf("IsPromptEcho(%q, %q) = %v, want %v", tc.text, tc.prompt, got, tc.want)
			}
		})
	}
}

func TestApply(t *testing.T) {
	f := New(DefaultConfig(), nil)

	if text, reason := f.Apply("normal sentence here", "previous context words"); text == "" || reason != ReasonNone {
		t.Errorf("clean text should pass, got (%q, %q)", text, reason)
	}

	if text, reason := f.Apply("no no no no no no", ""); text != "" || reason != ReasonHallucination {
		t.Errorf("hallucination should be suppressed, got (%q, %q)", text, reason)
	}

	if text, reason := f.Apply("previous context words", "previous context words"); text != "" || reason != ReasonPromptEcho {
		t.Errorf("prompt echo should be suppressed, got (%q, %q)", text, reason)
	}

	// Prompt echo only applies when a prompt exists.
	if text, reason := f.Apply("previous context words", ""); text == "" || reason != ReasonNone {
		t.Errorf("no prompt means no echo check, got (%q, %q)", text, reason)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hello, World!", "hello world"},
		{"  spaced   out  ", "spaced out"},
		{"Ça va très bien", "ça va très bien"},
		{"...", ""},
		{"one2three", "one2three"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
