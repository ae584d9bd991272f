package align

import (
	"strings"
	"testing"

	"github.com/reelsub/dubpipe/internal/subtitle"
)

func TestIsPunctuationOrBlank(t *testing.T) {
	cases := map[string]bool{
		"":        true,
		"   ":     true,
		"...":     true,
		"!? ,":    true,
		"Hi":      false,
		"a.":      false,
	}
	for in, want := range cases {
		if got := isPunctuationOrBlank(in); got != want {
			t.Fatalf("isPunctuationOrBlank(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSplitEnglishByPunctuation(t *testing.T) {
	chunks := splitEnglish("Hello there. How are you doing today?")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
}

func TestSplitEnglishByWordCountWhenNoPunctuation(t *testing.T) {
	words := make([]string, 25)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")
	chunks := splitEnglish(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for long punctuation-free text, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.wordCount > MaxChunkWords+MinChunkWords {
			t.Fatalf("chunk too large: %+v", c)
		}
	}
}

func TestResegmentUtteranceLastCueEndsAtEndMs(t *testing.T) {
	cues := ResegmentUtterance("Hello there. How are you doing today? I am fine, thanks.", 1000, 6000, DefaultTargetWPS)
	if len(cues) == 0 {
		t.Fatal("expected at least one cue")
	}
	last := cues[len(cues)-1]
	if last.EndMs != 6000 {
		t.Fatalf("expected last cue to end exactly at end_ms, got %d", last.EndMs)
	}
	if cues[0].StartMs != 1000 {
		t.Fatalf("expected first cue to start at start_ms, got %d", cues[0].StartMs)
	}
	for i := 1; i < len(cues); i++ {
		if cues[i].StartMs < cues[i-1].EndMs {
			t.Fatalf("cue %d starts before previous ends", i)
		}
	}
}

func TestClampExtendRaisesBelowMinWindow(t *testing.T) {
	got := clampExtend(500, 500, 900, 800)
	if got != 500 {
		t.Fatalf("got %d, want 500 (needed=400 < base=500)", got)
	}
	got = clampExtend(100, 100, 900, 800)
	if got != 800 {
		t.Fatalf("got %d, want capped at 800", got)
	}
}

func TestClampExtendUnchangedAboveMinWindow(t *testing.T) {
	got := clampExtend(2000, 500, 900, 800)
	if got != 500 {
		t.Fatalf("got %d, want unchanged 500", got)
	}
}

func TestRunSkipsMissingTranslationAndPunctuationOnly(t *testing.T) {
	ssot := &subtitle.Model{
		Utterances: []subtitle.SubtitleUtterance{
			{UttID: "utt_0001", StartMs: 0, EndMs: 2000},
			{UttID: "utt_0002", StartMs: 2000, EndMs: 4000},
			{UttID: "utt_0003", StartMs: 4000, EndMs: 6000},
		},
	}
	translations := map[string]string{
		"utt_0002": "...",
		"utt_0003": "Hello there, how are you doing today?",
	}
	res, err := Run(ssot, translations, 6000, DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Aligned.Utterances) != 1 {
		t.Fatalf("expected exactly one aligned utterance, got %d", len(res.Aligned.Utterances))
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d: %+v", len(res.Warnings), res.Warnings)
	}
	if len(res.Manifest.Utterances) != 1 {
		t.Fatalf("expected exactly one dub utterance, got %d", len(res.Manifest.Utterances))
	}
	du := res.Manifest.Utterances[0]
	if du.BudgetMs != 2000 {
		t.Fatalf("got budget_ms=%d, want 2000", du.BudgetMs)
	}
}

func TestRunFailsOnLeakedPlaceholder(t *testing.T) {
	ssot := &subtitle.Model{
		Utterances: []subtitle.SubtitleUtterance{
			{UttID: "utt_0001", StartMs: 0, EndMs: 2000},
		},
	}
	translations := map[string]string{
		"utt_0001": "<<NAME_0>> is here today",
	}
	_, err := Run(ssot, translations, 2000, DefaultPolicy())
	if err == nil {
		t.Fatal("expected error for leaked name placeholder")
	}
}

func TestRunRaisesAllowExtendForShortUtterance(t *testing.T) {
	ssot := &subtitle.Model{
		Utterances: []subtitle.SubtitleUtterance{
			{UttID: "utt_0001", StartMs: 0, EndMs: 500},
		},
	}
	translations := map[string]string{
		"utt_0001": "Get out!",
	}
	res, err := Run(ssot, translations, 500, DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Manifest.Utterances) != 1 {
		t.Fatalf("expected 1 dub utterance, got %d", len(res.Manifest.Utterances))
	}
	got := res.Manifest.Utterances[0].TTSPolicy.AllowExtendMs
	if got != 500 {
		t.Fatalf("got allow_extend_ms=%d, want 500 (clamp(400,500,800))", got)
	}
}
