package normalize

import (
	"testing"

	"github.com/reelsub/dubpipe/internal/subtitle"
)

func w(start, end int64, text, speaker string) subtitle.Word {
	return subtitle.Word{StartMs: start, EndMs: end, Text: text, Speaker: speaker}
}

func TestInitialSplitOnSilenceGap(t *testing.T) {
	words := []subtitle.Word{
		w(0, 200, "a", "spk_1"),
		w(250, 400, "b", "spk_1"),
		w(1200, 1400, "c", "spk_1"), // gap 800 >= 450 -> new chunk
	}
	// Called directly: the later merge step would fold the 200ms chunk back
	// (same speaker, gap 800 <= max_merge_gap_ms).
	chunks := initialSplit(words, DefaultParams())
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
}

func TestInitialSplitOnSpeakerChange(t *testing.T) {
	words := []subtitle.Word{
		w(0, 200, "a", "spk_1"),
		w(220, 400, "b", "spk_2"),
	}
	chunks, _ := Normalize(words, DefaultParams())
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks for speaker change, got %d", len(chunks))
	}
}

func TestMergeShortChunks(t *testing.T) {
	// First chunk is short (200ms, speaker spk_1), gap to next <= 1000,
	// same speaker, followed by a real silence gap to stop further merges.
	words := []subtitle.Word{
		w(0, 200, "a", "spk_1"),
		w(700, 1600, "b", "spk_1"), // gap 500ms, merges into first
		w(3000, 3200, "c", "spk_1"), // gap 1400ms >= 450 silence split
	}
	chunks, metrics := Normalize(words, DefaultParams())
	if metrics.Merges == 0 {
		t.Fatal("expected at least one merge")
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks after merge, got %d", len(chunks))
	}
}

func TestSplitLongChunkHardSplit(t *testing.T) {
	var words []subtitle.Word
	// One continuous run of words with no gap >= secondary threshold (225ms),
	// spanning beyond max_utterance_duration_ms (8000ms), forcing a hard split.
	cursor := int64(0)
	for i := 0; i < 40; i++ {
		words = append(words, w(cursor, cursor+300, "x", "spk_1"))
		cursor += 300 // each word is 300ms long and the next starts where it ends: every gap is 0
	}
	chunks, metrics := Normalize(words, DefaultParams())
	total := int64(0)
	for _, c := range chunks {
		total += c.duration()
	}
	if metrics.HardSplits == 0 && chunks[0].duration() > DefaultParams().MaxUtteranceDurationMs {
		t.Fatalf("expected hard split or sub-max chunks, got durations metrics=%+v", metrics)
	}
}

func TestSpeechRateZhTPSMergesOverlaps(t *testing.T) {
	words := []subtitle.Word{
		w(0, 1000, "a", "spk_1"),
		w(500, 1500, "b", "spk_1"), // overlaps [0,1000] -> union [0,1500]
	}
	rate := SpeechRateZhTPS(words)
	want := 2.0 / 1.5
	if diff := rate - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("got %f, want %f", rate, want)
	}
}

func TestSpeechRateZhTPSDiscardsBlankAndInvalid(t *testing.T) {
	words := []subtitle.Word{
		w(0, 1000, "a", "spk_1"),
		w(100, 90, "b", "spk_1"),  // invalid (end < start)
		w(200, 300, "  ", "spk_1"), // blank text
	}
	rate := SpeechRateZhTPS(words)
	if rate != 1.0 {
		t.Fatalf("got %f, want 1.0", rate)
	}
}

func TestEndMsKeepGapAsField(t *testing.T) {
	words := []subtitle.Word{w(0, 1000, "a", "spk_1")}
	c := Chunk{Speaker: "spk_1", Words: words, GapAfter: 2000}
	p := DefaultParams()
	if got := c.EndMs(p); got != 1000 {
		t.Fatalf("got %d, want 1000 (gap kept as field, not folded)", got)
	}
	p.KeepGapAsField = false
	if got := c.EndMs(p); got != 1000+p.TrailingSilenceCapMs {
		t.Fatalf("got %d, want %d (gap folded, capped)", got, 1000+p.TrailingSilenceCapMs)
	}
}
