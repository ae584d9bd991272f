package cue

import (
	"testing"

	"github.com/reelsub/dubpipe/internal/subtitle"
)

func w(start, end int64, text string) subtitle.Word {
	return subtitle.Word{StartMs: start, EndMs: end, Text: text}
}

func TestBuildShortUtteranceSingleCue(t *testing.T) {
	words := []subtitle.Word{
		w(0, 200, "你"),
		w(200, 400, "好"),
		w(400, 600, "吗"),
	}
	cues := Build(words, DefaultParams())
	if len(cues) != 1 {
		t.Fatalf("expected 1 cue, got %d: %+v", len(cues), cues)
	}
	if cues[0].StartMs != 0 || cues[0].EndMs != 600 {
		t.Fatalf("expected cue spanning [0,600], got %+v", cues[0])
	}
}

func TestBuildAxisCutOnPause(t *testing.T) {
	words := []subtitle.Word{
		w(0, 200, "你"),
		w(200, 400, "好"),
		w(1000, 1200, "吗"), // gap 600ms >= 400 soft gap -> axis cut
	}
	cues := Build(words, DefaultParams())
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues from axis cut, got %d: %+v", len(cues), cues)
	}
	if cues[0].EndMs > cues[1].StartMs {
		t.Fatal("cues must not overlap")
	}
}

func TestBuildHardPunctuationForcesCut(t *testing.T) {
	var words []subtitle.Word
	cursor := int64(0)
	texts := []string{
		"这", "是", "一", "句", "话", "。",
		"这", "是", "第", "二", "句", "话", "，",
		"还", "有", "第", "三", "句", "话", "呢",
	}
	for _, txt := range texts {
		words = append(words, w(cursor, cursor+100, txt))
		cursor += 100
	}
	cues := Build(words, DefaultParams())
	if len(cues) < 2 {
		t.Fatalf("expected hard punctuation to force at least 2 cues, got %d", len(cues))
	}
	// Cues must be contiguous and cover the full span.
	if cues[0].StartMs != 0 || cues[len(cues)-1].EndMs != cursor {
		t.Fatalf("expected cues to cover [0,%d], got first=%+v last=%+v", cursor, cues[0], cues[len(cues)-1])
	}
}

func TestBuildLongSegmentHardCharCut(t *testing.T) {
	var words []subtitle.Word
	cursor := int64(0)
	for i := 0; i < 30; i++ {
		words = append(words, w(cursor, cursor+50, "字"))
		cursor += 50
	}
	cues := Build(words, DefaultParams())
	for _, c := range cues {
		if len([]rune(c.Source.Text)) > DefaultParams().MaxChars+5 {
			t.Fatalf("cue exceeds max chars by a wide margin: %+v", c)
		}
	}
	if len(cues) < 2 {
		t.Fatal("expected the long run of characters to be split into multiple cues")
	}
}
