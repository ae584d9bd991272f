// Package cue builds the length-and-punctuation-bounded subtitle cues
// within a single already-normalized utterance. Grounded on the original
// pipeline's asr_post.py: split_utterance_axis_first (axis-first pass) and
// semantic_split_long_segment (punctuation/char-count re-split of anything
// still too long).
package cue

import (
	"strings"
	"unicode/utf8"

	"github.com/reelsub/dubpipe/internal/subtitle"
)

// Params holds the tunables for cue construction, with spec §4.6 defaults.
type Params struct {
	MaxChars    int
	MaxDurMs    int64
	HardPunc    string
	SoftPunc    string
	SoftGapMs   int64
}

// DefaultParams matches spec §4.6.
func DefaultParams() Params {
	return Params{
		MaxChars:  18,
		MaxDurMs:  2800,
		HardPunc:  "。！？；",
		SoftPunc:  "，",
		SoftGapMs: 400,
	}
}

// segment is an intermediate span of words with pre-attached punctuation
// text, used while building cues.
type segment struct {
	words []subtitle.Word
	text  string
}

func (s segment) startMs() int64 { return s.words[0].StartMs }
func (s segment) endMs() int64   { return s.words[len(s.words)-1].EndMs }

// Build produces the ordered, non-overlapping cues covering exactly
// [startMs, endMs] for one utterance's words (each word's Text already
// carries any attached trailing punctuation; see subtitle.AttachPunctuation).
func Build(words []subtitle.Word, p Params) []subtitle.Cue {
	if len(words) == 0 {
		return nil
	}
	axisSegments := splitAxisFirst(words, p.SoftGapMs)

	var cues []subtitle.Cue
	for _, seg := range axisSegments {
		cues = append(cues, splitIfNeeded(seg, p)...)
	}
	return cues
}

// splitAxisFirst cuts on any perceptible pause (word gap >= SoftGapMs).
// These cuts are irreversible; this stage never merges.
func splitAxisFirst(words []subtitle.Word, softGapMs int64) []segment {
	var segs []segment
	cur := []subtitle.Word{words[0]}
	for i := 1; i < len(words); i++ {
		gap := words[i].StartMs - words[i-1].EndMs
		if gap >= softGapMs {
			segs = append(segs, newSegment(cur))
			cur = nil
		}
		cur = append(cur, words[i])
	}
	segs = append(segs, newSegment(cur))
	return segs
}

func newSegment(words []subtitle.Word) segment {
	var b strings.Builder
	for _, w := range words {
		b.WriteString(w.Text)
	}
	return segment{words: words, text: b.String()}
}

// splitIfNeeded re-splits a segment that exceeds MaxChars or MaxDurMs,
// preferring a hard-punctuation cut, then a soft-punctuation cut, then a
// hard character-count cut as the last resort.
func splitIfNeeded(seg segment, p Params) []subtitle.Cue {
	dur := seg.endMs() - seg.startMs()
	chars := utf8.RuneCountInString(seg.text)
	if dur <= p.MaxDurMs && chars <= p.MaxChars {
		return []subtitle.Cue{toCue(seg)}
	}

	if idx := findHardPunctCut(seg.text, p); idx > 0 {
		left, right := splitSegmentAt(seg, idx)
		return append(splitIfNeeded(left, p), splitIfNeeded(right, p)...)
	}
	if idx := findSoftPunctCut(seg.text, p); idx > 0 {
		left, right := splitSegmentAt(seg, idx)
		return append(splitIfNeeded(left, p), splitIfNeeded(right, p)...)
	}
	// Hard character-count cut: split at the rune offset nearest MaxChars,
	// mapped back to a word boundary.
	idx := hardCharCut(seg, p)
	if idx <= 0 || idx >= len(seg.words) {
		return []subtitle.Cue{toCue(seg)}
	}
	left, right := splitSegmentAtWord(seg, idx)
	return append(splitIfNeeded(left, p), splitIfNeeded(right, p)...)
}

// findHardPunctCut returns the rune index just after the first hard
// punctuation mark found within the first MaxChars+1 runes, or -1.
func findHardPunctCut(text string, p Params) int {
	runes := []rune(text)
	limit := p.MaxChars + 1
	if limit > len(runes) {
		limit = len(runes)
	}
	for i := 0; i < limit; i++ {
		if strings.ContainsRune(p.HardPunc, runes[i]) {
			return i + 1
		}
	}
	return -1
}

// findSoftPunctCut returns the rune index just after the last soft
// punctuation mark found at or before MaxChars runes in, or -1.
func findSoftPunctCut(text string, p Params) int {
	runes := []rune(text)
	limit := p.MaxChars
	if limit > len(runes) {
		limit = len(runes)
	}
	best := -1
	for i := 0; i < limit; i++ {
		if strings.ContainsRune(p.SoftPunc, runes[i]) {
			best = i + 1
		}
	}
	return best
}

// splitSegmentAt splits seg's words so the left part's text has exactly
// runeIdx runes (mapping the text-rune cut back to a word boundary).
func splitSegmentAt(seg segment, runeIdx int) (segment, segment) {
	count := 0
	for i, w := range seg.words {
		wordRunes := utf8.RuneCountInString(w.Text)
		if count+wordRunes >= runeIdx || i == len(seg.words)-1 {
			cut := i + 1
			if cut >= len(seg.words) {
				cut = len(seg.words) - 1
				if cut < 1 {
					cut = 1
				}
			}
			return splitSegmentAtWord(seg, cut)
		}
		count += wordRunes
	}
	return splitSegmentAtWord(seg, len(seg.words)/2)
}

func splitSegmentAtWord(seg segment, idx int) (segment, segment) {
	if idx <= 0 {
		idx = 1
	}
	if idx >= len(seg.words) {
		idx = len(seg.words) - 1
	}
	return newSegment(seg.words[:idx]), newSegment(seg.words[idx:])
}

// hardCharCut finds the word index nearest MaxChars runes in, as the
// last-resort cut point.
func hardCharCut(seg segment, p Params) int {
	count := 0
	for i, w := range seg.words {
		count += utf8.RuneCountInString(w.Text)
		if count >= p.MaxChars {
			if i+1 >= len(seg.words) {
				return len(seg.words) - 1
			}
			return i + 1
		}
	}
	return len(seg.words) / 2
}

func toCue(seg segment) subtitle.Cue {
	return subtitle.Cue{
		StartMs: seg.startMs(),
		EndMs:   seg.endMs(),
		Source:  subtitle.CueSource{Lang: "zh", Text: seg.text},
	}
}
