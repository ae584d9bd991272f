// Package normalize rebuilds viewing-oriented utterances from a flat,
// time-sorted word stream, discarding the ASR recognizer's own utterance
// boundaries entirely. Grounded on the word-gap/speaker-change resegmentation
// performed by the original pipeline's utterance_normalization.py.
package normalize

import (
	"sort"

	"github.com/reelsub/dubpipe/internal/subtitle"
)

// Params holds the tunable thresholds for normalization, with the same
// defaults as the original implementation.
type Params struct {
	SilenceSplitThresholdMs int64
	MinUtteranceDurationMs  int64
	MaxUtteranceDurationMs  int64
	MaxMergeGapMs           int64
	TrailingSilenceCapMs    int64
	KeepGapAsField          bool
}

// DefaultParams matches spec §4.5's documented defaults.
func DefaultParams() Params {
	return Params{
		SilenceSplitThresholdMs: 450,
		MinUtteranceDurationMs:  900,
		MaxUtteranceDurationMs:  8000,
		MaxMergeGapMs:           1000,
		TrailingSilenceCapMs:    350,
		KeepGapAsField:          true,
	}
}

func (p Params) secondarySplitThresholdMs() int64 {
	return p.SilenceSplitThresholdMs / 2
}

// Chunk is one rebuilt utterance-in-progress: a contiguous span of words
// plus the trailing-silence bookkeeping needed to emit start_ms/end_ms.
type Chunk struct {
	Speaker   string
	Words     []subtitle.Word
	GapAfter  int64
	HardSplit bool
}

func (c Chunk) startMs() int64 { return c.Words[0].StartMs }
func (c Chunk) endMs() int64   { return c.Words[len(c.Words)-1].EndMs }
func (c Chunk) duration() int64 {
	return c.endMs() - c.startMs()
}

// Metrics records how many hard splits and merges happened, for phase
// reporting. Hard-splits are the last resort and are explicit here, per
// spec §4.5 step 3.
type Metrics struct {
	HardSplits int
	Merges     int
}

// Normalize runs the five-step algorithm of spec §4.5 over a flat,
// time-sorted word stream and returns the rebuilt chunks plus metrics. It
// does not compute speech rate or build cues; see SpeechRate and the cue
// subpackage for those.
func Normalize(words []subtitle.Word, p Params) ([]Chunk, Metrics) {
	var metrics Metrics
	if len(words) == 0 {
		return nil, metrics
	}

	sorted := make([]subtitle.Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartMs != sorted[j].StartMs {
			return sorted[i].StartMs < sorted[j].StartMs
		}
		return sorted[i].EndMs < sorted[j].EndMs
	})

	chunks := initialSplit(sorted, p)
	chunks = mergeShortChunks(chunks, p, &metrics)
	chunks = splitLongChunks(chunks, p, &metrics)
	chunks = assignGaps(chunks, p)
	return chunks, metrics
}

// initialSplit implements step 1: split on silence gap or speaker change.
func initialSplit(words []subtitle.Word, p Params) []Chunk {
	var chunks []Chunk
	cur := []subtitle.Word{words[0]}
	for i := 1; i < len(words); i++ {
		prev, w := words[i-1], words[i]
		gap := w.StartMs - prev.EndMs
		speakerChanged := prev.Speaker != "" && w.Speaker != "" && prev.Speaker != w.Speaker
		if gap >= p.SilenceSplitThresholdMs || speakerChanged {
			chunks = append(chunks, Chunk{Speaker: chunkSpeaker(cur), Words: cur})
			cur = nil
		}
		cur = append(cur, w)
	}
	chunks = append(chunks, Chunk{Speaker: chunkSpeaker(cur), Words: cur})
	return chunks
}

func chunkSpeaker(words []subtitle.Word) string {
	for _, w := range words {
		if w.Speaker != "" {
			return w.Speaker
		}
	}
	return ""
}

// mergeShortChunks implements step 2: merge chunks shorter than
// MinUtteranceDurationMs into a same-speaker neighbour within MaxMergeGapMs,
// preferring the earlier neighbour, then sweeping the first/last chunks
// once more for residual violations.
func mergeShortChunks(chunks []Chunk, p Params, metrics *Metrics) []Chunk {
	merged := mergePass(chunks, p, metrics)
	merged = sweepEnds(merged, p, metrics)
	return merged
}

func mergePass(chunks []Chunk, p Params, metrics *Metrics) []Chunk {
	if len(chunks) <= 1 {
		return chunks
	}
	out := make([]Chunk, 0, len(chunks))
	out = append(out, chunks[0])
	for i := 1; i < len(chunks); i++ {
		c := chunks[i]
		prev := &out[len(out)-1]
		if c.duration() < p.MinUtteranceDurationMs &&
			prev.Speaker == c.Speaker &&
			c.startMs()-prev.endMs() <= p.MaxMergeGapMs {
			prev.Words = append(prev.Words, c.Words...)
			metrics.Merges++
			continue
		}
		out = append(out, c)
	}
	return out
}

func sweepEnds(chunks []Chunk, p Params, metrics *Metrics) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}
	first := chunks[0]
	if first.duration() < p.MinUtteranceDurationMs &&
		first.Speaker == chunks[1].Speaker &&
		chunks[1].startMs()-first.endMs() <= p.MaxMergeGapMs {
		chunks[1].Words = append(first.Words, chunks[1].Words...)
		chunks = chunks[1:]
		metrics.Merges++
	}
	if len(chunks) < 2 {
		return chunks
	}
	last := chunks[len(chunks)-1]
	prev := chunks[len(chunks)-2]
	if last.duration() < p.MinUtteranceDurationMs &&
		prev.Speaker == last.Speaker &&
		last.startMs()-prev.endMs() <= p.MaxMergeGapMs {
		chunks[len(chunks)-2].Words = append(prev.Words, last.Words...)
		chunks = chunks[:len(chunks)-1]
		metrics.Merges++
	}
	return chunks
}

// splitLongChunks implements step 3: re-split any chunk longer than
// MaxUtteranceDurationMs using the secondary (halved) threshold, hard-
// splitting at the largest internal gap as a last resort.
func splitLongChunks(chunks []Chunk, p Params, metrics *Metrics) []Chunk {
	var out []Chunk
	for _, c := range chunks {
		out = append(out, splitOne(c, p, metrics)...)
	}
	return out
}

func splitOne(c Chunk, p Params, metrics *Metrics) []Chunk {
	if c.duration() <= p.MaxUtteranceDurationMs {
		return []Chunk{c}
	}
	secondary := p.secondarySplitThresholdMs()
	var parts []Chunk
	cur := []subtitle.Word{c.Words[0]}
	for i := 1; i < len(c.Words); i++ {
		gap := c.Words[i].StartMs - c.Words[i-1].EndMs
		if gap >= secondary {
			parts = append(parts, Chunk{Speaker: c.Speaker, Words: cur})
			cur = nil
		}
		cur = append(cur, c.Words[i])
	}
	parts = append(parts, Chunk{Speaker: c.Speaker, Words: cur})

	if len(parts) == 1 {
		// No secondary-threshold gap found; hard-split at the largest
		// internal gap.
		hard := hardSplitAtLargestGap(c, p)
		metrics.HardSplits++
		var result []Chunk
		for _, h := range hard {
			result = append(result, splitOne(h, p, metrics)...)
		}
		return result
	}

	var result []Chunk
	for _, part := range parts {
		result = append(result, splitOne(part, p, metrics)...)
	}
	return result
}

func hardSplitAtLargestGap(c Chunk, p Params) []Chunk {
	if len(c.Words) < 2 {
		return []Chunk{c}
	}
	bestIdx, bestGap := -1, int64(-1)
	for i := 1; i < len(c.Words); i++ {
		gap := c.Words[i].StartMs - c.Words[i-1].EndMs
		if gap > bestGap {
			bestGap, bestIdx = gap, i
		}
	}
	if bestIdx <= 0 {
		mid := len(c.Words) / 2
		if mid == 0 {
			mid = 1
		}
		bestIdx = mid
	}
	return []Chunk{
		{Speaker: c.Speaker, Words: append([]subtitle.Word(nil), c.Words[:bestIdx]...)},
		{Speaker: c.Speaker, Words: append([]subtitle.Word(nil), c.Words[bestIdx:]...)},
	}
}

// assignGaps implements step 4: compute gap_after_ms to the next chunk and
// apply the trailing-silence policy.
func assignGaps(chunks []Chunk, p Params) []Chunk {
	for i := range chunks {
		if i+1 < len(chunks) {
			chunks[i].GapAfter = chunks[i+1].startMs() - chunks[i].endMs()
		} else {
			chunks[i].GapAfter = 0
		}
	}
	return chunks
}

// EndMs returns the chunk's emitted end_ms under the configured
// trailing-silence policy: the last word's end if KeepGapAsField, otherwise
// the gap (capped) folded in.
func (c Chunk) EndMs(p Params) int64 {
	if p.KeepGapAsField {
		return c.endMs()
	}
	fold := c.GapAfter
	if fold > p.TrailingSilenceCapMs {
		fold = p.TrailingSilenceCapMs
	}
	if fold < 0 {
		fold = 0
	}
	return c.endMs() + fold
}

// StartMs returns the chunk's start_ms (first word's start).
func (c Chunk) StartMs() int64 { return c.startMs() }

// SpeechRateZhTPS implements step 5: token count over the union of word
// time intervals, in tokens per second. Blank or negative-duration words
// are discarded first.
func SpeechRateZhTPS(words []subtitle.Word) float64 {
	type interval struct{ start, end int64 }
	var ivs []interval
	tokenCount := 0
	for _, w := range words {
		if w.EndMs <= w.StartMs {
			continue
		}
		if len(trimSpace(w.Text)) == 0 {
			continue
		}
		ivs = append(ivs, interval{w.StartMs, w.EndMs})
		tokenCount++
	}
	if len(ivs) == 0 {
		return 0
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].start < ivs[j].start })
	totalMs := int64(0)
	curStart, curEnd := ivs[0].start, ivs[0].end
	for _, iv := range ivs[1:] {
		if iv.start > curEnd {
			totalMs += curEnd - curStart
			curStart, curEnd = iv.start, iv.end
			continue
		}
		if iv.end > curEnd {
			curEnd = iv.end
		}
	}
	totalMs += curEnd - curStart
	if totalMs <= 0 {
		return 0
	}
	return float64(tokenCount) / (float64(totalMs) / 1000.0)
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
