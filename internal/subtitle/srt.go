package subtitle

import (
	"fmt"
	"strings"
)

// RenderSRT projects a Model's cues, in order, as a pure SubRip text,
// ignoring utterance boundaries entirely — exactly as asr_post.py's
// downstream SRT writer does: one numbered block per cue. Cues whose source
// text is blank are skipped and take no number.
func RenderSRT(m *Model) string {
	var b strings.Builder
	n := 1
	for _, utt := range m.Utterances {
		for _, c := range utt.Cues {
			if strings.TrimSpace(c.Source.Text) == "" {
				continue
			}
			fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", n, srtTimestamp(c.StartMs), srtTimestamp(c.EndMs), c.Source.Text)
			n++
		}
	}
	return b.String()
}

func srtTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
