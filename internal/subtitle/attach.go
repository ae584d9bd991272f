package subtitle

import (
	"regexp"
	"strings"
)

var trailingPunctRE = regexp.MustCompile(`^[\s,，。！？；：、.!?;:'"…—\-]+`)

// AttachPunctuation redistributes trailing punctuation/whitespace from the
// richer utterance-level text onto each word's Text, in place. Words carry
// no punctuation from the recognizer; this walks the word texts and the
// utterance text in parallel, matching each word in order, and appending
// any immediately-following punctuation run in the utterance text to that
// word. Unmatched words receive no punctuation. Grounded on asr_post.py's
// _plain_with_map / words_to_segment punctuation redistribution.
func AttachPunctuation(utteranceText string, words []Word) {
	pos := 0
	for i := range words {
		w := strings.TrimSpace(words[i].Text)
		if w == "" {
			continue
		}
		idx := strings.Index(utteranceText[pos:], w)
		if idx < 0 {
			continue
		}
		start := pos + idx
		end := start + len(w)
		pos = end

		rest := utteranceText[end:]
		if loc := trailingPunctRE.FindStringIndex(rest); loc != nil {
			// Only attach up to the next word's first rune, never past it.
			punct := rest[loc[0]:loc[1]]
			words[i].Text = words[i].Text + punct
			pos = end + loc[1]
		}
	}
}
