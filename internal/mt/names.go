package mt

import (
	"fmt"
	"sort"
	"strings"
)

// NameOccurrence is one source-language name found in an utterance's text,
// along with the placeholder token substituted in its place. Detection of
// which substrings are names is an external concern (the out-of-scope
// "name guard" collaborator); this package only consumes an already-known
// candidate list and performs the mechanical substitution, restoration, and
// forced-correction steps spec §4.7 step 2 describes.
type NameOccurrence struct {
	Placeholder string
	SourceName  string
}

// ExtractAndReplaceNames replaces every occurrence of a known candidate
// name in zhText with an opaque `<<NAME_i:源名>>` placeholder, longest
// names first so a longer name is never partially shadowed by a shorter
// one it contains. Returns the placeholdered text and the ordered list of
// occurrences (by placeholder index).
func ExtractAndReplaceNames(zhText string, knownNames []string) (string, []NameOccurrence) {
	candidates := append([]string(nil), knownNames...)
	sort.Slice(candidates, func(i, j int) bool { return len(candidates[i]) > len(candidates[j]) })

	var occurrences []NameOccurrence
	out := zhText
	idx := 0
	for _, name := range candidates {
		if name == "" || !strings.Contains(out, name) {
			continue
		}
		placeholder := fmt.Sprintf("<<NAME_%d:%s>>", idx, name)
		// An interim marker keeps shorter names from matching inside an
		// already-substituted longer name's placeholder.
		out = strings.ReplaceAll(out, name, fmt.Sprintf("\x00%d\x00", idx))
		occurrences = append(occurrences, NameOccurrence{Placeholder: placeholder, SourceName: name})
		idx++
	}
	for i, occ := range occurrences {
		out = strings.ReplaceAll(out, fmt.Sprintf("\x00%d\x00", i), occ.Placeholder)
	}
	return out, occurrences
}

// RestorePlaceholders replaces every `<<NAME_i>>` or `<<NAME_i:...>>` token
// in text with its resolved English name. resolve is called with the
// occurrence's source name and must return the stable English form (from
// the name dictionary, cache, or LLM completion) and whether one was found;
// a miss is a hard failure per spec §4.7 step 5.
func RestorePlaceholders(text string, occurrences []NameOccurrence, resolve func(sourceName string) (string, bool)) (string, error) {
	out := text
	for i, occ := range occurrences {
		bare := fmt.Sprintf("<<NAME_%d>>", i)
		tagged := occ.Placeholder
		english, ok := resolve(occ.SourceName)
		if !ok {
			return "", fmt.Errorf("mt: no English name resolved for %q", occ.SourceName)
		}
		out = strings.ReplaceAll(out, tagged, english)
		out = strings.ReplaceAll(out, bare, english)
	}
	return out, nil
}

// BuildNameVariants enumerates common mistranslation forms of a name that
// a forced-substitution pass should still catch and correct: pinyin run-
// together forms and a small table of known semantic mistranslations for
// single-character given names, matching utterance_translate.py's
// _build_name_variants.
func BuildNameVariants(englishName string) []string {
	variants := []string{englishName}
	parts := strings.Fields(englishName)
	if len(parts) == 2 {
		joined := parts[0] + parts[1]
		variants = append(variants,
			joined,
			strings.ToLower(parts[0])+"'"+strings.ToLower(parts[1]),
			parts[0]+"'"+parts[1],
		)
	}
	if variant, ok := semanticMistranslations[englishName]; ok {
		variants = append(variants, variant...)
	}
	return variants
}

// semanticMistranslations mirrors utterance_translate.py's hard-coded table
// of names that an LLM is prone to translate by meaning rather than sound.
var semanticMistranslations = map[string][]string{
	"Ping'an": {"Peace", "Safe", "Safety"},
	"Ming":    {"Bright", "Light"},
	"An":      {"An'an", "Anan"},
}

// ForceSubstituteName rewrites the first mistranslated variant of a name
// found in text with its correct English form. It returns the rewritten
// text and whether a substitution was made.
func ForceSubstituteName(text, englishName string) (string, bool) {
	for _, variant := range BuildNameVariants(englishName) {
		if variant == englishName {
			continue
		}
		if strings.Contains(text, variant) {
			return strings.ReplaceAll(text, variant, englishName), true
		}
	}
	return text, false
}

// ShortUtteranceFallback synthesizes a minimal "<Name>[, kin-suffix]<end-punct>"
// line when a cleaned translation collapses to pure punctuation, per spec
// §4.7 step 5.
func ShortUtteranceFallback(englishName, kinSuffix string) string {
	if kinSuffix == "" {
		return englishName + "."
	}
	return fmt.Sprintf("%s, %s.", englishName, kinSuffix)
}
