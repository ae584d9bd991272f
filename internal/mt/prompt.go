package mt

import "fmt"

// DefaultPromptBuilder returns the standard prompt builder for a crime-drama
// subtitle translation: a hard-rules system prompt plus the utterance and
// its budget on the first attempt, and a progressively tighter compression
// instruction on retries. slangGlossary is appended to the first-attempt
// system prompt verbatim when non-empty, matching
// build_utterance_translation_prompt's slang_glossary_text parameter.
func DefaultPromptBuilder(slangGlossary string) PromptBuilder {
	return func(zhText string, budgetMs int64, retryLevel int, maxChars int) string {
		budgetSec := float64(budgetMs) / 1000.0
		if retryLevel == 0 {
			prompt := "You are a professional subtitle translator for a crime drama.\n\n" +
				"Rules:\n" +
				"1) The input may contain <<NAME_i:...>> which is a Chinese personal name.\n" +
				"   Translate the name into English (pinyin or surname-based). Do NOT invent Western names.\n" +
				"   Do NOT translate name meanings.\n" +
				"2) Translate naturally. Do NOT translate word by word.\n" +
				"3) This dialogue includes gambling / card-game slang. Use natural English equivalents.\n" +
				"4) Output must be clean English for subtitles:\n" +
				"   - Remove all <<NAME_i:...>> placeholders (render the translated name).\n" +
				"   - Remove <sep> separators (use punctuation/pauses naturally).\n" +
				"Return ONLY the final English text."
			if slangGlossary != "" {
				prompt += "\n\nGlossary (MUST follow EXACTLY if these phrases appear):\n" + slangGlossary
			}
			prompt += fmt.Sprintf("\n\nConstraints:\n"+
				"- This subtitle will be displayed for %.2f seconds.\n"+
				"- Maximum allowed length: approximately %d English characters (including spaces).\n"+
				"- The translation must be natural, concise, and readable.\n"+
				"- Do NOT add explanations or notes.\n"+
				"- Do NOT exceed the maximum length.\n\n"+
				"Translate ONLY this utterance into natural English for subtitles:\n%q", budgetSec, maxChars, zhText)
			return prompt
		}

		lead := fmt.Sprintf("Shorten the following English subtitle to fit within %.2f seconds (approximately %d characters), while keeping the core meaning.", budgetSec, maxChars)
		if retryLevel >= 2 {
			lead = fmt.Sprintf("Make the following English subtitle much shorter to fit within %.2f seconds (approximately %d characters). You may omit filler words, repetitions, or minor details, but keep the core meaning.", budgetSec, maxChars)
		}
		return fmt.Sprintf("%s\n\n"+
			"Important: If the text contains <<NAME_x:...>> placeholders, translate them to English names.\n"+
			"Do NOT keep any <<NAME_x>> or <<NAME_x:...>> in the output.\n\n"+
			"About <sep> markers (if present):\n"+
			"- <sep> indicates a light pause between phrases.\n"+
			"- Translate naturally and keep the meaning.\n\n"+
			"Subtitle:\n%q\n\n"+
			"Output ONLY the shortened English subtitle text (with all names translated, no placeholders).",
			lead, zhText)
	}
}
