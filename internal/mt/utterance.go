package mt

import (
	"context"
	"fmt"

	"github.com/reelsub/dubpipe/internal/pipeline/namedict"
)

// Input is one utterance's translation request.
type Input struct {
	UttID   string
	ZhText  string
	StartMs int64
	EndMs   int64
	ZhTPS   float64
}

// Output is the accepted translation plus the stats spec §4.7 requires in
// mt_output.jsonl.
type Output struct {
	UttID    string
	Text     string
	BudgetMs int64
	EnEstMs  int64
	Retries  int
	Warnings []string
}

// Deps bundles the collaborators TranslateUtterance needs: the engine call,
// its prompt builder, the set of names known to occur in this utterance
// (from the out-of-scope name-guard collaborator), name resolution
// (dictionary lookup plus LLM completion, first-write-wins), and glossary
// lookup.
type Deps struct {
	Translate    TranslateFunc
	BuildPrompt  PromptBuilder
	KnownNames   []string
	ResolveName  func(sourceName string) (string, bool)
	CompleteName func(sourceName string) (string, error)
	Glossary     func(zhText string) ([]namedict.GlossaryEntry, error)
}

// TranslateUtterance runs the full spec §4.7 pipeline for one utterance:
// budget computation, name placeholdering, retry-with-compression
// translation, forced name-substitution fallback, hard post-checks, and
// glossary enforcement with one stricter re-run on violation.
func TranslateUtterance(ctx context.Context, in Input, deps Deps) (Output, error) {
	budgetMs := BudgetMs(in.StartMs, in.EndMs, in.ZhTPS)

	placeholdered, occurrences := ExtractAndReplaceNames(in.ZhText, deps.KnownNames)

	resolve := func(source string) (string, bool) {
		if deps.ResolveName != nil {
			if english, ok := deps.ResolveName(source); ok {
				return english, true
			}
		}
		if deps.CompleteName != nil {
			english, err := deps.CompleteName(source)
			if err == nil && english != "" {
				return english, true
			}
		}
		return "", false
	}

	postProcess := func(raw string) (string, error) {
		restored, err := RestorePlaceholders(raw, occurrences, resolve)
		if err != nil {
			return "", err
		}
		return restored, nil
	}

	attempt, err := TranslateWithRetry(ctx, placeholdered, budgetMs, deps.BuildPrompt, deps.Translate, postProcess, MaxRetries)
	if err != nil {
		return Output{}, err
	}

	text := attempt.Text
	var warnings []string

	if IsPunctuationOnly(text) && len(occurrences) > 0 {
		if english, ok := resolve(occurrences[0].SourceName); ok {
			text = ShortUtteranceFallback(english, "")
		}
	}

	for _, occ := range occurrences {
		english, ok := resolve(occ.SourceName)
		if !ok {
			continue
		}
		if corrected, did := ForceSubstituteName(text, english); did {
			text = corrected
			warnings = append(warnings, fmt.Sprintf("forced name substitution for %q", occ.SourceName))
		}
	}

	check := PostCheck(text)
	if !check.OK {
		return Output{}, fmt.Errorf("mt: post-check failed for %s: %s", in.UttID, check.Reason)
	}

	if deps.Glossary != nil {
		hits, err := deps.Glossary(in.ZhText)
		if err != nil {
			return Output{}, fmt.Errorf("mt: glossary lookup for %s: %w", in.UttID, err)
		}
		if violated := namedict.CheckGlossaryViolation(hits, text); len(violated) > 0 {
			retryPrompt := func(zh string, budget int64, level int, maxChars int) string {
				return deps.BuildPrompt(zh, budget, level, maxChars) + glossaryCorrectionSuffix(violated)
			}
			attempt2, err := TranslateWithRetry(ctx, placeholdered, budgetMs, retryPrompt, deps.Translate, postProcess, 0)
			if err != nil {
				return Output{}, err
			}
			stillViolated := namedict.CheckGlossaryViolation(hits, attempt2.Text)
			if len(stillViolated) == 0 {
				text = attempt2.Text
				attempt = attempt2
			} else {
				warnings = append(warnings, "glossary terms not honored after retry")
			}
		}
	}

	return Output{
		UttID:    in.UttID,
		Text:     text,
		BudgetMs: budgetMs,
		EnEstMs:  EstimateEnDurationMs(text),
		Retries:  attempt.RetryLevel,
		Warnings: warnings,
	}, nil
}

func glossaryCorrectionSuffix(violated []namedict.GlossaryEntry) string {
	s := "\n\nThe following glossary mappings were missed and must be used: "
	for i, v := range violated {
		if i > 0 {
			s += "; "
		}
		s += v.Source + " -> " + v.English
	}
	return s
}
