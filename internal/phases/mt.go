package phases

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	dubmt "github.com/reelsub/dubpipe/internal/mt"
	"github.com/reelsub/dubpipe/internal/pipeline/namedict"
	"github.com/reelsub/dubpipe/internal/pipeline/phase"
	"github.com/reelsub/dubpipe/internal/subtitle"
)

// NameDict is the subset of namedict.Dict that mt consults: known-name
// enumeration, first-write-wins name completion caching, and glossary hit
// detection.
type NameDict interface {
	KnownNames() ([]string, error)
	ResolveName(source string) (string, bool, error)
	PutNameFirstWriteWins(source, english string) error
	GlossaryHits(zhText string) ([]namedict.GlossaryEntry, error)
}

// MTPhase translates every utterance's Chinese text to English under its
// time budget, persisting both the request and accepted-result JSONL
// streams the align phase reads back.
type MTPhase struct {
	Translate    dubmt.TranslateFunc
	BuildPrompt  dubmt.PromptBuilder
	Dict         NameDict
	CompleteName func(ctx context.Context, sourceName string) (string, error)
}

func (p *MTPhase) Name() string       { return "mt" }
func (p *MTPhase) Version() string    { return "1" }
func (p *MTPhase) Requires() []string { return []string{"subs.subtitle_model", "asr.asr_result"} }
func (p *MTPhase) Provides() []string { return []string{"mt.mt_input", "mt.mt_output"} }

func (p *MTPhase) Run(ctx phase.RunContext, inputs phase.ResolvedInputs, outputs phase.ResolvedOutputs) phase.Result {
	raw, err := os.ReadFile(inputs["subs.subtitle_model"])
	if err != nil {
		return phase.Failed(fmt.Errorf("mt: read subtitle model: %w", err))
	}
	var model subtitle.Model
	if err := json.Unmarshal(raw, &model); err != nil {
		return phase.Failed(fmt.Errorf("mt: parse subtitle model: %w", err))
	}

	knownNames, err := p.Dict.KnownNames()
	if err != nil {
		return phase.Failed(fmt.Errorf("mt: list known names: %w", err))
	}

	inFile, err := os.Create(outputs["mt.mt_input"])
	if err != nil {
		return phase.Failed(fmt.Errorf("mt: create mt_input.jsonl: %w", err))
	}
	defer inFile.Close()
	inWriter := bufio.NewWriter(inFile)

	var results []dubmt.Output
	for _, utt := range model.Utterances {
		zhText := joinCueText(utt)
		in := dubmt.Input{
			UttID:   utt.UttID,
			ZhText:  zhText,
			StartMs: utt.StartMs,
			EndMs:   utt.EndMs,
			ZhTPS:   utt.SpeechRate.ZhTPS,
		}

		inLine, err := json.Marshal(in)
		if err != nil {
			return phase.Failed(fmt.Errorf("mt: marshal input for %s: %w", utt.UttID, err))
		}
		if _, err := inWriter.Write(append(inLine, '\n')); err != nil {
			return phase.Failed(fmt.Errorf("mt: write mt_input.jsonl: %w", err))
		}

		deps := dubmt.Deps{
			Translate:   p.Translate,
			BuildPrompt: p.BuildPrompt,
			KnownNames:  knownNames,
			ResolveName: func(source string) (string, bool) {
				english, ok, err := p.Dict.ResolveName(source)
				if err != nil || !ok {
					return "", false
				}
				return english, true
			},
			Glossary: p.Dict.GlossaryHits,
		}
		if p.CompleteName != nil {
			deps.CompleteName = func(source string) (string, error) {
				english, err := p.CompleteName(ctx.Ctx, source)
				if err != nil {
					return "", err
				}
				if err := p.Dict.PutNameFirstWriteWins(source, english); err != nil {
					return "", err
				}
				return english, nil
			}
		}

		out, err := dubmt.TranslateUtterance(ctx.Ctx, in, deps)
		if err != nil {
			return phase.Failed(fmt.Errorf("mt: translate %s: %w", utt.UttID, err))
		}
		results = append(results, out)
	}

	if err := inWriter.Flush(); err != nil {
		return phase.Failed(fmt.Errorf("mt: flush mt_input.jsonl: %w", err))
	}

	outFile, err := os.Create(outputs["mt.mt_output"])
	if err != nil {
		return phase.Failed(fmt.Errorf("mt: create mt_output.jsonl: %w", err))
	}
	defer outFile.Close()
	outWriter := bufio.NewWriter(outFile)
	for _, out := range results {
		line, err := json.Marshal(out)
		if err != nil {
			return phase.Failed(fmt.Errorf("mt: marshal output for %s: %w", out.UttID, err))
		}
		if _, err := outWriter.Write(append(line, '\n')); err != nil {
			return phase.Failed(fmt.Errorf("mt: write mt_output.jsonl: %w", err))
		}
	}
	if err := outWriter.Flush(); err != nil {
		return phase.Failed(fmt.Errorf("mt: flush mt_output.jsonl: %w", err))
	}

	return phase.Succeeded([]string{"mt.mt_input", "mt.mt_output"})
}

func joinCueText(utt subtitle.SubtitleUtterance) string {
	var sb strings.Builder
	for i, cue := range utt.Cues {
		if i > 0 {
			sb.WriteString("<sep>")
		}
		sb.WriteString(cue.Source.Text)
	}
	return sb.String()
}

// LoadTranslations reads subs/mt_output.jsonl back into the
// utt_id -> English text map align.Run consumes.
func LoadTranslations(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mt: open mt_output.jsonl: %w", err)
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var o dubmt.Output
		if err := json.Unmarshal([]byte(line), &o); err != nil {
			return nil, fmt.Errorf("mt: parse mt_output.jsonl line: %w", err)
		}
		out[o.UttID] = o.Text
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mt: scan mt_output.jsonl: %w", err)
	}
	return out, nil
}
