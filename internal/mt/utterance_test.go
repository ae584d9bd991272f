package mt

import (
	"context"
	"testing"

	"github.com/reelsub/dubpipe/internal/pipeline/namedict"
)

func TestTranslateUtteranceHappyPath(t *testing.T) {
	translate := func(ctx context.Context, prompt string) (string, error) {
		return "<<NAME_0>> is here", nil
	}
	build := func(zh string, budget int64, level int, maxChars int) string { return zh }

	out, err := TranslateUtterance(context.Background(), Input{
		UttID: "utt_0001", ZhText: "阿强来了", StartMs: 0, EndMs: 2000, ZhTPS: 6.0,
	}, Deps{
		Translate:   translate,
		BuildPrompt: build,
		KnownNames:  []string{"阿强"},
		ResolveName: func(src string) (string, bool) {
			if src == "阿强" {
				return "Qiang", true
			}
			return "", false
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Text != "Qiang is here" {
		t.Fatalf("got %q", out.Text)
	}
}

func TestTranslateUtteranceFailsOnUnresolvableName(t *testing.T) {
	translate := func(ctx context.Context, prompt string) (string, error) {
		return "<<NAME_0>> is here", nil
	}
	build := func(zh string, budget int64, level int, maxChars int) string { return zh }

	_, err := TranslateUtterance(context.Background(), Input{
		UttID: "utt_0001", ZhText: "阿强来了", StartMs: 0, EndMs: 2000, ZhTPS: 6.0,
	}, Deps{
		Translate:   translate,
		BuildPrompt: build,
		KnownNames:  []string{"阿强"},
		ResolveName: func(src string) (string, bool) { return "", false },
	})
	if err == nil {
		t.Fatal("expected error when name cannot be resolved")
	}
}

func TestTranslateUtteranceGlossaryRetry(t *testing.T) {
	calls := 0
	translate := func(ctx context.Context, prompt string) (string, error) {
		calls++
		if calls == 1 {
			return "Let's go have fun tonight", nil
		}
		return "Let's go to the casino tonight", nil
	}
	build := func(zh string, budget int64, level int, maxChars int) string { return zh }

	out, err := TranslateUtterance(context.Background(), Input{
		UttID: "utt_0001", ZhText: "今晚去赌场", StartMs: 0, EndMs: 2000, ZhTPS: 6.0,
	}, Deps{
		Translate:   translate,
		BuildPrompt: build,
		Glossary: func(zh string) ([]namedict.GlossaryEntry, error) {
			return []namedict.GlossaryEntry{{Source: "赌场", English: "casino"}}, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("expected a retry on glossary violation, got %d calls", calls)
	}
	if out.Text != "Let's go to the casino tonight" {
		t.Fatalf("got %q", out.Text)
	}
}
