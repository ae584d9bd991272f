package mt

import (
	"context"
	"testing"
)

func TestPickK(t *testing.T) {
	cases := []struct {
		tps  float64
		want float64
	}{
		{6.0, KFast},
		{5.5, KFast},
		{4.5, KNormal},
		{4.0, KNormal},
		{3.0, KSlow},
	}
	for _, c := range cases {
		if got := PickK(c.tps); got != c.want {
			t.Fatalf("PickK(%f) = %f, want %f", c.tps, got, c.want)
		}
	}
}

func TestBudgetMs(t *testing.T) {
	got := BudgetMs(0, 1000, 6.0)
	if got != 1000 {
		t.Fatalf("got %d, want 1000", got)
	}
	got = BudgetMs(0, 1000, 3.0)
	if got != 1200 {
		t.Fatalf("got %d, want 1200", got)
	}
}

func TestEstimateEnDurationMsIgnoresPunctuation(t *testing.T) {
	got := EstimateEnDurationMs("Hi, there!")
	// "Hithere" = 7 alnum chars
	want := int64(7.0 / EnCPS * 1000.0)
	if got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestCleanTranslationOutputStripsMarkers(t *testing.T) {
	in := "Hello <<NAME_0:阿强>> <sep> how are you <SLANG:yo>"
	got := CleanTranslationOutput(in)
	if got != "Hello how are you" {
		t.Fatalf("got %q", got)
	}
}

func TestPostCheckRejectsResidualCJK(t *testing.T) {
	r := PostCheck("Hello 世界")
	if r.OK {
		t.Fatal("expected rejection for CJK characters")
	}
}

func TestPostCheckRejectsPlaceholder(t *testing.T) {
	r := PostCheck("Hello <<NAME_0>>")
	if r.OK {
		t.Fatal("expected rejection for residual placeholder")
	}
}

func TestPostCheckAcceptsCleanEnglish(t *testing.T) {
	r := PostCheck("Hello there")
	if !r.OK {
		t.Fatalf("expected acceptance, got reason %q", r.Reason)
	}
}

func TestResolveEngineExplicitWins(t *testing.T) {
	got, err := ResolveEngine("openai", "gemini-2.0", "gemini")
	if err != nil || got != "openai" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestResolveEngineInfersFromModel(t *testing.T) {
	got, err := ResolveEngine("", "gpt-4o", "gemini")
	if err != nil || got != "openai" {
		t.Fatalf("got %q, %v", got, err)
	}
	got, err = ResolveEngine("", "gemini-2.0-flash", "openai")
	if err != nil || got != "gemini" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestResolveEngineFallsBackToDefault(t *testing.T) {
	got, err := ResolveEngine("", "some-custom-model", "openai")
	if err != nil || got != "openai" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestTranslateWithRetryStopsWhenWithinBudget(t *testing.T) {
	calls := 0
	translate := func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "Hi", nil
	}
	post := func(raw string) (string, error) { return raw, nil }
	build := func(zh string, budget int64, level int, maxChars int) string { return zh }

	attempt, err := TranslateWithRetry(context.Background(), "你好", 2000, build, translate, post, MaxRetries)
	if err != nil {
		t.Fatal(err)
	}
	if attempt.RetryLevel != 0 || calls != 1 {
		t.Fatalf("expected to stop at level 0, got level=%d calls=%d", attempt.RetryLevel, calls)
	}
}

func TestTranslateWithRetryExhaustsAndReturnsLast(t *testing.T) {
	translate := func(ctx context.Context, prompt string) (string, error) {
		return "This sentence is far too long to ever fit the budget given", nil
	}
	post := func(raw string) (string, error) { return raw, nil }
	build := func(zh string, budget int64, level int, maxChars int) string { return zh }

	attempt, err := TranslateWithRetry(context.Background(), "你好", 10, build, translate, post, 2)
	if err != nil {
		t.Fatal(err)
	}
	if attempt.RetryLevel != 2 {
		t.Fatalf("expected to exhaust retries at level 2, got %d", attempt.RetryLevel)
	}
}
