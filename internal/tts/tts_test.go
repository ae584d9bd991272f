package tts

import (
	"errors"
	"testing"

	"github.com/reelsub/dubpipe/internal/align"
)

func TestDecideSuccessWhenTrimmedFitsBudget(t *testing.T) {
	d := decide(700, 1000, 1.3, 500)
	if d.status != StatusSuccess || d.rate != 1.0 || d.finalMs != 1000 {
		t.Fatalf("got %+v", d)
	}
}

func TestDecideRateAdjustedWithinMaxRate(t *testing.T) {
	d := decide(900, 700, 1.3, 0)
	if d.status != StatusRateAdjusted {
		t.Fatalf("got %+v", d)
	}
	wantRate := 900.0 / 700.0
	if d.rate != wantRate || d.finalMs != 700 {
		t.Fatalf("got %+v, want rate=%f", d, wantRate)
	}
}

func TestDecideExtendedWhenRateAdjustExceedsMaxRate(t *testing.T) {
	d := decide(1300, 500, 1.3, 500)
	// rate at budget = 1300/500 = 2.6 > 1.3, try extended = 500+500=1000
	// extended rate = 1300/1000 = 1.3 <= 1.3
	if d.status != StatusExtended {
		t.Fatalf("got %+v", d)
	}
	if d.finalMs != 1000 {
		t.Fatalf("got final_ms=%d, want 1000", d.finalMs)
	}
}

func TestDecideFailedWhenEvenExtendedExceedsMaxRate(t *testing.T) {
	d := decide(1300, 500, 1.3, 100)
	if d.status != StatusFailed {
		t.Fatalf("got %+v", d)
	}
	if d.errorMsg == "" {
		t.Fatal("expected error message on failure")
	}
}

func TestDecideFailedWhenNoExtendAllowed(t *testing.T) {
	d := decide(1300, 500, 1.3, 0)
	if d.status != StatusFailed {
		t.Fatalf("got %+v", d)
	}
}

type fakeOps struct {
	trimCalled, padCalled, rateCalled, silenceCalled bool
	trimmedDurationMs                                int64
}

func (f *fakeOps) TrimSilence(in, out string) error { f.trimCalled = true; return nil }
func (f *fakeOps) PadTo(in, out string, targetMs int64) error {
	f.padCalled = true
	return nil
}
func (f *fakeOps) ApplyRateAndPad(in, out string, rate float64, targetMs int64) error {
	f.rateCalled = true
	return nil
}
func (f *fakeOps) CreateSilentAudio(out string, durationMs int64) error {
	f.silenceCalled = true
	return nil
}

type fakeSynth struct {
	audio []byte
	err   error
}

func (f fakeSynth) Synthesize(text, voiceID string, prosody map[string]any) ([]byte, error) {
	return f.audio, f.err
}

func newDeps(t *testing.T, ops *fakeOps, rawMs, trimmedMs int64) Deps {
	dir := t.TempDir()
	calls := 0
	return Deps{
		Synth: fakeSynth{audio: []byte("fake-wav-bytes")},
		Probe: func(path string) (int64, error) {
			calls++
			if calls == 1 {
				return rawMs, nil
			}
			return trimmedMs, nil
		},
		Ops: ops,
		Paths: func(uttID, cacheKey string) CachePaths {
			return CachePaths{
				CacheFile:   dir + "/" + uttID + "_cache.wav",
				RawFile:     dir + "/" + uttID + "_raw.wav",
				TrimmedFile: dir + "/" + uttID + "_trimmed.wav",
				SegmentFile: dir + "/" + uttID + "_seg.wav",
			}
		},
		CacheExists: func(string) bool { return false },
		CopyFile:    func(src, dst string) error { return nil },
		WriteCache:  func(src, cacheFile string) error { return nil },
	}
}

func TestSynthesizeSegmentPunctuationOnlyWritesSilence(t *testing.T) {
	ops := &fakeOps{}
	deps := newDeps(t, ops, 0, 0)
	utt := align.DubUtterance{UttID: "utt_0001", BudgetMs: 1000, TextEn: "..."}
	report := SynthesizeSegment(utt, VoiceResolution{VoiceID: "v1"}, "key", deps)
	if report.Status != StatusSuccess || !ops.silenceCalled {
		t.Fatalf("got %+v, silenceCalled=%v", report, ops.silenceCalled)
	}
}

func TestSynthesizeSegmentSuccessPadsWhenUnderBudget(t *testing.T) {
	ops := &fakeOps{}
	deps := newDeps(t, ops, 600, 600)
	utt := align.DubUtterance{UttID: "utt_0002", BudgetMs: 1000, TextEn: "Hello there"}
	utt.TTSPolicy.MaxRate = 1.3
	report := SynthesizeSegment(utt, VoiceResolution{VoiceID: "v1"}, "key", deps)
	if report.Status != StatusSuccess || !ops.padCalled || ops.rateCalled {
		t.Fatalf("got %+v", report)
	}
	if report.FinalMs != 1000 {
		t.Fatalf("got final_ms=%d", report.FinalMs)
	}
}

func TestSynthesizeSegmentRateAdjusts(t *testing.T) {
	ops := &fakeOps{}
	deps := newDeps(t, ops, 1300, 1300)
	utt := align.DubUtterance{UttID: "utt_0003", BudgetMs: 1000, TextEn: "Hello there, how are you"}
	utt.TTSPolicy.MaxRate = 1.5
	report := SynthesizeSegment(utt, VoiceResolution{VoiceID: "v1"}, "key", deps)
	if report.Status != StatusRateAdjusted || !ops.rateCalled || !ops.trimCalled {
		t.Fatalf("got %+v", report)
	}
}

func TestSynthesizeSegmentFailsAndReportsError(t *testing.T) {
	ops := &fakeOps{}
	deps := newDeps(t, ops, 2000, 2000)
	utt := align.DubUtterance{UttID: "utt_0004", BudgetMs: 500, TextEn: "Way too much to say"}
	utt.TTSPolicy.MaxRate = 1.3
	utt.TTSPolicy.AllowExtendMs = 0
	report := SynthesizeSegment(utt, VoiceResolution{VoiceID: "v1"}, "key", deps)
	if report.Status != StatusFailed || report.Error == "" {
		t.Fatalf("got %+v", report)
	}
}

func TestSynthesizeSegmentSynthesisErrorIsFailed(t *testing.T) {
	ops := &fakeOps{}
	deps := newDeps(t, ops, 0, 0)
	deps.Synth = fakeSynth{err: errors.New("provider unavailable")}
	utt := align.DubUtterance{UttID: "utt_0005", BudgetMs: 1000, TextEn: "Hello there"}
	report := SynthesizeSegment(utt, VoiceResolution{VoiceID: "v1"}, "key", deps)
	if report.Status != StatusFailed {
		t.Fatalf("got %+v", report)
	}
}

func TestCacheKeyNormalizesWhitespaceAndIsDeterministic(t *testing.T) {
	a, err := CacheKey(CacheKeyInput{
		Engine: "volcengine", EngineVer: "v1", Voice: "en-US-Jenny",
		Lang: "en-US", Format: "wav", SampleRate: 24000, Channels: 1,
		NormalizedText: "Hello   there",
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := CacheKey(CacheKeyInput{
		Engine: "volcengine", EngineVer: "v1", Voice: "en-US-Jenny",
		Lang: "en-US", Format: "wav", SampleRate: 24000, Channels: 1,
		NormalizedText: "Hello there",
	})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("expected whitespace-normalized text to share a cache key, got %q vs %q", a, b)
	}
}
