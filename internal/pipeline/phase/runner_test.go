package phase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reelsub/dubpipe/internal/pipeline/manifest"
)

type fakePhase struct {
	name     string
	version  string
	requires []string
	provides []string
	runFn    func(ctx RunContext, inputs ResolvedInputs, outputs ResolvedOutputs) Result
	calls    int
}

func (f *fakePhase) Name() string       { return f.name }
func (f *fakePhase) Version() string    { return f.version }
func (f *fakePhase) Requires() []string { return f.requires }
func (f *fakePhase) Provides() []string { return f.provides }
func (f *fakePhase) Run(ctx RunContext, inputs ResolvedInputs, outputs ResolvedOutputs) Result {
	f.calls++
	return f.runFn(ctx, inputs, outputs)
}

func newTestRunner(t *testing.T) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	m := manifest.New(filepath.Join(dir, "manifest.json"), manifest.Job{JobID: "j1", Workspace: dir})
	reg := Registry{
		"demux.audio": {Relpath: "audio/ep.wav", Kind: "wav"},
		"sub.model":   {Relpath: "subs/subtitle.model.json", Kind: "json"},
	}
	return NewRunner(m, dir, reg), dir
}

func TestRunPhaseWritesArtifactAndSucceeds(t *testing.T) {
	r, dir := newTestRunner(t)

	p := &fakePhase{
		name: "demux", version: "1.0.0", provides: []string{"demux.audio"},
		runFn: func(ctx RunContext, inputs ResolvedInputs, outputs ResolvedOutputs) Result {
			if err := os.WriteFile(outputs["demux.audio"], []byte("pcm-data"), 0o644); err != nil {
				return Failed(err)
			}
			return Succeeded([]string{"demux.audio"})
		},
	}

	ctx := RunContext{JobID: "j1", Workspace: dir, Config: map[string]any{}}
	if err := r.RunPhase(p, ctx, false); err != nil {
		t.Fatal(err)
	}
	if r.Manifest.GetPhaseStatus("demux") != manifest.StatusSucceeded {
		t.Fatal("expected succeeded")
	}
	a, err := r.Manifest.GetArtifact("demux.audio")
	if err != nil {
		t.Fatal(err)
	}
	if a.Relpath != "audio/ep.wav" {
		t.Fatalf("got %+v", a)
	}
}

func TestRunPhaseSkipsWhenUnchanged(t *testing.T) {
	r, dir := newTestRunner(t)
	p := &fakePhase{
		name: "demux", version: "1.0.0", provides: []string{"demux.audio"},
		runFn: func(ctx RunContext, inputs ResolvedInputs, outputs ResolvedOutputs) Result {
			os.WriteFile(outputs["demux.audio"], []byte("pcm-data"), 0o644)
			return Succeeded([]string{"demux.audio"})
		},
	}
	ctx := RunContext{JobID: "j1", Workspace: dir, Config: map[string]any{}}

	if err := r.RunPhase(p, ctx, false); err != nil {
		t.Fatal(err)
	}
	if err := r.RunPhase(p, ctx, false); err != nil {
		t.Fatal(err)
	}
	if p.calls != 1 {
		t.Fatalf("expected phase to run exactly once, ran %d times", p.calls)
	}
}

func TestRunPhaseRerunsOnForce(t *testing.T) {
	r, dir := newTestRunner(t)
	p := &fakePhase{
		name: "demux", version: "1.0.0", provides: []string{"demux.audio"},
		runFn: func(ctx RunContext, inputs ResolvedInputs, outputs ResolvedOutputs) Result {
			os.WriteFile(outputs["demux.audio"], []byte("pcm-data"), 0o644)
			return Succeeded([]string{"demux.audio"})
		},
	}
	ctx := RunContext{JobID: "j1", Workspace: dir, Config: map[string]any{}}

	r.RunPhase(p, ctx, false)
	r.RunPhase(p, ctx, true)
	if p.calls != 2 {
		t.Fatalf("expected 2 runs with force, got %d", p.calls)
	}
}

func TestRunPhaseInputResolutionError(t *testing.T) {
	r, dir := newTestRunner(t)
	p := &fakePhase{
		name: "sub", version: "1.0.0", requires: []string{"demux.audio"}, provides: []string{"sub.model"},
		runFn: func(ctx RunContext, inputs ResolvedInputs, outputs ResolvedOutputs) Result {
			return Succeeded([]string{"sub.model"})
		},
	}
	ctx := RunContext{JobID: "j1", Workspace: dir, Config: map[string]any{}}
	if err := r.RunPhase(p, ctx, false); err == nil {
		t.Fatal("expected input resolution error")
	}
}

func TestRunPhaseFailedStatusPersists(t *testing.T) {
	r, dir := newTestRunner(t)
	p := &fakePhase{
		name: "demux", version: "1.0.0", provides: []string{"demux.audio"},
		runFn: func(ctx RunContext, inputs ResolvedInputs, outputs ResolvedOutputs) Result {
			return Failed(os.ErrPermission)
		},
	}
	ctx := RunContext{JobID: "j1", Workspace: dir, Config: map[string]any{}}
	if err := r.RunPhase(p, ctx, false); err == nil {
		t.Fatal("expected error")
	}
	if r.Manifest.GetPhaseStatus("demux") != manifest.StatusFailed {
		t.Fatal("expected failed status recorded")
	}
}

func TestBlessMarksSucceededWithoutRunning(t *testing.T) {
	r, dir := newTestRunner(t)
	_ = dir
	p := &fakePhase{name: "demux", version: "1.0.0", provides: []string{"demux.audio"}}

	reports, err := r.Bless(p)
	if err != nil {
		t.Fatal(err)
	}
	if p.calls != 0 {
		t.Fatal("bless must not invoke Run")
	}
	if r.Manifest.GetPhaseStatus("demux") != manifest.StatusSucceeded {
		t.Fatal("expected succeeded after bless")
	}
	if len(reports) != 1 || reports[0].Status != "missing" {
		t.Fatalf("expected a missing report for the never-written artifact, got %+v", reports)
	}
}

func TestBlessReportsUpdatedThenUnchanged(t *testing.T) {
	r, dir := newTestRunner(t)
	p := &fakePhase{name: "demux", version: "1.0.0", provides: []string{"demux.audio"}}

	abs := filepath.Join(dir, "audio/ep.wav")
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte("pcm-data"), 0o644); err != nil {
		t.Fatal(err)
	}

	reports, err := r.Bless(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].Status != "updated" {
		t.Fatalf("expected updated on first bless, got %+v", reports)
	}

	reports, err = r.Bless(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].Status != "unchanged" {
		t.Fatalf("expected unchanged on second bless of an untouched file, got %+v", reports)
	}

	if err := os.WriteFile(abs, []byte("pcm-data-edited"), 0o644); err != nil {
		t.Fatal(err)
	}
	reports, err = r.Bless(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].Status != "updated" {
		t.Fatalf("expected updated after hand-editing the file, got %+v", reports)
	}
}
