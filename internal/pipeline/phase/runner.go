package phase

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/reelsub/dubpipe/internal/pipeline/fingerprint"
	"github.com/reelsub/dubpipe/internal/pipeline/manifest"
	"github.com/reelsub/dubpipe/internal/pipeline/perror"
)

// Runner sequences phases against a single workspace manifest.
type Runner struct {
	Manifest *manifest.Manifest
	Registry Registry
	Workspace string
}

// NewRunner builds a Runner bound to an already-loaded manifest.
func NewRunner(m *manifest.Manifest, workspace string, reg Registry) *Runner {
	return &Runner{Manifest: m, Registry: reg, Workspace: workspace}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ShouldRun implements the five-condition check from spec §4.3. It returns
// (false, "") only when force is unset and every condition holds;
// otherwise it returns (true, reason), with reason "force" when force is set.
func (r *Runner) ShouldRun(p Phase, force bool) (bool, string) {
	if force {
		return true, "force"
	}
	rec, ok := r.Manifest.GetPhaseData(p.Name())
	if !ok {
		return true, "no prior phase record"
	}
	if rec.Status != manifest.StatusSucceeded {
		return true, fmt.Sprintf("prior status was %q", rec.Status)
	}
	if rec.Version != p.Version() {
		return true, fmt.Sprintf("version changed: %q -> %q", rec.Version, p.Version())
	}
	inputsFP, err := manifest.ComputeInputsFingerprint(p.Requires(), r.Manifest.GetAllArtifacts())
	if err != nil {
		return true, fmt.Sprintf("cannot compute inputs fingerprint: %v", err)
	}
	if inputsFP != rec.InputsFingerprint {
		return true, "inputs fingerprint changed"
	}
	for _, key := range p.Provides() {
		a, ok := r.Manifest.Artifacts[key]
		if !ok {
			return true, fmt.Sprintf("output %q not registered", key)
		}
		path := filepath.Join(r.Workspace, a.Relpath)
		fp, err := fingerprint.HashFile(path)
		if err != nil {
			return true, fmt.Sprintf("output %q missing or unreadable: %v", key, err)
		}
		if fp != a.Fingerprint {
			return true, fmt.Sprintf("output %q changed on disk", key)
		}
	}
	return false, ""
}

// resolveInputs resolves each of a phase's required keys to an absolute
// on-disk path, failing with an input-resolution error on the first miss.
func (r *Runner) resolveInputs(p Phase) (ResolvedInputs, error) {
	in := make(ResolvedInputs, len(p.Requires()))
	for _, key := range p.Requires() {
		a, err := r.Manifest.GetArtifact(key)
		if err != nil {
			return nil, perror.InputResolution(p.Name(), key, keysOf(r.Manifest.GetAllArtifacts()))
		}
		in[key] = filepath.Join(r.Workspace, a.Relpath)
	}
	return in, nil
}

func keysOf(m map[string]manifest.Artifact) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// allocateOutputs resolves each of a phase's provided keys to an absolute
// path via the registry, creating parent directories up front.
func (r *Runner) allocateOutputs(p Phase) (ResolvedOutputs, error) {
	out := make(ResolvedOutputs, len(p.Provides()))
	for _, key := range p.Provides() {
		tmpl, err := r.Registry.Lookup(key)
		if err != nil {
			return nil, err
		}
		abs := filepath.Join(r.Workspace, tmpl.Relpath)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("phase: allocate output %q: %w", key, err)
		}
		out[key] = abs
	}
	return out, nil
}

// RunPhase executes the should_run / resolve / allocate / run / commit
// sequence from spec §4.3 for a single phase.
func (r *Runner) RunPhase(p Phase, ctx RunContext, force bool) error {
	run, _ := r.ShouldRun(p, force)
	if !run {
		rec, _ := r.Manifest.GetPhaseData(p.Name())
		rec.Status = manifest.StatusSucceeded
		return r.Manifest.UpdatePhase(p.Name(), rec)
	}

	prior, hadPrior := r.Manifest.GetPhaseData(p.Name())
	if hadPrior && prior.Status != manifest.StatusSucceeded {
		skipped := prior
		skipped.Status = manifest.StatusSkipped
		skipped.Skipped = true
		_ = r.Manifest.UpdatePhase(p.Name(), skipped)
	}

	inputs, err := r.resolveInputs(p)
	if err != nil {
		return err
	}

	inputsFP, err := manifest.ComputeInputsFingerprint(p.Requires(), r.Manifest.GetAllArtifacts())
	if err != nil {
		return perror.Wrap(perror.KindDataMissing, p.Name(), "computing inputs fingerprint", err)
	}
	configFP, err := manifest.ComputeConfigFingerprint(ctx.PhaseConfig(p.Name()), nil)
	if err != nil {
		return perror.Wrap(perror.KindDataMissing, p.Name(), "computing config fingerprint", err)
	}

	attempt := prior.Attempt + 1
	running := manifest.PhaseRecord{
		Version:           p.Version(),
		Status:            manifest.StatusRunning,
		StartedAt:         now(),
		Attempt:           attempt,
		Requires:          p.Requires(),
		Provides:          p.Provides(),
		InputsFingerprint: inputsFP,
		ConfigFingerprint: configFP,
	}
	if err := r.Manifest.UpdatePhase(p.Name(), running); err != nil {
		return err
	}

	outputs, err := r.allocateOutputs(p)
	if err != nil {
		return err
	}

	result := r.invoke(p, ctx, inputs, outputs)

	if result.Status == "succeeded" {
		return r.commitSuccess(p, running, result, outputs)
	}
	return r.commitFailure(p, running, result)
}

// invoke calls phase.Run, converting a panic into a failed Result carrying
// the panic's type and message the way an unhandled exception would.
func (r *Runner) invoke(p Phase, ctx RunContext, inputs ResolvedInputs, outputs ResolvedOutputs) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Result{
				Status: "failed",
				Err:    fmt.Errorf("panic in phase %s: %v", p.Name(), rec),
			}
		}
	}()
	return p.Run(ctx, inputs, outputs)
}

func (r *Runner) commitSuccess(p Phase, rec manifest.PhaseRecord, result Result, outputs ResolvedOutputs) error {
	declared := map[string]bool{}
	for _, k := range result.Outputs {
		declared[k] = true
	}
	artifactKeys := make([]string, 0, len(result.Outputs))
	for _, key := range result.Outputs {
		abs, ok := outputs[key]
		if !ok {
			return perror.OutputValidation(p.Name(), key, "not in allocated outputs map")
		}
		if _, err := os.Stat(abs); err != nil {
			return perror.OutputValidation(p.Name(), key, "file was not written: "+err.Error())
		}
		fp, err := fingerprint.HashFile(abs)
		if err != nil {
			return perror.OutputValidation(p.Name(), key, "cannot hash output: "+err.Error())
		}
		tmpl, err := r.Registry.Lookup(key)
		if err != nil {
			return err
		}
		relpath, err := filepath.Rel(r.Workspace, abs)
		if err != nil {
			relpath = tmpl.Relpath
		}
		if err := r.Manifest.RegisterArtifact(manifest.Artifact{
			Key:         key,
			Relpath:     relpath,
			Kind:        tmpl.Kind,
			Fingerprint: fp,
		}); err != nil {
			return err
		}
		artifactKeys = append(artifactKeys, key)
	}

	rec.Status = manifest.StatusSucceeded
	rec.FinishedAt = now()
	rec.Artifacts = artifactKeys
	rec.Metrics = result.Metrics
	rec.Warnings = result.Warnings
	rec.Error = nil
	return r.Manifest.UpdatePhase(p.Name(), rec)
}

func (r *Runner) commitFailure(p Phase, rec manifest.PhaseRecord, result Result) error {
	rec.Status = manifest.StatusFailed
	rec.FinishedAt = now()
	rec.Warnings = result.Warnings
	if result.Err != nil {
		if pe, ok := perror.As(result.Err); ok {
			rec.Error = &manifest.PhaseError{Type: string(pe.Kind), Message: pe.Message}
		} else {
			rec.Error = &manifest.PhaseError{Type: "error", Message: result.Err.Error()}
		}
	}
	if err := r.Manifest.UpdatePhase(p.Name(), rec); err != nil {
		return err
	}
	if result.Err != nil {
		return fmt.Errorf("phase %s failed: %w", p.Name(), result.Err)
	}
	return fmt.Errorf("phase %s failed", p.Name())
}

// RunPipeline runs phases in order, stopping and naming the failing phase.
// If from/to are non-empty, only the inclusive slice of phases named is run.
func (r *Runner) RunPipeline(phases []Phase, ctx RunContext, force bool, from, to string) error {
	start, end := 0, len(phases)
	if from != "" {
		for i, p := range phases {
			if p.Name() == from {
				start = i
				break
			}
		}
	}
	if to != "" {
		for i, p := range phases {
			if p.Name() == to {
				end = i + 1
				break
			}
		}
	}
	for _, p := range phases[start:end] {
		if err := r.RunPhase(p, ctx, force); err != nil {
			return fmt.Errorf("run_pipeline: %w", err)
		}
	}
	return nil
}

// BlessReport records what Bless found for one provided artifact key:
// "updated" (fingerprint changed or the artifact was not yet registered),
// "unchanged" (on-disk hash matches what the manifest already held), or
// "missing" (the registry has no path template, or nothing exists there).
type BlessReport struct {
	Key    string
	Status string
}

// Bless re-hashes every artifact p.Provides() from disk and marks the
// phase succeeded without running it, per spec §6's `bless` command: a
// hand-edited output's fingerprint is brought back in sync with the file
// on disk. Per spec §9 Open Question 2, bless never updates
// config_fingerprint; it is left as whatever the last real run recorded
// (or empty, if the phase never ran).
func (r *Runner) Bless(p Phase) ([]BlessReport, error) {
	rec, _ := r.Manifest.GetPhaseData(p.Name())
	inputsFP, err := manifest.ComputeInputsFingerprint(p.Requires(), r.Manifest.GetAllArtifacts())
	if err != nil {
		return nil, perror.Wrap(perror.KindDataMissing, p.Name(), "bless: computing inputs fingerprint", err)
	}

	var reports []BlessReport
	for _, key := range p.Provides() {
		tmpl, err := r.Registry.Lookup(key)
		if err != nil {
			reports = append(reports, BlessReport{Key: key, Status: "missing"})
			continue
		}
		abs := filepath.Join(r.Workspace, tmpl.Relpath)
		fp, err := fingerprint.HashFile(abs)
		if err != nil {
			reports = append(reports, BlessReport{Key: key, Status: "missing"})
			continue
		}

		prior, hadPrior := r.Manifest.Artifacts[key]
		status := "updated"
		if hadPrior && prior.Fingerprint == fp {
			status = "unchanged"
		}
		reports = append(reports, BlessReport{Key: key, Status: status})

		if err := r.Manifest.RegisterArtifact(manifest.Artifact{
			Key: key, Relpath: tmpl.Relpath, Kind: tmpl.Kind, Fingerprint: fp,
		}); err != nil {
			return nil, err
		}
	}

	rec.Version = p.Version()
	rec.Status = manifest.StatusSucceeded
	rec.FinishedAt = now()
	rec.Requires = p.Requires()
	rec.Provides = p.Provides()
	rec.InputsFingerprint = inputsFP
	rec.Artifacts = p.Provides()
	rec.Error = nil
	if err := r.Manifest.UpdatePhase(p.Name(), rec); err != nil {
		return nil, err
	}
	return reports, nil
}
