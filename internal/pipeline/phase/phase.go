// Package phase defines the Phase contract and the Runner that sequences
// phases against a workspace's manifest: deciding whether a phase needs to
// run, resolving its inputs, allocating its output paths, invoking it, and
// committing the result. Phases never touch the manifest directly.
package phase

import (
	"context"
	"fmt"
)

// RunContext is the read-only context passed to every phase invocation.
type RunContext struct {
	JobID     string
	Workspace string
	Config    map[string]any

	// Ctx carries cancellation/deadline for adapters that support it. The
	// pipeline itself runs phases serially with no in-process cancellation
	// beyond what an individual adapter call honors.
	Ctx context.Context
}

// PhaseConfig returns the config.phases[name] subtree, or an empty map.
func (rc RunContext) PhaseConfig(name string) map[string]any {
	phases, _ := rc.Config["phases"].(map[string]any)
	if phases == nil {
		return map[string]any{}
	}
	sub, _ := phases[name].(map[string]any)
	if sub == nil {
		return map[string]any{}
	}
	return sub
}

// ResolvedOutputs maps each key in a phase's Provides() to an absolute path
// pre-allocated by the runner. Phases must write only to these paths.
type ResolvedOutputs map[string]string

// ResolvedInputs maps each key in a phase's Requires() to the absolute path
// of the artifact the runner resolved it to.
type ResolvedInputs map[string]string

// Result is what a phase's Run returns.
type Result struct {
	Status   string // "succeeded" | "failed"
	Outputs  []string
	Metrics  map[string]any
	Warnings []string
	Err      error
}

// Succeeded builds a successful Result declaring which provided keys were
// actually written.
func Succeeded(outputs []string) Result {
	return Result{Status: "succeeded", Outputs: outputs}
}

// Failed builds a failed Result wrapping err.
func Failed(err error) Result {
	return Result{Status: "failed", Err: err}
}

// Phase is a single pipeline stage.
type Phase interface {
	Name() string
	Version() string
	Requires() []string
	Provides() []string
	Run(ctx RunContext, inputs ResolvedInputs, outputs ResolvedOutputs) Result
}

// PathTemplate maps a provided artifact key to its workspace-relative path
// and artifact kind tag, e.g. "sub.subtitle_model" -> ("subs/subtitle.model.json", "json").
type PathTemplate struct {
	Relpath string
	Kind    string
}

// Registry is the fixed (key -> path template) table the runner uses to
// allocate output paths before invoking a phase.
type Registry map[string]PathTemplate

// Lookup returns the path template for key, or an error naming the key.
func (r Registry) Lookup(key string) (PathTemplate, error) {
	t, ok := r[key]
	if !ok {
		return PathTemplate{}, fmt.Errorf("phase: no path template registered for output key %q", key)
	}
	return t, nil
}
