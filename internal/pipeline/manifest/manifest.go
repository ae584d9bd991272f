// Package manifest implements the pipeline's single persistent registry of
// artifacts and phase execution records. There is exactly one manifest per
// workspace; every mutation is followed immediately by an atomic save, and
// there is no in-memory cache beyond the Manifest value itself.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/reelsub/dubpipe/internal/pipeline/fingerprint"
)

// SchemaVersion is written into every manifest this package creates.
const SchemaVersion = "1.0"

// Job identifies the workspace a manifest belongs to.
type Job struct {
	JobID     string `json:"job_id"`
	Workspace string `json:"workspace"`
}

// Artifact is an immutable record of a single produced file.
type Artifact struct {
	Key         string         `json:"key"`
	Relpath     string         `json:"relpath"`
	Kind        string         `json:"kind"`
	Fingerprint string         `json:"fingerprint"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// PhaseStatus is one of the enumerated phase lifecycle states.
type PhaseStatus string

const (
	StatusPending   PhaseStatus = "pending"
	StatusRunning   PhaseStatus = "running"
	StatusSucceeded PhaseStatus = "succeeded"
	StatusFailed    PhaseStatus = "failed"
	StatusSkipped   PhaseStatus = "skipped"
)

// PhaseError captures a failed phase's classification and message, mirroring
// what the runner records on both declared failures and unhandled panics.
type PhaseError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Trace   string `json:"traceback,omitempty"`
}

// PhaseRecord is one phase's execution history in the manifest.
type PhaseRecord struct {
	Name               string         `json:"name"`
	Version            string         `json:"version"`
	Status             PhaseStatus    `json:"status"`
	StartedAt          string         `json:"started_at,omitempty"`
	FinishedAt         string         `json:"finished_at,omitempty"`
	Attempt            int            `json:"attempt"`
	Requires           []string       `json:"requires,omitempty"`
	Provides           []string       `json:"provides,omitempty"`
	InputsFingerprint  string         `json:"inputs_fingerprint,omitempty"`
	ConfigFingerprint  string         `json:"config_fingerprint,omitempty"`
	Artifacts          []string       `json:"artifacts,omitempty"`
	Metrics            map[string]any `json:"metrics,omitempty"`
	Warnings           []string       `json:"warnings,omitempty"`
	Error              *PhaseError    `json:"error,omitempty"`
	Skipped            bool           `json:"skipped,omitempty"`
}

// Manifest is the single persistent document tracking a workspace's
// artifacts and phase records.
type Manifest struct {
	SchemaVersion string                  `json:"schema_version"`
	Job           Job                     `json:"job"`
	Artifacts     map[string]Artifact     `json:"artifacts"`
	Phases        map[string]PhaseRecord  `json:"phases"`

	path string `json:"-"`
}

// New constructs an empty manifest bound to path, not yet persisted.
func New(path string, job Job) *Manifest {
	return &Manifest{
		SchemaVersion: SchemaVersion,
		Job:           job,
		Artifacts:     map[string]Artifact{},
		Phases:        map[string]PhaseRecord{},
		path:          path,
	}
}

// Load reads the manifest at path, or returns a fresh empty one bound to
// path if the file does not exist.
func Load(path string, job Job) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(path, job), nil
		}
		return nil, fmt.Errorf("manifest: load %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	if m.Artifacts == nil {
		m.Artifacts = map[string]Artifact{}
	}
	if m.Phases == nil {
		m.Phases = map[string]PhaseRecord{}
	}
	m.path = path
	return &m, nil
}

// Save persists the manifest atomically to its bound path.
func (m *Manifest) Save() error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}
	return fingerprint.AtomicWrite(data, m.path)
}

// SetJob updates the job identity and persists.
func (m *Manifest) SetJob(job Job) error {
	m.Job = job
	return m.Save()
}

// RegisterArtifact overwrites any prior artifact record with the same key
// and persists.
func (m *Manifest) RegisterArtifact(a Artifact) error {
	m.Artifacts[a.Key] = a
	return m.Save()
}

// GetArtifact returns the artifact for key, or a descriptive error listing
// the keys that were actually available (spec §7 input-resolution error).
func (m *Manifest) GetArtifact(key string) (Artifact, error) {
	a, ok := m.Artifacts[key]
	if !ok {
		keys := make([]string, 0, len(m.Artifacts))
		for k := range m.Artifacts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return Artifact{}, fmt.Errorf("manifest: artifact %q not found; available keys: %v", key, keys)
	}
	return a, nil
}

// UpdatePhase merges fields into the named phase record (creating it if
// absent) and persists. The caller supplies a fully-formed PhaseRecord;
// status-transition legality is the runner's responsibility, not this
// package's.
func (m *Manifest) UpdatePhase(name string, rec PhaseRecord) error {
	rec.Name = name
	m.Phases[name] = rec
	return m.Save()
}

// GetPhaseStatus returns the named phase's status, or StatusPending if the
// phase has never run.
func (m *Manifest) GetPhaseStatus(name string) PhaseStatus {
	rec, ok := m.Phases[name]
	if !ok {
		return StatusPending
	}
	return rec.Status
}

// GetPhaseData returns the named phase's full record and whether it exists.
func (m *Manifest) GetPhaseData(name string) (PhaseRecord, bool) {
	rec, ok := m.Phases[name]
	return rec, ok
}

// GetAllArtifacts returns a copy of the artifact map.
func (m *Manifest) GetAllArtifacts() map[string]Artifact {
	out := make(map[string]Artifact, len(m.Artifacts))
	for k, v := range m.Artifacts {
		out[k] = v
	}
	return out
}

// ComputeInputsFingerprint hashes the sorted "key:fingerprint" pairs of the
// artifacts keys names, per spec §4.3 condition 4.
func ComputeInputsFingerprint(keys []string, artifacts map[string]Artifact) (string, error) {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		a, ok := artifacts[k]
		if !ok {
			return "", fmt.Errorf("manifest: cannot fingerprint missing artifact %q", k)
		}
		parts = append(parts, k+":"+a.Fingerprint)
	}
	sort.Strings(parts)
	joined := ""
	for i, p := range parts {
		if i > 0 {
			joined += "\x1f"
		}
		joined += p
	}
	return fingerprint.HashString(joined), nil
}

// ComputeConfigFingerprint hashes the canonicalized config subtree for a
// phase, plus any extra named fields the phase declares it consumes (e.g.
// video_path). This value is always computed and stored, but per spec §9
// Open Question 1 it is not consulted by should_run in this implementation;
// a config-only change does not by itself invalidate a succeeded phase.
func ComputeConfigFingerprint(phaseConfig map[string]any, extra map[string]any) (string, error) {
	merged := map[string]any{"phase": phaseConfig}
	if len(extra) > 0 {
		merged["extra"] = extra
	}
	return fingerprint.HashValue(merged)
}
