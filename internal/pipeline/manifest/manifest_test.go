package manifest

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	m, err := Load(path, Job{JobID: "job1", Workspace: dir})
	if err != nil {
		t.Fatal(err)
	}
	if m.SchemaVersion != SchemaVersion {
		t.Fatalf("got schema version %q", m.SchemaVersion)
	}
	if len(m.Artifacts) != 0 || len(m.Phases) != 0 {
		t.Fatal("expected empty manifest")
	}
}

func TestRegisterArtifactAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	m, err := Load(path, Job{JobID: "job1", Workspace: dir})
	if err != nil {
		t.Fatal(err)
	}
	a := Artifact{Key: "demux.audio", Relpath: "audio/ep.wav", Kind: "wav", Fingerprint: "sha256:deadbeef"}
	if err := m.RegisterArtifact(a); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Load(path, Job{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := reloaded.GetArtifact("demux.audio")
	if err != nil {
		t.Fatal(err)
	}
	if got.Fingerprint != a.Fingerprint {
		t.Fatalf("got %+v", got)
	}
}

func TestGetArtifactMissingListsAvailableKeys(t *testing.T) {
	dir := t.TempDir()
	m := New(filepath.Join(dir, "manifest.json"), Job{})
	_ = m.RegisterArtifact(Artifact{Key: "a.one", Fingerprint: "sha256:1"})
	_ = m.RegisterArtifact(Artifact{Key: "a.two", Fingerprint: "sha256:2"})

	_, err := m.GetArtifact("missing.key")
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !contains(msg, "a.one") || !contains(msg, "a.two") {
		t.Fatalf("expected available keys in error, got %q", msg)
	}
}

func TestUpdatePhaseAndStatus(t *testing.T) {
	dir := t.TempDir()
	m := New(filepath.Join(dir, "manifest.json"), Job{})

	if m.GetPhaseStatus("asr") != StatusPending {
		t.Fatal("expected pending for unknown phase")
	}
	if err := m.UpdatePhase("asr", PhaseRecord{Version: "1.0.0", Status: StatusSucceeded}); err != nil {
		t.Fatal(err)
	}
	if m.GetPhaseStatus("asr") != StatusSucceeded {
		t.Fatal("expected succeeded")
	}
	rec, ok := m.GetPhaseData("asr")
	if !ok || rec.Name != "asr" {
		t.Fatalf("got %+v, %v", rec, ok)
	}
}

func TestComputeInputsFingerprintOrderIndependent(t *testing.T) {
	artifacts := map[string]Artifact{
		"a": {Fingerprint: "sha256:1"},
		"b": {Fingerprint: "sha256:2"},
	}
	h1, err := ComputeInputsFingerprint([]string{"a", "b"}, artifacts)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := ComputeInputsFingerprint([]string{"b", "a"}, artifacts)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("expected order-independent fingerprint, got %s vs %s", h1, h2)
	}
}

func TestComputeInputsFingerprintMissingArtifact(t *testing.T) {
	_, err := ComputeInputsFingerprint([]string{"missing"}, map[string]Artifact{})
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
