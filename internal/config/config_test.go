package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dub.config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesTopLevelAndPhases(t *testing.T) {
	path := writeConfigFile(t, `
mt_engine: gemini
mt_model: gemini-2.5-pro
phases:
  tts:
    max_workers: 4
    voice_map:
      narrator: zh_male_narrator
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MTEngine != "gemini" || cfg.MTModel != "gemini-2.5-pro" {
		t.Fatalf("got %+v", cfg)
	}
	ttsConfig := cfg.PhaseConfig("tts")
	if ttsConfig["max_workers"] != uint64(4) && ttsConfig["max_workers"] != 4 {
		t.Fatalf("got %+v", ttsConfig["max_workers"])
	}
}

func TestLoadMissingDefaultFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	defer os.Chdir(cwd)
	os.Chdir(dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Raw) != 0 {
		t.Fatalf("expected empty config, got %+v", cfg.Raw)
	}
}

func TestLoadMissingExplicitFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for explicit missing config path")
	}
}

func TestPhaseConfigReturnsEmptyMapWhenAbsent(t *testing.T) {
	path := writeConfigFile(t, `video_path: /tmp/ep01.mp4`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.PhaseConfig("tts"); len(got) != 0 {
		t.Fatalf("expected empty map, got %+v", got)
	}
}

func TestWithVideoPathDoesNotMutateOriginal(t *testing.T) {
	path := writeConfigFile(t, `mt_engine: openai`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	updated := cfg.WithVideoPath("/videos/ep01.mp4")
	if cfg.VideoPath != "" {
		t.Fatalf("original config mutated: %+v", cfg)
	}
	if updated.VideoPath != "/videos/ep01.mp4" || updated.Raw["video_path"] != "/videos/ep01.mp4" {
		t.Fatalf("got %+v", updated)
	}
}

func TestDeriveWorkspace(t *testing.T) {
	got := DeriveWorkspace("/data/showname/ep01.mp4")
	want := "/data/showname/dub/ep01"
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}
