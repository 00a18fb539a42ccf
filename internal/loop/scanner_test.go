package loop

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"scenepipe/internal/config"
	"scenepipe/internal/pipelog"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.InboxDir = filepath.Join(t.TempDir(), "inbox")
	cfg.Paths.ProjectsDir = filepath.Join(t.TempDir(), "projects")
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	return &cfg
}

func writeInboxProject(t *testing.T, cfg *config.Config, code, content string) {
	t.Helper()
	dir := cfg.InboxProjectDir(code)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, code+".srt"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestDiscoverNewProjectsFindsInboxDrops(t *testing.T) {
	cfg := testConfig(t)
	writeInboxProject(t, cfg, "EP01", "1\n00:00:00,000 --> 00:00:01,000\nHello\n\n")

	s := New(cfg, slog.New(pipelog.NoopHandler{}), nil)
	codes, err := s.discoverNewProjects()
	if err != nil {
		t.Fatalf("discoverNewProjects: %v", err)
	}
	if len(codes) != 1 || codes[0] != "EP01" {
		t.Fatalf("expected [EP01], got %v", codes)
	}
}

func TestDiscoverNewProjectsSkipsAlreadyImported(t *testing.T) {
	cfg := testConfig(t)
	writeInboxProject(t, cfg, "EP01", "1\n00:00:00,000 --> 00:00:01,000\nHello\n\n")
	if err := os.MkdirAll(cfg.ProjectDir("EP01"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	s := New(cfg, slog.New(pipelog.NoopHandler{}), nil)
	codes, err := s.discoverNewProjects()
	if err != nil {
		t.Fatalf("discoverNewProjects: %v", err)
	}
	if len(codes) != 0 {
		t.Fatalf("expected no new projects, got %v", codes)
	}
}

func TestImportAndRunRemovesInboxCopyOnSuccess(t *testing.T) {
	cfg := testConfig(t)
	writeInboxProject(t, cfg, "EP01", "1\n00:00:00,000 --> 00:00:01,000\nHello\n\n")

	var ranWith string
	s := New(cfg, slog.New(pipelog.NoopHandler{}), func(_ context.Context, code string) error {
		ranWith = code
		return nil
	})

	if err := s.importAndRun(context.Background(), "EP01"); err != nil {
		t.Fatalf("importAndRun: %v", err)
	}
	if ranWith != "EP01" {
		t.Fatalf("expected run to be invoked with EP01, got %q", ranWith)
	}
	if _, err := os.Stat(filepath.Join(cfg.InboxProjectDir("EP01"), "EP01.srt")); !os.IsNotExist(err) {
		t.Fatalf("expected inbox copy to be removed, stat err=%v", err)
	}
	if _, err := os.Stat(cfg.SRTPath("EP01")); err != nil {
		t.Fatalf("expected imported SRT at project dir, stat err=%v", err)
	}
}

func TestImportAndRunKeepsInboxCopyOnFailure(t *testing.T) {
	cfg := testConfig(t)
	writeInboxProject(t, cfg, "EP01", "1\n00:00:00,000 --> 00:00:01,000\nHello\n\n")

	s := New(cfg, slog.New(pipelog.NoopHandler{}), func(_ context.Context, code string) error {
		return context.DeadlineExceeded
	})

	if err := s.importAndRun(context.Background(), "EP01"); err == nil {
		t.Fatal("expected importAndRun to propagate the run failure")
	}
	if _, err := os.Stat(filepath.Join(cfg.InboxProjectDir("EP01"), "EP01.srt")); err != nil {
		t.Fatalf("expected inbox copy to remain after failed run, stat err=%v", err)
	}
}
