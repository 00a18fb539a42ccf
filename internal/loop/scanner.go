// Package loop implements the Continuous Scanner (C16): a cron-scheduled
// job that watches the inbox directory for new projects, imports and
// runs them through the pipeline, and cleans up on success.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"

	"scenepipe/internal/config"
	"scenepipe/internal/fileutil"
	"scenepipe/internal/llm"
	"scenepipe/internal/pipelog"
	"scenepipe/internal/pipeline"
	"scenepipe/internal/srt"
	"scenepipe/internal/workbook"
)

// RunProject imports one project (if needed) and drives it through the
// pipeline to completion; it is the unit of work both `scenepipe run`
// and the Continuous Scanner perform.
type RunProject func(ctx context.Context, code string) error

// Scanner schedules an `@every <scan_interval_seconds>s` cron job that
// discovers new inbox drops and runs them, one at a time, through the
// pipeline.
type Scanner struct {
	cfg    *config.Config
	logger *slog.Logger
	run    RunProject
	cron   *cron.Cron
}

// New builds a Scanner. run is invoked once per discovered project code.
func New(cfg *config.Config, logger *slog.Logger, run RunProject) *Scanner {
	return &Scanner{cfg: cfg, logger: pipelog.Component(logger, "loop"), run: run}
}

// Start schedules the scan job and blocks until ctx is cancelled.
func (s *Scanner) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %ds", s.cfg.Loop.ScanIntervalSeconds)
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := s.cron.AddFunc(spec, func() { s.scanOnce(ctx) })
	if err != nil {
		return fmt.Errorf("loop: schedule scan job: %w", err)
	}

	s.logger.Info("continuous scan started", pipelog.String("interval", spec))
	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	return nil
}

// scanOnce runs a single tick: discover, import, run, cleanup. It never
// returns an error — failures are logged and the next tick tries again.
func (s *Scanner) scanOnce(ctx context.Context) {
	codes, err := s.discoverNewProjects()
	if err != nil {
		s.logger.Error("inbox scan failed", pipelog.Error(err))
		return
	}

	for _, code := range codes {
		if err := s.importAndRun(ctx, code); err != nil {
			s.logger.Error("project run failed", pipelog.String("project", code), pipelog.Error(err))
			continue
		}
	}
}

// discoverNewProjects lists inbox_dir for {CODE}/{CODE}.srt directories
// not already present under projects_dir, guarding duplicate imports by
// checking projects_dir/{CODE} existence first.
func (s *Scanner) discoverNewProjects() ([]string, error) {
	dirEntries, err := os.ReadDir(s.cfg.Paths.InboxDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read inbox dir: %w", err)
	}

	var codes []string
	for _, entry := range dirEntries {
		if !entry.IsDir() {
			continue
		}
		code := entry.Name()
		srtPath := filepath.Join(s.cfg.InboxProjectDir(code), code+".srt")
		if _, statErr := os.Stat(srtPath); statErr != nil {
			continue
		}
		if _, statErr := os.Stat(s.cfg.ProjectDir(code)); statErr == nil {
			continue
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// importAndRun copies the inbox SRT into projects_dir (leaving the
// inbox copy in place until the run succeeds), drives the pipeline, and
// on success removes the inbox copy.
func (s *Scanner) importAndRun(ctx context.Context, code string) error {
	src := filepath.Join(s.cfg.InboxProjectDir(code), code+".srt")
	dst := s.cfg.SRTPath(code)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create project dir for %s: %w", code, err)
	}
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return fmt.Errorf("import %s: %w", code, err)
	}

	if err := s.run(ctx, code); err != nil {
		return fmt.Errorf("run %s: %w", code, err)
	}

	if err := os.Remove(src); err != nil {
		s.logger.Warn("failed to remove inbox copy after successful run", pipelog.String("project", code), pipelog.Error(err))
	}
	return nil
}

// DefaultRunProject builds the RunProject the CLI wires the Scanner
// with: parse the project's SRT, open its workbook, and drive the
// Stage Runner.
func DefaultRunProject(cfg *config.Config, client *llm.Client, logger *slog.Logger) RunProject {
	return func(ctx context.Context, code string) error {
		entries, err := srt.Parse(cfg.SRTPath(code))
		if err != nil {
			return fmt.Errorf("parse srt for %s: %w", code, err)
		}

		store, err := workbook.Open(cfg.WorkbookPath(code))
		if err != nil {
			return fmt.Errorf("open workbook for %s: %w", code, err)
		}
		defer store.Close()

		st := &pipeline.State{
			ProjectCode: code,
			Config:      cfg,
			Store:       store,
			LLM:         client,
			Logger:      logger,
			Entries:     entries,
		}
		return pipeline.NewRunner().Run(ctx, st)
	}
}
