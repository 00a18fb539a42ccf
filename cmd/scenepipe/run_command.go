package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scenepipe/internal/llm"
	"scenepipe/internal/loop"
	"scenepipe/internal/pipelog"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var project string
	var mode string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one project through the pipeline to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" {
				return fmt.Errorf("run: --project is required")
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if mode != "" {
				if mode != "basic" && mode != "full" {
					return fmt.Errorf("run: --mode must be \"basic\" or \"full\", got %q", mode)
				}
				cfg.Pipeline.VideoMode = mode
			}

			logger, err := pipelog.New(pipelog.Options{
				Level:         cfg.Logging.Level,
				Format:        cfg.Logging.Format,
				LogDir:        cfg.Paths.LogDir,
				RetentionDays: cfg.Logging.RetentionDays,
			})
			if err != nil {
				return fmt.Errorf("run: build logger: %w", err)
			}

			baseDelay := time.Duration(cfg.LLM.RetryBaseSeconds) * time.Second
			client := llm.New(llm.Config{
				Endpoint:       cfg.LLM.Endpoint,
				Model:          cfg.LLM.Model,
				APIKeys:        cfg.LLM.APIKeys,
				TimeoutSeconds: cfg.LLM.RequestTimeoutSeconds,
			}, llm.WithLogger(logger), llm.WithRetryPolicy(cfg.LLM.RetryMax, baseDelay, 32*baseDelay))

			runProject := loop.DefaultRunProject(cfg, client, logger)
			return runProject(signalCtx, project)
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project code to run")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Override video_note mode for this run (basic|full)")
	return cmd
}
