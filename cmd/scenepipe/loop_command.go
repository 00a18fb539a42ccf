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

func newLoopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "loop",
		Short: "Continuously scan the inbox and run new projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := pipelog.New(pipelog.Options{
				Level:         cfg.Logging.Level,
				Format:        cfg.Logging.Format,
				LogDir:        cfg.Paths.LogDir,
				RetentionDays: cfg.Logging.RetentionDays,
			})
			if err != nil {
				return fmt.Errorf("loop: build logger: %w", err)
			}

			baseDelay := time.Duration(cfg.LLM.RetryBaseSeconds) * time.Second
			client := llm.New(llm.Config{
				Endpoint:       cfg.LLM.Endpoint,
				Model:          cfg.LLM.Model,
				APIKeys:        cfg.LLM.APIKeys,
				TimeoutSeconds: cfg.LLM.RequestTimeoutSeconds,
			}, llm.WithLogger(logger), llm.WithRetryPolicy(cfg.LLM.RetryMax, baseDelay, 32*baseDelay))

			scanner := loop.New(cfg, logger, loop.DefaultRunProject(cfg, client, logger))
			return scanner.Start(signalCtx)
		},
	}
}
