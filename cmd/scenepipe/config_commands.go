package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scenepipe/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set llm.api_keys before running scenepipe.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var configFlag string

	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Print the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, found, err := config.Load(configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !found {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "inbox_dir:    %s\n", cfg.Paths.InboxDir)
			fmt.Fprintf(out, "projects_dir: %s\n", cfg.Paths.ProjectsDir)
			fmt.Fprintf(out, "log_dir:      %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "llm.endpoint: %s\n", cfg.LLM.Endpoint)
			fmt.Fprintf(out, "llm.model:    %s\n", cfg.LLM.Model)
			fmt.Fprintf(out, "llm.api_keys: %s\n", redactKeys(cfg.LLM.APIKeys))
			fmt.Fprintf(out, "video_mode:   %s\n", cfg.Pipeline.VideoMode)
			fmt.Fprintf(out, "max_parallel_api: %d\n", cfg.Pipeline.MaxParallelAPI)
			fmt.Fprintf(out, "scan_interval_seconds: %d\n", cfg.Loop.ScanIntervalSeconds)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	return cmd
}

func redactKeys(keys []string) string {
	if len(keys) == 0 {
		return "(none configured)"
	}
	redacted := make([]string, len(keys))
	for i, key := range keys {
		if len(key) <= 4 {
			redacted[i] = "****"
			continue
		}
		redacted[i] = strings.Repeat("*", len(key)-4) + key[len(key)-4:]
	}
	return strings.Join(redacted, ", ")
}
