// Package config loads and validates scenepipe's TOML configuration.
//
// Configuration flows through three phases, in this order: Default()
// populates every field with a working value, an optional TOML file is
// decoded on top of it, normalize() expands paths and applies
// environment-variable fallbacks, and Validate() rejects anything the
// pipeline cannot safely run with.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Paths controls where the pipeline reads inbox drops and writes projects.
type Paths struct {
	InboxDir    string `toml:"inbox_dir" validate:"required"`
	ProjectsDir string `toml:"projects_dir" validate:"required"`
	LogDir      string `toml:"log_dir" validate:"required"`
}

// LLM configures the chat-completion endpoint the pipeline treats as its
// only external collaborator.
type LLM struct {
	Endpoint              string   `toml:"endpoint" validate:"required"`
	Model                 string   `toml:"model" validate:"required"`
	APIKeys               []string `toml:"api_keys" validate:"required,min=1"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds" validate:"required,gt=0"`
	RetryMax              int      `toml:"retry_max" validate:"required,gt=0"`
	RetryBaseSeconds      int      `toml:"retry_base_seconds" validate:"required,gt=0"`
}

// Pipeline tunes the stage runner and its batch fan-out.
type Pipeline struct {
	MaxParallelAPI  int    `toml:"max_parallel_api" validate:"required,gt=0"`
	Stage6BatchSize int    `toml:"stage6_batch_size" validate:"required,gt=0"`
	Stage7BatchSize int    `toml:"stage7_batch_size" validate:"required,gt=0"`
	VideoMode       string `toml:"video_mode" validate:"required,oneof=basic full"`
}

// Loop tunes the continuous inbox-scanning scheduler.
type Loop struct {
	ScanIntervalSeconds int `toml:"scan_interval_seconds" validate:"required,gt=0"`
}

// Logging tunes structured log output.
type Logging struct {
	Level         string `toml:"level" validate:"required,oneof=debug info warn error"`
	Format        string `toml:"format" validate:"required,oneof=console json"`
	RetentionDays int    `toml:"retention_days" validate:"gte=0"`
}

// Config is the top-level pipeline configuration.
type Config struct {
	Paths    Paths    `toml:"paths"`
	LLM      LLM      `toml:"llm"`
	Pipeline Pipeline `toml:"pipeline"`
	Loop     Loop     `toml:"loop"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the conventional per-user config location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "scenepipe", "config.toml"), nil
}

// Load resolves the configuration path (explicit path, then the default
// per-user location, then ./scenepipe.toml), applies Default(), decodes
// the file on top if one is found, normalizes, and validates. It returns
// the resolved config, the path it loaded from (when no file was found:
// the explicit path if one was given, else the default per-user path),
// whether a file was found, and any error.
func Load(explicitPath string) (*Config, string, bool, error) {
	cfg := Default()

	path, found, err := resolveConfigPath(explicitPath)
	if err != nil {
		return nil, "", false, err
	}

	if found {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, path, false, fmt.Errorf("read config %s: %w", path, readErr)
		}
		if decodeErr := toml.Unmarshal(data, &cfg); decodeErr != nil {
			return nil, path, false, fmt.Errorf("parse config %s: %w", path, decodeErr)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, path, found, fmt.Errorf("normalize config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, found, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, path, found, nil
}

func resolveConfigPath(explicitPath string) (string, bool, error) {
	if strings.TrimSpace(explicitPath) != "" {
		expanded, err := ExpandPath(explicitPath)
		if err != nil {
			return "", false, err
		}
		_, statErr := os.Stat(expanded)
		if statErr == nil {
			return expanded, true, nil
		}
		return expanded, false, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err == nil {
		if _, statErr := os.Stat(defaultPath); statErr == nil {
			return defaultPath, true, nil
		}
	}

	if _, statErr := os.Stat("scenepipe.toml"); statErr == nil {
		abs, absErr := filepath.Abs("scenepipe.toml")
		if absErr != nil {
			return "scenepipe.toml", true, nil
		}
		return abs, true, nil
	}

	if defaultPath != "" {
		return defaultPath, false, nil
	}
	return "scenepipe.toml", false, nil
}

// ExpandPath expands a leading "~" to the user's home directory and
// resolves the result to an absolute path.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", path, err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return abs, nil
}

// EnsureDirectories creates the directories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.InboxDir, c.Paths.ProjectsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ProjectDir returns the directory a project's SRT and workbook live in.
func (c *Config) ProjectDir(code string) string {
	return filepath.Join(c.Paths.ProjectsDir, code)
}

// SRTPath returns the expected input SRT path for a project.
func (c *Config) SRTPath(code string) string {
	return filepath.Join(c.ProjectDir(code), code+".srt")
}

// WorkbookPath returns the expected workbook path for a project.
func (c *Config) WorkbookPath(code string) string {
	return filepath.Join(c.ProjectDir(code), code+"_prompts.xlsx")
}

// InboxProjectDir returns the inbox drop directory for a project code.
func (c *Config) InboxProjectDir(code string) string {
	return filepath.Join(c.Paths.InboxDir, code)
}
