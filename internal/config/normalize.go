package config

import (
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.InboxDir, err = ExpandPath(c.Paths.InboxDir); err != nil {
		return err
	}
	if c.Paths.ProjectsDir, err = ExpandPath(c.Paths.ProjectsDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return err
	}
	return nil
}

// normalizeLLM applies the LLM_API_KEY(S) environment fallback, mirroring
// the teacher's TMDB_API_KEY / JELLYFIN_API_KEY pattern: a key configured
// in the TOML file always wins, the environment only fills a gap.
func (c *Config) normalizeLLM() {
	c.LLM.Endpoint = strings.TrimSpace(c.LLM.Endpoint)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)

	if len(c.LLM.APIKeys) == 0 {
		if value, ok := os.LookupEnv("SCENEPIPE_LLM_API_KEYS"); ok {
			c.LLM.APIKeys = splitAndTrim(value, ",")
		} else if value, ok := os.LookupEnv("SCENEPIPE_LLM_API_KEY"); ok {
			c.LLM.APIKeys = []string{strings.TrimSpace(value)}
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKeys = []string{strings.TrimSpace(value)}
		}
	}

	keys := make([]string, 0, len(c.LLM.APIKeys))
	for _, key := range c.LLM.APIKeys {
		trimmed := strings.TrimSpace(key)
		if trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	c.LLM.APIKeys = keys

	if c.LLM.RequestTimeoutSeconds <= 0 {
		c.LLM.RequestTimeoutSeconds = defaultLLMRequestTimeoutSeconds
	}
	if c.LLM.RetryMax <= 0 {
		c.LLM.RetryMax = defaultLLMRetryMax
	}
	if c.LLM.RetryBaseSeconds <= 0 {
		c.LLM.RetryBaseSeconds = defaultLLMRetryBaseSeconds
	}
}

func (c *Config) normalizePipeline() {
	c.Pipeline.VideoMode = strings.ToLower(strings.TrimSpace(c.Pipeline.VideoMode))
	if c.Pipeline.VideoMode == "" {
		c.Pipeline.VideoMode = defaultVideoMode
	}
	if c.Pipeline.MaxParallelAPI <= 0 {
		c.Pipeline.MaxParallelAPI = defaultMaxParallelAPI
	}
	if c.Pipeline.Stage6BatchSize <= 0 {
		c.Pipeline.Stage6BatchSize = defaultStage6BatchSize
	}
	if c.Pipeline.Stage7BatchSize <= 0 {
		c.Pipeline.Stage7BatchSize = defaultStage7BatchSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func splitAndTrim(value, sep string) []string {
	parts := strings.Split(value, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
