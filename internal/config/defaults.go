package config

const (
	defaultInboxDir    = "~/scenepipe/inbox"
	defaultProjectsDir = "~/scenepipe/PROJECTS"
	defaultLogDir      = "~/scenepipe/logs"

	defaultLLMEndpoint              = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel                 = "gpt-4o-mini"
	defaultLLMRequestTimeoutSeconds = 120
	defaultLLMRetryMax              = 15
	defaultLLMRetryBaseSeconds      = 3

	defaultMaxParallelAPI  = 10
	defaultStage6BatchSize = 15
	defaultStage7BatchSize = 10
	defaultVideoMode       = "basic"

	defaultScanIntervalSeconds = 60

	defaultLogLevel         = "info"
	defaultLogFormat        = "console"
	defaultLogRetentionDays = 14
)

// Default returns a Config populated with the pipeline's baseline
// tunables (spec.md §6 "Configuration").
func Default() Config {
	return Config{
		Paths: Paths{
			InboxDir:    defaultInboxDir,
			ProjectsDir: defaultProjectsDir,
			LogDir:      defaultLogDir,
		},
		LLM: LLM{
			Endpoint:              defaultLLMEndpoint,
			Model:                 defaultLLMModel,
			APIKeys:               nil,
			RequestTimeoutSeconds: defaultLLMRequestTimeoutSeconds,
			RetryMax:              defaultLLMRetryMax,
			RetryBaseSeconds:      defaultLLMRetryBaseSeconds,
		},
		Pipeline: Pipeline{
			MaxParallelAPI:  defaultMaxParallelAPI,
			Stage6BatchSize: defaultStage6BatchSize,
			Stage7BatchSize: defaultStage7BatchSize,
			VideoMode:       defaultVideoMode,
		},
		Loop: Loop{
			ScanIntervalSeconds: defaultScanIntervalSeconds,
		},
		Logging: Logging{
			Level:         defaultLogLevel,
			Format:        defaultLogFormat,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
