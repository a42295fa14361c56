package config

const (
	defaultStateDir          = "~/.local/share/cdbs"
	defaultLogDirName        = "logs"
	defaultRequestTimeout    = 30
	defaultMaxConcurrent     = 4
	defaultMaxFiles          = 1000
	defaultTransferTimeout   = 0
	defaultHistoryEnabled    = true
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
	tokenEnvVar              = "CDBS_API_TOKEN"
	endpointEnvVar           = "CDBS_API_ENDPOINT"
	maxConcurrentUpperBound  = 64
	maxFilesUpperBound       = 10000
	maxRequestTimeoutSeconds = 3600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		API: API{
			RequestTimeout: defaultRequestTimeout,
		},
		Upload: Upload{
			MaxConcurrent:   defaultMaxConcurrent,
			MaxFiles:        defaultMaxFiles,
			TransferTimeout: defaultTransferTimeout,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
