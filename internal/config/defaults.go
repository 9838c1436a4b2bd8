package config

const (
	defaultDataDir                   = "~/.local/share/easel"
	defaultLogDir                    = "~/.local/share/easel/logs"
	defaultAPIBind                   = "127.0.0.1:7981"
	defaultBackendTimeoutSeconds     = 15
	defaultQueueEnabled              = true
	defaultQueuePollInterval         = 5
	defaultInterItemDelayMillis      = 1000
	defaultCompletedRetentionSeconds = 30
	defaultFailedRetentionSeconds    = 10
	defaultNotifyRequestTimeout      = 10
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Backend: Backend{
			TimeoutSeconds: defaultBackendTimeoutSeconds,
		},
		Queue: Queue{
			Enabled:                   defaultQueueEnabled,
			PollIntervalSeconds:       defaultQueuePollInterval,
			InterItemDelayMillis:      defaultInterItemDelayMillis,
			CompletedRetentionSeconds: defaultCompletedRetentionSeconds,
			FailedRetentionSeconds:    defaultFailedRetentionSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completions:    true,
			Failures:       true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
