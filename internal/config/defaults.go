package config

const (
	defaultDataDir             = "~/.local/share/demodrop"
	defaultLogDir              = "~/.local/share/demodrop/logs"
	defaultBucket              = "demos"
	defaultMaxFileMiB          = 50
	defaultFetchTimeoutSecs    = 60
	defaultMaxDeliveryAttempts = 5
	defaultRetryBackoffSecs    = 30
	defaultEmailEndpoint       = "https://api.resend.com/emails"
	defaultEmailFrom           = "Demo Portal <submissions@demodrop.dev>"
	defaultEmailTimeout        = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Storage: Storage{
			Bucket: defaultBucket,
		},
		Uploads: Uploads{
			MaxFileMiB: defaultMaxFileMiB,
		},
		Pipeline: Pipeline{
			FetchTimeoutSeconds: defaultFetchTimeoutSecs,
			MaxDeliveryAttempts: defaultMaxDeliveryAttempts,
			RetryBackoffSeconds: defaultRetryBackoffSecs,
		},
		Email: Email{
			Endpoint:       defaultEmailEndpoint,
			From:           defaultEmailFrom,
			RequestTimeout: defaultEmailTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
