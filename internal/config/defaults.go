package config

const (
	defaultDataDir            = "~/.local/share/lumina"
	defaultLogDir             = "~/.local/share/lumina/logs"
	defaultAPIBind            = "127.0.0.1:8674"
	defaultWorkers            = 2
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultThumbnailMaxEdge   = 768
	defaultThumbnailQuality   = 85
	defaultMaxAttempts        = 3
	defaultGeocodingBaseURL   = "https://nominatim.openstreetmap.org"
	defaultGeocodingLanguage  = "en"
	defaultGeocodingTimeout   = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Pipeline: Pipeline{
			ThumbnailMaxEdge: defaultThumbnailMaxEdge,
			ThumbnailQuality: defaultThumbnailQuality,
			MaxAttempts:      defaultMaxAttempts,
		},
		Geocoding: Geocoding{
			Enabled:        true,
			BaseURL:        defaultGeocodingBaseURL,
			Language:       defaultGeocodingLanguage,
			RequestTimeout: defaultGeocodingTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
