// Package config loads server configuration from environment variables and
// optional operator-authored workflow definition files.
package config

import "os"

// Config holds server configuration.
type Config struct {
	Port     string
	LogLevel string

	DataDir      string
	ArtifactsDir string
	WorkflowsDir string

	MasterKey string

	ConnectorURL    string
	ConnectorAPIKey string

	WebhookURL       string
	WebhookSecret    string
	NotifyOnComplete bool

	TTSProvider string
	TTSVoice    string
	TTSAPIKey   string

	PresetDefaults map[string]string
	DefaultPreset  string

	OTLPEndpoint string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:     getenv("PORT", "8080"),
		LogLevel: getenv("LOG_LEVEL", "INFO"),

		DataDir:      getenv("DATA_DIR", "/data"),
		ArtifactsDir: getenv("ARTIFACTS_DIR", "/data/artifacts"),
		WorkflowsDir: os.Getenv("WORKFLOWS_DIR"),

		MasterKey: os.Getenv("MASTER_KEY"),

		ConnectorURL:    os.Getenv("MCP_RUBE_URL"),
		ConnectorAPIKey: os.Getenv("MCP_RUBE_API_KEY"),

		WebhookURL:       os.Getenv("WEBHOOK_URL"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		NotifyOnComplete: getenv("NOTIFY_ON_COMPLETE", "true") == "true",

		TTSProvider: getenv("TTS_PROVIDER", "none"),
		TTSVoice:    os.Getenv("TTS_VOICE"),
		TTSAPIKey:   os.Getenv("TTS_API_KEY"),

		PresetDefaults: map[string]string{
			"quality": getenv("MODEL_PRESET_QUALITY", "glm-quality"),
			"main":    getenv("MODEL_PRESET_MAIN", "glm-main"),
			"fast":    getenv("MODEL_PRESET_FAST", "glm-fast"),
			"long":    getenv("MODEL_PRESET_LONG", "glm-long"),
		},
		DefaultPreset: getenv("DEFAULT_MODEL_PRESET", "quality"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
