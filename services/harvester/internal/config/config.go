package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location, relative to the working directory.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	// BridgeURL points at the protocol bridge sidecar that owns the actual
	// chat-network sessions.
	BridgeURL   string `yaml:"bridgeURL"`
	BridgeToken string `yaml:"bridgeToken"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	// RabbitURL enables the live-feed consumer when set.
	RabbitURL string `yaml:"rabbitURL"`

	InternalToken string `yaml:"internalToken"`

	StagingDir  string `yaml:"stagingDir"`
	ExportRoot  string `yaml:"exportRoot"`
	SessionsDir string `yaml:"sessionsDir"`

	AIProvider       string `yaml:"aiProvider"`
	GeminiAPIKey     string `yaml:"geminiAPIKey"`
	GeminiEmbedModel string `yaml:"geminiEmbedModel"`
	GeminiChatModel  string `yaml:"geminiChatModel"`
	OllamaURL        string `yaml:"ollamaURL"`
	OllamaEmbedModel string `yaml:"ollamaEmbedModel"`
	OllamaChatModel  string `yaml:"ollamaChatModel"`

	BroadcastDelayMinSeconds int `yaml:"broadcastDelayMinSeconds"`
	BroadcastDelayMaxSeconds int `yaml:"broadcastDelayMaxSeconds"`

	SummaryLineThreshold int     `yaml:"summaryLineThreshold"`
	SummaryPrefixLimit   int     `yaml:"summaryPrefixLimit"`
	SummaryKeepFraction  float64 `yaml:"summaryKeepFraction"`
	SummaryKeepFloor     int     `yaml:"summaryKeepFloor"`
	SummaryTailFallback  int     `yaml:"summaryTailFallback"`
	SummaryMaxMessages   int     `yaml:"summaryMaxMessages"`

	AutoDumpEnabled  bool   `yaml:"autoDumpEnabled"`
	AutoDumpSchedule string `yaml:"autoDumpSchedule"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		cfg.RabbitURL = v
	}
	if v := os.Getenv("CHAT_BRIDGE_URL"); v != "" {
		cfg.BridgeURL = v
	}
	if v := os.Getenv("CHATVAULT_INTERNAL_TOKEN"); v != "" {
		cfg.InternalToken = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.OllamaURL = v
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}
	if cfg.BroadcastDelayMinSeconds <= 0 {
		cfg.BroadcastDelayMinSeconds = 2
	}
	if cfg.BroadcastDelayMaxSeconds < cfg.BroadcastDelayMinSeconds {
		cfg.BroadcastDelayMaxSeconds = cfg.BroadcastDelayMinSeconds + 3
	}
	if cfg.SummaryLineThreshold <= 0 {
		cfg.SummaryLineThreshold = 200
	}
	if cfg.SummaryPrefixLimit <= 0 {
		cfg.SummaryPrefixLimit = 500
	}
	if cfg.SummaryKeepFraction <= 0 {
		cfg.SummaryKeepFraction = 0.3
	}
	if cfg.SummaryKeepFloor <= 0 {
		cfg.SummaryKeepFloor = 30
	}
	if cfg.SummaryTailFallback <= 0 {
		cfg.SummaryTailFallback = 150
	}
	if cfg.SummaryMaxMessages <= 0 {
		cfg.SummaryMaxMessages = 2000
	}
	if cfg.AutoDumpSchedule == "" {
		cfg.AutoDumpSchedule = "@daily"
	}
	if cfg.AIProvider == "" {
		cfg.AIProvider = "gemini"
	}
	if cfg.BridgeToken == "" {
		cfg.BridgeToken = cfg.InternalToken
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml)")
	}
	if cfg.MinioEndpoint == "" {
		return errors.New("config: minioEndpoint is required (set in config.yaml)")
	}
	if cfg.MinioAccessKey == "" {
		return errors.New("config: minioAccessKey is required (set in config.yaml)")
	}
	if cfg.MinioSecretKey == "" {
		return errors.New("config: minioSecretKey is required (set in config.yaml)")
	}
	if cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required (set in config.yaml)")
	}
	if cfg.InternalToken == "" {
		return errors.New("config: internalToken is required (set in config.yaml or CHATVAULT_INTERNAL_TOKEN)")
	}
	if cfg.BridgeURL == "" {
		return errors.New("config: bridgeURL is required (set in config.yaml or CHAT_BRIDGE_URL)")
	}
	switch cfg.AIProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return errors.New("config: geminiAPIKey is required for aiProvider=gemini (set in config.yaml or GEMINI_API_KEY)")
		}
	case "ollama":
	default:
		return fmt.Errorf("config: unknown aiProvider %q (want gemini or ollama)", cfg.AIProvider)
	}
	return nil
}
