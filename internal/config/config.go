// Package config provides configuration management for ScenePilot.
// It loads settings from environment variables with the SCENEPILOT_ prefix
// and provides sensible defaults for all configuration options.
//
// An optional YAML file named by SCENEPILOT_CONFIG supplies values for keys
// the environment leaves unset; environment variables always win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Model tier constants name the routing tiers requests are issued under.
const (
	TierGeneral        = "general"
	TierClassification = "classification"
	TierPlanning       = "planning"
	TierCode           = "code"
)

// Config holds all configuration settings for the ScenePilot sidecar.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Models   ModelsConfig
	Pipeline PipelineConfig
	Security SecurityConfig
	Backup   BackupConfig
	Scene    SceneConfig
	Logging  LoggingConfig
}

// ServerConfig contains HTTP bridge configuration.
type ServerConfig struct {
	Port int    // Bridge port (default: 6464)
	Host string // Bridge host (default: 127.0.0.1)
}

// StorageConfig contains transcript store configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: sqlite, postgres (default: sqlite)
	DataPath      string // Path to data directory (default: ./data)
	PostgresDSN   string // Connection string when the engine is postgres
}

// LLMConfig contains model gateway configuration.
type LLMConfig struct {
	Provider         string        // LLM provider: openai, anthropic, ollama (default: openai)
	OpenAIAPIKey     string        // OpenAI API key (falls back to OPENAI_API_KEY)
	OpenAIBaseURL    string        // OpenAI-compatible base URL (falls back to OPENAI_BASE_URL)
	AnthropicAPIKey  string        // Anthropic API key
	AnthropicBaseURL string        // Anthropic base URL override
	OllamaURL        string        // Ollama API URL (default: http://localhost:11434)
	RequestTimeout   time.Duration // Per-request timeout (default: 30s)
	PlanningTimeout  time.Duration // Timeout for plan creation requests (default: 45s)
	MaxConcurrent    int           // Concurrent in-flight request ceiling (default: 3)
	RequestsPerMin   int           // Gateway rate limit in requests per minute (default: 60)
	EnableCaching    bool          // Whether successful completions are cached (default: true)
	CacheTTL         time.Duration // Response cache entry lifetime (default: 5m)
	CacheSize        int           // Response cache entry cap (default: 256)
}

// ModelsConfig contains per-tier model routing.
type ModelsConfig struct {
	General        string // Model for question answering (default: gpt-4o-mini)
	Classification string // Model for intent classification (default: gpt-4o-mini)
	Planning       string // Model for plan creation (default: gpt-4)
	Code           string // Model for code generation (default: gpt-4)
	UseCustomModel bool   // When true, CustomModel overrides every tier
	CustomModel    string // Single model used for all tiers when enabled
}

// PipelineConfig contains orchestration pipeline tunables.
type PipelineConfig struct {
	Temperature             float64       // Sampling temperature for general and code requests (default: 0.7)
	MaxTokens               int           // Completion ceiling for general and code requests (default: 1500)
	MemoryTurns             int           // Conversation memory capacity in turns (default: 50)
	MaxInputLength          int           // Longest accepted user input in characters (default: 5000)
	EnableMultiStep         bool          // Whether complex tasks are decomposed into plans (default: true)
	ClassificationCacheSize int           // Classification cache entry cap (default: 512)
	ClassificationCacheTTL  time.Duration // Classification cache entry lifetime (default: 5m)
	PlanTTL                 time.Duration // Stored plan lifetime (default: 30m)
	PlanCapacity            int           // Stored plan cap per session (default: 64)
	ClarificationTTL        time.Duration // Open clarification lifetime (default: 10m)
	ClarificationCapacity   int           // Open clarification cap (default: 32)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // Bridge authentication token
}

// BackupConfig contains transcript database backup configuration.
type BackupConfig struct {
	BackupEnabled          bool   // Enable automatic backups (default: false)
	BackupInterval         string // Backup interval duration (default: 24h)
	BackupPath             string // Path to backup directory (default: ./backups)
	BackupVerify           bool   // Verify backups after creation (default: true)
	BackupRetentionHourly  int    // Number of hourly backups to keep (default: 24)
	BackupRetentionDaily   int    // Number of daily backups to keep (default: 7)
	BackupRetentionWeekly  int    // Number of weekly backups to keep (default: 4)
	BackupRetentionMonthly int    // Number of monthly backups to keep (default: 12)
}

// SceneConfig contains scene snapshot exchange settings.
type SceneConfig struct {
	WatchEnabled bool   // Watch the snapshot drop-box directory (default: true)
	SnapshotDir  string // Drop-box directory (default: <data>/scene)
}

// LoggingConfig contains logger construction settings.
type LoggingConfig struct {
	Level       string // Log level: debug, info, warn, error (default: info)
	Development bool   // Use the human-readable development encoder (default: false)
}

// fileValues holds the YAML config file contents: a flat map of the same
// SCENEPILOT_* keys the environment uses.
var fileValues map[string]string

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the SCENEPILOT_ prefix. When
// SCENEPILOT_CONFIG names a YAML file, its values fill keys the environment
// leaves unset.
func LoadConfig() (*Config, error) {
	if path := os.Getenv("SCENEPILOT_CONFIG"); path != "" {
		values, err := loadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to load config file %s: %w", path, err)
		}
		fileValues = values
	} else {
		fileValues = nil
	}

	dataPath := getEnv("SCENEPILOT_DATA_PATH", "./data")

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("SCENEPILOT_PORT", 6464),
			Host: getEnv("SCENEPILOT_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("SCENEPILOT_STORAGE_ENGINE", "sqlite"),
			DataPath:      dataPath,
			PostgresDSN:   getEnv("SCENEPILOT_POSTGRES_DSN", ""),
		},
		LLM: LLMConfig{
			Provider:         getEnv("SCENEPILOT_LLM_PROVIDER", "openai"),
			OpenAIAPIKey:     getEnv("SCENEPILOT_OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY")),
			OpenAIBaseURL:    getEnv("SCENEPILOT_OPENAI_BASE_URL", os.Getenv("OPENAI_BASE_URL")),
			AnthropicAPIKey:  getEnv("SCENEPILOT_ANTHROPIC_API_KEY", ""),
			AnthropicBaseURL: getEnv("SCENEPILOT_ANTHROPIC_BASE_URL", ""),
			OllamaURL:        getEnv("SCENEPILOT_OLLAMA_URL", "http://localhost:11434"),
			RequestTimeout:   getEnvDuration("SCENEPILOT_API_TIMEOUT", 30*time.Second),
			PlanningTimeout:  getEnvDuration("SCENEPILOT_PLANNING_TIMEOUT", 45*time.Second),
			MaxConcurrent:    getEnvInt("SCENEPILOT_MAX_CONCURRENT_REQUESTS", 3),
			RequestsPerMin:   getEnvInt("SCENEPILOT_REQUESTS_PER_MINUTE", 60),
			EnableCaching:    getEnvBool("SCENEPILOT_ENABLE_CACHING", true),
			CacheTTL:         getEnvDuration("SCENEPILOT_CACHE_TTL", 5*time.Minute),
			CacheSize:        getEnvInt("SCENEPILOT_CACHE_SIZE", 256),
		},
		Models: ModelsConfig{
			General:        getEnv("SCENEPILOT_MODEL_GENERAL", "gpt-4o-mini"),
			Classification: getEnv("SCENEPILOT_MODEL_CLASSIFICATION", "gpt-4o-mini"),
			Planning:       getEnv("SCENEPILOT_MODEL_PLANNING", "gpt-4"),
			Code:           getEnv("SCENEPILOT_MODEL_CODE", "gpt-4"),
			UseCustomModel: getEnvBool("SCENEPILOT_USE_CUSTOM_MODEL", false),
			CustomModel:    getEnv("SCENEPILOT_CUSTOM_MODEL", ""),
		},
		Pipeline: PipelineConfig{
			Temperature:             getEnvFloat("SCENEPILOT_TEMPERATURE", 0.7),
			MaxTokens:               getEnvInt("SCENEPILOT_MAX_TOKENS", 1500),
			MemoryTurns:             getEnvInt("SCENEPILOT_MEMORY_TURNS", 50),
			MaxInputLength:          getEnvInt("SCENEPILOT_MAX_INPUT_LENGTH", 5000),
			EnableMultiStep:         getEnvBool("SCENEPILOT_ENABLE_MULTI_STEP", true),
			ClassificationCacheSize: getEnvInt("SCENEPILOT_CLASSIFICATION_CACHE_SIZE", 512),
			ClassificationCacheTTL:  getEnvDuration("SCENEPILOT_CLASSIFICATION_CACHE_TTL", 5*time.Minute),
			PlanTTL:                 getEnvDuration("SCENEPILOT_PLAN_TTL", 30*time.Minute),
			PlanCapacity:            getEnvInt("SCENEPILOT_PLAN_CAPACITY", 64),
			ClarificationTTL:        getEnvDuration("SCENEPILOT_CLARIFICATION_TTL", 10*time.Minute),
			ClarificationCapacity:   getEnvInt("SCENEPILOT_CLARIFICATION_CAPACITY", 32),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("SCENEPILOT_SECURITY_MODE", "development"),
			APIToken:     getEnv("SCENEPILOT_API_TOKEN", ""),
		},
		Backup: BackupConfig{
			BackupEnabled:          getEnvBool("SCENEPILOT_BACKUP_ENABLED", false),
			BackupInterval:         getEnv("SCENEPILOT_BACKUP_INTERVAL", "24h"),
			BackupPath:             getEnv("SCENEPILOT_BACKUP_PATH", "./backups"),
			BackupVerify:           getEnvBool("SCENEPILOT_BACKUP_VERIFY", true),
			BackupRetentionHourly:  getEnvInt("SCENEPILOT_BACKUP_RETENTION_HOURLY", 24),
			BackupRetentionDaily:   getEnvInt("SCENEPILOT_BACKUP_RETENTION_DAILY", 7),
			BackupRetentionWeekly:  getEnvInt("SCENEPILOT_BACKUP_RETENTION_WEEKLY", 4),
			BackupRetentionMonthly: getEnvInt("SCENEPILOT_BACKUP_RETENTION_MONTHLY", 12),
		},
		Scene: SceneConfig{
			WatchEnabled: getEnvBool("SCENEPILOT_SCENE_WATCH", true),
			SnapshotDir:  getEnv("SCENEPILOT_SCENE_DIR", dataPath+"/scene"),
		},
		Logging: LoggingConfig{
			Level:       getEnv("SCENEPILOT_LOG_LEVEL", "info"),
			Development: getEnvBool("SCENEPILOT_LOG_DEV", false),
		},
	}

	return cfg, nil
}

// Validate checks the configuration for values that would prevent startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	switch c.Storage.StorageEngine {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.StorageEngine)
	}
	if c.Storage.StorageEngine == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: postgres storage engine requires SCENEPILOT_POSTGRES_DSN")
	}
	switch c.LLM.Provider {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("config: unknown LLM provider %q", c.LLM.Provider)
	}
	if c.Security.SecurityMode == "production" && c.Security.APIToken == "" {
		return fmt.Errorf("config: production mode requires SCENEPILOT_API_TOKEN")
	}
	if c.Pipeline.MaxInputLength < 1 {
		return fmt.Errorf("config: max input length must be positive")
	}
	if c.LLM.MaxConcurrent < 1 {
		return fmt.Errorf("config: max concurrent requests must be positive")
	}
	return nil
}

// ModelForTier returns the configured model for a routing tier. A custom
// model override, when enabled, wins for every tier. Unknown tiers fall back
// to the general model.
func (c *Config) ModelForTier(tier string) string {
	if c.Models.UseCustomModel && c.Models.CustomModel != "" {
		return c.Models.CustomModel
	}
	switch tier {
	case TierClassification:
		return c.Models.Classification
	case TierPlanning:
		return c.Models.Planning
	case TierCode:
		return c.Models.Code
	default:
		return c.Models.General
	}
}

// loadConfigFile reads a flat YAML map of SCENEPILOT_* keys.
func loadConfigFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// getEnv retrieves a string setting from the environment, then the config
// file, then the default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := fileValues[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer setting or returns a default value.
// Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float setting or returns a default value.
// Unparseable values fall back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := getEnv(key, ""); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean setting or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false.
// Unparseable values fall back to the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration setting or returns a default value.
// Accepts Go duration strings ("30s", "5m") and bare integers as seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := getEnv(key, ""); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
