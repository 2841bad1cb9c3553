package config

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

// DefaultSystemPrompt is the sales persona used when config.json sets none.
const DefaultSystemPrompt = `You are a friendly and knowledgeable sales agent for an automotive product company.
Your goal is to help customers find the right products for their needs and recommend suitable items.

When a customer asks about products:
1. Use the search_products tool to find relevant items
2. Check inventory with get_current_inventory if needed
3. Provide friendly recommendations with product details and prices
4. Suggest complementary products when appropriate

Be helpful, professional, and focus on genuinely matching customer needs.`

// Config defines the business-level application configuration.
// It maps directly to config.json.
type Config struct {
	// Channels maps channel identifiers ("web", "telegram") to their raw
	// configuration payloads.
	Channels map[string]jsoniter.RawMessage `json:"channels"`
	// LLM holds the reasoning-engine provider groups in raw JSON.
	LLM jsoniter.RawMessage `json:"llm"`
	// Catalog selects and configures the product catalog store.
	Catalog CatalogConfig `json:"catalog"`
	// Inventory configures the spreadsheet-backed inventory endpoint.
	Inventory InventoryConfig `json:"inventory"`
	// Embedding selects the query embedding function.
	Embedding EmbeddingConfig `json:"embedding"`
	// SystemPrompt is the fixed instruction sent with every reasoning call.
	SystemPrompt string `json:"system_prompt"`
}

// CatalogConfig selects the catalog store backend.
type CatalogConfig struct {
	// Type is one of "sqlite", "qdrant" or "firestore". Empty or "none"
	// leaves search on the fallback sample set.
	Type string `json:"type"`
	// Path is the SQLite database file.
	Path string `json:"path,omitempty"`
	// URL and APIKey address a Qdrant cluster.
	URL    string `json:"url,omitempty"`
	APIKey string `json:"api_key,omitempty"`
	// Collection is the Qdrant collection or Firestore collection name.
	Collection string `json:"collection,omitempty"`
	// ProjectID and Database address a Firestore database.
	ProjectID string `json:"project_id,omitempty"`
	Database  string `json:"database,omitempty"`
	// Limit caps how many entries one listing returns (Qdrant scroll size).
	Limit int `json:"limit,omitempty"`
}

// InventoryConfig addresses the inventory web-app endpoint.
type InventoryConfig struct {
	URL               string  `json:"url"`
	Token             string  `json:"token"`
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
	Burst             int     `json:"burst,omitempty"`
}

// EmbeddingConfig selects the query embedder.
type EmbeddingConfig struct {
	// Provider is "hash" (default) or "ollama".
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// Validate ensures the configuration contains all mandatory fields.
func (c *Config) Validate() error {
	if len(c.LLM) == 0 {
		return fmt.Errorf("mandatory 'llm' configuration is missing or empty")
	}
	switch c.Catalog.Type {
	case "", "none", "sqlite", "qdrant", "firestore":
	default:
		return fmt.Errorf("unknown catalog type %q", c.Catalog.Type)
	}
	switch c.Embedding.Provider {
	case "", "hash", "ollama":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	return nil
}

// SystemConfig defines engine-level technical parameters, stored in system.json.
type SystemConfig struct {
	// MaxIterations bounds the reasoning/tool loop of one run.
	MaxIterations int `json:"max_iterations"`
	// MaxRetries is how many times a provider is retried on a transient
	// error when opening a stream.
	MaxRetries int `json:"max_retries"`
	// RetryDelayMs is the base delay between provider retries.
	RetryDelayMs int `json:"retry_delay_ms"`
	// LLMTimeoutMs is the hard cutoff for a single reasoning call.
	LLMTimeoutMs int `json:"llm_timeout_ms"`
	// ToolTimeoutMs is the deadline passed into each tool dispatch.
	ToolTimeoutMs int `json:"tool_timeout_ms"`
	// EmbeddingDimensions is the fixed vector length of catalog and query embeddings.
	EmbeddingDimensions int `json:"embedding_dimensions"`
	// OllamaDefaultURL is used when an Ollama group or embedder has no base_url.
	OllamaDefaultURL string `json:"ollama_default_url"`
	// InternalChannelBuffer sizes the stream chunk channels.
	InternalChannelBuffer int `json:"internal_channel_buffer"`
	// TelegramMessageLimit is the maximum characters per Telegram message.
	TelegramMessageLimit int `json:"telegram_message_limit"`
	// DebugChunks saves every raw provider chunk under debug/.
	DebugChunks bool `json:"debug_chunks"`
	// LogLevel is "debug", "info", "warn" or "error".
	LogLevel string `json:"log_level"`
	// EnableTools toggles tool calling; without tools the model answers directly.
	EnableTools bool `json:"enable_tools"`
}

// DefaultSystemConfig returns safe defaults, used when system.json is
// missing or corrupt.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxIterations:         10,
		MaxRetries:            3,
		RetryDelayMs:          500,
		LLMTimeoutMs:          120000,
		ToolTimeoutMs:         15000,
		EmbeddingDimensions:   1536,
		OllamaDefaultURL:      "http://localhost:11434",
		InternalChannelBuffer: 100,
		TelegramMessageLimit:  4000,
		LogLevel:              "info",
		EnableTools:           true,
	}
}

// Load reads the app config (mandatory) and the system config (optional,
// defaults on failure). Secrets in the environment override file values.
func Load(appPath, systemPath string) (*Config, *SystemConfig, error) {
	if _, err := os.Stat(appPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("config file '%s' not found. please create one", appPath)
	}

	appFile, err := os.ReadFile(appPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(appFile, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)

	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, LoadSystemConfig(systemPath), nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("INVENTORY_URL"); v != "" {
		cfg.Inventory.URL = v
	}
	if v := os.Getenv("INVENTORY_TOKEN"); v != "" {
		cfg.Inventory.Token = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.Catalog.APIKey = v
	}
}

// LoadSystemConfig loads system settings, returning defaults if it fails.
func LoadSystemConfig(path string) *SystemConfig {
	cfg, err := ReadSystemConfig(path)
	if err != nil {
		return DefaultSystemConfig()
	}
	return cfg
}

// ReadSystemConfig parses path over the defaults. Values missing from the
// file keep their defaults.
func ReadSystemConfig(path string) (*SystemConfig, error) {
	cfg := DefaultSystemConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read system config: %w", err)
	}

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse system config: %w", err)
	}

	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = 1536
	}

	return cfg, nil
}
