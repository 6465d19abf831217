// Package config loads the article agent configuration: a YAML file merged
// over built-in defaults, then environment overrides.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/article-agent/internal/curation"
	"github.com/jonathan/article-agent/internal/llm"
	"github.com/jonathan/article-agent/internal/research"
	"github.com/jonathan/article-agent/internal/retrieval"
	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/workflow"
)

//go:embed default.yaml
var defaultYAML []byte

// Store backends
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config is the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	Curation  CurationConfig  `yaml:"curation"`
	Research  ResearchConfig  `yaml:"research"`
	Vocab     VocabConfig     `yaml:"vocab"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Channels  []ChannelSeed   `yaml:"channels" validate:"dive"`
	Assets    []AssetSeed     `yaml:"assets" validate:"dive"`
}

// StoreConfig selects where tasks and the catalog live. With sqlite only
// tasks are persisted; the catalog is seeded from Channels and Assets.
type StoreConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=postgres sqlite memory"`
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
}

// WorkflowConfig tunes the controller.
type WorkflowConfig struct {
	CheckpointSteps []int                `yaml:"checkpoint_steps" validate:"dive,min=1,max=9"`
	Retry           workflow.RetryPolicy `yaml:"retry"`
	PollInterval    time.Duration        `yaml:"poll_interval"`
}

// CurationConfig holds the curator thresholds and the noise pattern set.
type CurationConfig struct {
	curation.Options `yaml:",inline"`
	NoisePatterns    []string `yaml:"noise_patterns"`
	RetrievalK       int      `yaml:"retrieval_k" validate:"min=1,max=100"`
}

// Research providers
const (
	ResearchTavily = "tavily"
	ResearchGoogle = "google"
	ResearchNone   = "none"
)

// ResearchConfig selects the web search provider used by step 2.
type ResearchConfig struct {
	research.Options `yaml:",inline"`
	Provider         string `yaml:"provider" validate:"oneof=tavily google none"`
	TavilyAPIKey     string `yaml:"tavily_api_key"`
	GoogleAPIKey     string `yaml:"google_api_key"`
	GoogleCX         string `yaml:"google_cx"`
}

// VocabConfig locates the blocked-phrase list. File wins over the brand asset.
type VocabConfig struct {
	File     string `yaml:"file"`
	AssetKey string `yaml:"asset_key"`
}

// LLMConfig selects the generation provider. Models maps a tier
// (lite, standard, advanced) to a model name.
type LLMConfig struct {
	Provider string            `yaml:"provider" validate:"oneof=gemini openai anthropic ollama stub"`
	Models   map[string]string `yaml:"models"`
	BaseURL  string            `yaml:"base_url"`
	APIKey   string            `yaml:"api_key"`
}

// EmbeddingConfig configures material embeddings. An empty provider
// disables vector search.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" validate:"omitempty,oneof=ollama openai none"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension" validate:"min=0"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// LoggingConfig configures slog output. File adds a JSON handler.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	File  string `yaml:"file"`
}

// ChannelSeed is a channel declared in the config file. Seeds are created
// at startup when their slug is not yet known.
type ChannelSeed struct {
	Slug             string   `yaml:"slug" validate:"required,max=50"`
	Name             string   `yaml:"name" validate:"required,max=100"`
	Description      string   `yaml:"description"`
	TargetAudience   string   `yaml:"target_audience"`
	BrandPersonality string   `yaml:"brand_personality"`
	Role             string   `yaml:"role"`
	WritingStyle     []string `yaml:"writing_style"`
	PreferredTone    []string `yaml:"preferred_tone"`
	ForbiddenTone    []string `yaml:"forbidden_tone"`
	MustDo           []string `yaml:"must_do"`
	MustNotDo        []string `yaml:"must_not_do"`
	BlockedPhrases   []string `yaml:"blocked_phrases"`
	MaterialTags     []string `yaml:"material_tags"`
}

// Channel converts the seed into an active channel.
func (s ChannelSeed) Channel() *types.Channel {
	return &types.Channel{
		Slug:             s.Slug,
		Name:             s.Name,
		Description:      s.Description,
		TargetAudience:   s.TargetAudience,
		BrandPersonality: s.BrandPersonality,
		Role:             s.Role,
		WritingStyle:     types.CloneStrings(s.WritingStyle),
		PreferredTone:    types.CloneStrings(s.PreferredTone),
		ForbiddenTone:    types.CloneStrings(s.ForbiddenTone),
		MustDo:           types.CloneStrings(s.MustDo),
		MustNotDo:        types.CloneStrings(s.MustNotDo),
		BlockedPhrases:   types.CloneStrings(s.BlockedPhrases),
		MaterialTags:     types.CloneStrings(s.MaterialTags),
		IsActive:         true,
	}
}

// AssetSeed is a brand asset declared inline or read from a file.
type AssetSeed struct {
	Key         string `yaml:"key" validate:"required,max=100"`
	Content     string `yaml:"content"`
	File        string `yaml:"file"`
	ContentType string `yaml:"content_type" validate:"omitempty,oneof=text json markdown yaml"`
}

// Asset resolves the seed content, reading File when Content is empty.
func (s AssetSeed) Asset() (*types.BrandAsset, error) {
	content := s.Content
	if content == "" && s.File != "" {
		data, err := os.ReadFile(s.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read asset %s: %w", s.Key, err)
		}
		content = string(data)
	}
	if content == "" {
		return nil, fmt.Errorf("asset %s has no content", s.Key)
	}
	return &types.BrandAsset{Key: s.Key, Content: content, ContentType: s.ContentType}, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		panic(fmt.Sprintf("config: invalid built-in defaults: %v", err))
	}
	return &cfg
}

// LoadConfig reads the YAML file at path over the defaults and applies the
// environment. An empty path yields defaults plus environment.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// Resolve path relative to current directory if not absolute
		if !filepath.IsAbs(path) {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get current directory: %w", err)
			}
			path = filepath.Join(cwd, path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. lookup is
// os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}

	str("STORE_BACKEND", &c.Store.Backend)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	str("SQLITE_PATH", &c.Store.SQLitePath)
	if c.Store.DatabaseURL != "" {
		if _, ok := lookup("STORE_BACKEND"); !ok && c.Store.Backend == BackendSQLite {
			c.Store.Backend = BackendPostgres
		}
	}

	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	if c.LLM.APIKey == "" {
		switch llm.Provider(c.LLM.Provider) {
		case llm.ProviderGemini:
			str("GEMINI_API_KEY", &c.LLM.APIKey)
		case llm.ProviderOpenAI:
			str("OPENAI_API_KEY", &c.LLM.APIKey)
		case llm.ProviderAnthropic:
			str("ANTHROPIC_API_KEY", &c.LLM.APIKey)
		}
	}
	if c.LLM.Provider == string(llm.ProviderOllama) {
		str("OLLAMA_HOST", &c.LLM.BaseURL)
	}

	str("EMBEDDING_PROVIDER", &c.Embedding.Provider)
	str("EMBEDDING_MODEL", &c.Embedding.Model)
	if err := integer("EMBEDDING_DIMENSION", &c.Embedding.Dimension); err != nil {
		return err
	}
	switch c.Embedding.Provider {
	case "ollama":
		str("OLLAMA_HOST", &c.Embedding.BaseURL)
	case "openai":
		if c.Embedding.APIKey == "" {
			str("OPENAI_API_KEY", &c.Embedding.APIKey)
		}
	}

	str("TAVILY_API_KEY", &c.Research.TavilyAPIKey)
	str("GOOGLE_SEARCH_API_KEY", &c.Research.GoogleAPIKey)
	str("GOOGLE_SEARCH_CX", &c.Research.GoogleCX)

	str("SERVER_ADDR", &c.Server.Addr)
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Server.Addr = ":" + v
	}

	str("JWT_SECRET", &c.Auth.JWTSecret)
	if err := integer("JWT_EXPIRATION_HOURS", &c.Auth.JWTExpirationHours); err != nil {
		return err
	}
	if err := integer("BCRYPT_COST", &c.Auth.BcryptCost); err != nil {
		return err
	}
	str("PASSWORD_PEPPER", &c.Auth.PasswordPepper)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)
	str("BLOCKED_WORDS_FILE", &c.Vocab.File)
	return nil
}

var validate = validator.New()

// Validate checks struct tags and the cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	seen := make(map[int]bool, len(c.Workflow.CheckpointSteps))
	for _, s := range c.Workflow.CheckpointSteps {
		if seen[s] {
			return fmt.Errorf("config error: checkpoint step %d listed twice", s)
		}
		seen[s] = true
	}

	switch c.Store.Backend {
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("config error: 'store.database_url' is required for the postgres backend")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("config error: 'store.sqlite_path' is required for the sqlite backend")
		}
	}

	if _, err := curation.CompileNoise(c.Curation.NoisePatterns); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.Research.Provider == ResearchGoogle && (c.Research.GoogleAPIKey == "") != (c.Research.GoogleCX == "") {
		return fmt.Errorf("config error: google research needs both an API key and a search engine ID")
	}

	if c.Vocab.File != "" {
		if _, err := os.Stat(c.Vocab.File); os.IsNotExist(err) {
			return fmt.Errorf("config error: blocked words file not found: %s", c.Vocab.File)
		}
	}

	slugs := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if slugs[ch.Slug] {
			return fmt.Errorf("config error: channel slug %q declared twice", ch.Slug)
		}
		slugs[ch.Slug] = true
	}

	return c.Auth.normalize()
}

// MergeWithDefaults returns a new Config with zero-valued scalar fields
// filled from defaults. Slices are taken from defaults only when nil.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Store.Backend == "" {
		result.Store.Backend = defaults.Store.Backend
	}
	if result.Store.DatabaseURL == "" {
		result.Store.DatabaseURL = defaults.Store.DatabaseURL
	}
	if result.Store.SQLitePath == "" {
		result.Store.SQLitePath = defaults.Store.SQLitePath
	}
	if result.Research.Provider == "" {
		result.Research.Provider = defaults.Research.Provider
	}
	if result.Vocab.AssetKey == "" {
		result.Vocab.AssetKey = defaults.Vocab.AssetKey
	}
	if result.LLM.Provider == "" {
		result.LLM.Provider = defaults.LLM.Provider
	}
	if result.Server.Addr == "" {
		result.Server.Addr = defaults.Server.Addr
	}
	if result.Logging.Level == "" {
		result.Logging.Level = defaults.Logging.Level
	}

	// Int and duration fields: use default if zero
	if result.Workflow.Retry.Attempts == 0 {
		result.Workflow.Retry = defaults.Workflow.Retry
	}
	if result.Workflow.PollInterval == 0 {
		result.Workflow.PollInterval = defaults.Workflow.PollInterval
	}
	if result.Curation.RetrievalK == 0 {
		result.Curation.RetrievalK = defaults.Curation.RetrievalK
	}
	if result.Curation.LongThreshold == 0 {
		result.Curation.Options = defaults.Curation.Options
	}
	if result.Research.MaxResults == 0 {
		result.Research.Options = defaults.Research.Options
	}
	if result.Server.ReadTimeout == 0 {
		result.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if result.Server.ShutdownTimeout == 0 {
		result.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if result.Auth.JWTExpirationHours == 0 {
		result.Auth.JWTExpirationHours = defaults.Auth.JWTExpirationHours
	}
	if result.Auth.BcryptCost == 0 {
		result.Auth.BcryptCost = defaults.Auth.BcryptCost
	}

	// Slices
	if result.Workflow.CheckpointSteps == nil {
		result.Workflow.CheckpointSteps = append([]int(nil), defaults.Workflow.CheckpointSteps...)
	}
	if result.Curation.NoisePatterns == nil {
		result.Curation.NoisePatterns = types.CloneStrings(defaults.Curation.NoisePatterns)
	}

	return result
}

// LLMSettings builds the llm package configuration. Models listed in the
// file replace the provider defaults tier by tier.
func (c *Config) LLMSettings() (*llm.Config, error) {
	cfg, err := llm.DefaultConfigFor(llm.Provider(c.LLM.Provider))
	if err != nil {
		return nil, err
	}
	for tier, model := range c.LLM.Models {
		cfg = cfg.WithModel(llm.ModelTier(tier), model)
	}
	if c.LLM.BaseURL != "" {
		cfg.BaseURL = c.LLM.BaseURL
	}
	return cfg, nil
}

// EmbedderSettings returns the embedder configuration, or false when
// embeddings are disabled.
func (c *Config) EmbedderSettings() (retrieval.EmbedderConfig, bool) {
	if c.Embedding.Provider == "" || c.Embedding.Provider == "none" {
		return retrieval.EmbedderConfig{}, false
	}
	return retrieval.EmbedderConfig{
		Provider:  c.Embedding.Provider,
		Model:     c.Embedding.Model,
		Dimension: c.Embedding.Dimension,
		BaseURL:   c.Embedding.BaseURL,
		APIKey:    c.Embedding.APIKey,
	}, true
}

// LogLevel parses Logging.Level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
