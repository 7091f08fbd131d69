package config

import (
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Archive   ArchiveConfig   `yaml:"archive" mapstructure:"archive"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Firecrawl FirecrawlConfig `yaml:"firecrawl" mapstructure:"firecrawl"`
	Artifacts ArtifactConfig  `yaml:"artifacts" mapstructure:"artifacts"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Narration NarrationConfig `yaml:"narration" mapstructure:"narration"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the on-disk data directories.
type DataConfig struct {
	Dir            string `yaml:"dir" mapstructure:"dir"`
	VersionsDir    string `yaml:"versions_dir" mapstructure:"versions_dir"`
	ScreenshotsDir string `yaml:"screenshots_dir" mapstructure:"screenshots_dir"`
	AudioDir       string `yaml:"audio_dir" mapstructure:"audio_dir"`
}

// StoreConfig configures the attempt tracking database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ArchiveConfig configures the searchable archive of accepted chapters.
type ArchiveConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ScrapeConfig configures content acquisition.
type ScrapeConfig struct {
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
	MinContentChars int    `yaml:"min_content_chars" mapstructure:"min_content_chars"`
	Screenshots     bool   `yaml:"screenshots" mapstructure:"screenshots"`
	CacheSize       int    `yaml:"cache_size" mapstructure:"cache_size"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (fallback scraper and screenshots).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ArtifactConfig selects where screenshots are kept.
type ArtifactConfig struct {
	Driver string   `yaml:"driver" mapstructure:"driver"`
	S3     S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config holds MinIO / S3 connection settings.
type S3Config struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	Region    string `yaml:"region" mapstructure:"region"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// EngineConfig configures the rewrite and review engines.
type EngineConfig struct {
	Writer          RoleConfig `yaml:"writer" mapstructure:"writer"`
	Reviewer        RoleConfig `yaml:"reviewer" mapstructure:"reviewer"`
	MaxPromptChars  int        `yaml:"max_prompt_chars" mapstructure:"max_prompt_chars"`
	MaxOutputTokens int64      `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
}

// RoleConfig selects the provider and model for one engine role.
type RoleConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// ScoringConfig holds the heuristic scorer weights.
type ScoringConfig struct {
	Weights       map[string]float64 `yaml:"weights" mapstructure:"weights"`
	PassThreshold float64            `yaml:"pass_threshold" mapstructure:"pass_threshold"`
}

// NarrationConfig configures the optional text-to-speech stage.
type NarrationConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Lang          string  `yaml:"lang" mapstructure:"lang"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// NotionConfig holds the optional publication log settings.
type NotionConfig struct {
	Token         string  `yaml:"token" mapstructure:"token"`
	ChapterDB     string  `yaml:"chapter_db" mapstructure:"chapter_db"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultWeights returns the scoring weights of the reference heuristic.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"grammar":      0.25,
		"clarity":      0.20,
		"structure":    0.15,
		"faithfulness": 0.25,
		"fluency":      0.15,
	}
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHAPTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.resolveDirs()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "data")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.driver", "sqlite")
	v.SetDefault("archive.timeout_secs", 30)
	v.SetDefault("archive.max_attempts", 3)
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3")
	v.SetDefault("scrape.min_content_chars", 100)
	v.SetDefault("scrape.screenshots", true)
	v.SetDefault("scrape.cache_size", 64)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("artifacts.driver", "local")
	v.SetDefault("artifacts.s3.region", "us-east-1")
	v.SetDefault("artifacts.s3.bucket", "chapter-artifacts")
	v.SetDefault("engine.writer.provider", "anthropic")
	v.SetDefault("engine.writer.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("engine.writer.temperature", 0.7)
	v.SetDefault("engine.reviewer.provider", "anthropic")
	v.SetDefault("engine.reviewer.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("engine.reviewer.temperature", 0.49)
	v.SetDefault("engine.max_prompt_chars", 24000)
	v.SetDefault("engine.max_output_tokens", 4096)
	v.SetDefault("scoring.weights", DefaultWeights())
	v.SetDefault("scoring.pass_threshold", 12.0)
	v.SetDefault("narration.base_url", "https://translate.google.com/translate_tts")
	v.SetDefault("narration.lang", "en")
	v.SetDefault("narration.rate_per_second", 2.0)
	v.SetDefault("narration.timeout_secs", 30)
	v.SetDefault("notion.rate_per_second", 3.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// resolveDirs fills data subdirectories that were not set explicitly.
func (c *Config) resolveDirs() {
	if c.Data.Dir == "" {
		c.Data.Dir = "data"
	}
	if c.Data.VersionsDir == "" {
		c.Data.VersionsDir = filepath.Join(c.Data.Dir, "versions")
	}
	if c.Data.ScreenshotsDir == "" {
		c.Data.ScreenshotsDir = filepath.Join(c.Data.Dir, "screenshots")
	}
	if c.Data.AudioDir == "" {
		c.Data.AudioDir = filepath.Join(c.Data.Dir, "audio")
	}
	if c.Store.Driver == "sqlite" && c.Store.DatabaseURL == "" {
		c.Store.DatabaseURL = filepath.Join(c.Data.Dir, "attempts.db")
	}
	if c.Archive.Driver == "sqlite" && c.Archive.DatabaseURL == "" {
		c.Archive.DatabaseURL = filepath.Join(c.Data.Dir, "archive.db")
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if len(c.Scoring.Weights) == 0 {
		return eris.New("config: scoring.weights must not be empty")
	}
	for dim, w := range c.Scoring.Weights {
		if w < 0 {
			return eris.Errorf("config: scoring weight %q must be >= 0", dim)
		}
	}
	for _, role := range []RoleConfig{c.Engine.Writer, c.Engine.Reviewer} {
		switch role.Provider {
		case "anthropic", "gemini":
		default:
			return eris.Errorf("config: unsupported engine provider %q", role.Provider)
		}
	}
	if c.Engine.MaxPromptChars <= 0 {
		return eris.New("config: engine.max_prompt_chars must be > 0")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
