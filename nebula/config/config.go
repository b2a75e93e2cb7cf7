package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr       string `yaml:"addr"`
	LogDir     string `yaml:"log_dir"`
	CORSOrigin string `yaml:"cors_origin"`

	DBDriver   string `yaml:"db_driver"` // postgres | sqlite
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBName     string `yaml:"db_name"`
	DBPath     string `yaml:"db_path"`

	JWTSecret   string        `yaml:"jwt_secret"`
	TokenCookie string        `yaml:"token_cookie"`
	TokenTTL    time.Duration `yaml:"token_ttl"`

	LLMProvider        string `yaml:"llm_provider"` // openai | groq | anthropic
	OpenAIAPIKey       string `yaml:"openai_api_key"`
	OpenAIBaseURL      string `yaml:"openai_base_url"`
	OpenAIModel        string `yaml:"openai_model"`
	GroqAPIKey         string `yaml:"groq_api_key"`
	GroqModel          string `yaml:"groq_model"`
	AnthropicAPIKey    string `yaml:"anthropic_api_key"`
	AnthropicModel     string `yaml:"anthropic_model"`
	AnthropicMaxTokens int    `yaml:"anthropic_max_tokens"`

	EmbeddingProvider   string `yaml:"embedding_provider"` // openai | hash
	EmbeddingBaseURL    string `yaml:"embedding_base_url"`
	EmbeddingAPIKey     string `yaml:"embedding_api_key"`
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`

	VectorBackend string `yaml:"vector_backend"` // chromem | pgvector

	StorageDriver    string `yaml:"storage_driver"` // minio | s3
	MinIOEndpoint    string `yaml:"minio_endpoint"`
	MinIOAccessKey   string `yaml:"minio_access_key"`
	MinIOSecretKey   string `yaml:"minio_secret_key"`
	MinIOBucket      string `yaml:"minio_bucket"`
	MinIOSecure      bool   `yaml:"minio_secure"`
	S3Region         string `yaml:"s3_region"`
	S3Bucket         string `yaml:"s3_bucket"`
	S3AccessKey      string `yaml:"s3_access_key"`
	S3SecretKey      string `yaml:"s3_secret_key"`
	S3Endpoint       string `yaml:"s3_endpoint"`
	StoragePublicURL string `yaml:"storage_public_url"`

	HFToken   string `yaml:"hf_token"`
	HFModel   string `yaml:"hf_model"`
	HFBaseURL string `yaml:"hf_base_url"`

	ShortTermLimit       int   `yaml:"short_term_limit"`
	LongTermLimit        int   `yaml:"long_term_limit"`
	MaxAttachmentBytes   int64 `yaml:"max_attachment_bytes"`
	AttachmentCacheBytes int64 `yaml:"attachment_cache_bytes"`
}

// Defaults returns the development configuration every loader starts from.
func Defaults() Config {
	return Config{
		Addr:       ":8000",
		LogDir:     "./logs",
		CORSOrigin: "http://localhost:5173",

		DBDriver: "postgres",
		DBHost:   "localhost",
		DBPort:   "5432",
		DBPath:   "nebula.db",

		TokenCookie: "token",
		TokenTTL:    24 * time.Hour,

		LLMProvider:        "openai",
		OpenAIBaseURL:      "https://api.openai.com/v1",
		OpenAIModel:        "gpt-4o-mini",
		GroqModel:          "llama-3.3-70b-versatile",
		AnthropicModel:     "claude-sonnet-4-5",
		AnthropicMaxTokens: 1024,

		EmbeddingProvider:   "openai",
		EmbeddingBaseURL:    "https://api.openai.com/v1",
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 1536,

		VectorBackend: "chromem",

		StorageDriver: "minio",
		MinIOEndpoint: "localhost:9000",
		MinIOBucket:   "nebula",
		S3Region:      "us-east-1",

		HFModel:   "stabilityai/stable-diffusion-xl-base-1.0",
		HFBaseURL: "https://router.huggingface.co/hf-inference/models",

		ShortTermLimit:       20,
		LongTermLimit:        5,
		MaxAttachmentBytes:   10 << 20,
		AttachmentCacheBytes: 64 << 20,
	}
}

// LoadConfig applies defaults, then the YAML file named by CONFIG_FILE (if any),
// then environment variables.
func LoadConfig() (Config, error) {
	cfg := Defaults()
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.VectorBackend {
	case "chromem":
	case "pgvector":
		if c.DBDriver != "postgres" {
			return fmt.Errorf("VECTOR_BACKEND=pgvector requires DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported VECTOR_BACKEND %q", c.VectorBackend)
	}
	switch c.LLMProvider {
	case "openai", "groq", "anthropic":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.EmbeddingProvider {
	case "openai", "hash":
	default:
		return fmt.Errorf("unsupported EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}
	switch c.StorageDriver {
	case "minio", "s3":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.ShortTermLimit < 0 || c.LongTermLimit < 0 {
		return fmt.Errorf("memory limits must not be negative")
	}
	return nil
}

// DSN builds the postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) error {
	c.Addr = getEnv("ADDR", c.Addr)
	c.LogDir = getEnv("LOG_DIR", c.LogDir)
	c.CORSOrigin = getEnv("CORS_ORIGIN", c.CORSOrigin)

	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.DBPath = getEnv("DB_PATH", c.DBPath)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.TokenCookie = getEnv("TOKEN_COOKIE", c.TokenCookie)

	c.LLMProvider = getEnv("LLM_PROVIDER", c.LLMProvider)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)
	c.GroqAPIKey = getEnv("GROQ_API_KEY", c.GroqAPIKey)
	c.GroqModel = getEnv("GROQ_MODEL", c.GroqModel)
	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.AnthropicModel = getEnv("ANTHROPIC_MODEL", c.AnthropicModel)

	c.EmbeddingProvider = getEnv("EMBEDDING_PROVIDER", c.EmbeddingProvider)
	c.EmbeddingBaseURL = getEnv("EMBEDDING_BASE_URL", c.EmbeddingBaseURL)
	c.EmbeddingAPIKey = getEnv("EMBEDDING_API_KEY", c.EmbeddingAPIKey)
	c.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.EmbeddingModel)

	c.VectorBackend = getEnv("VECTOR_BACKEND", c.VectorBackend)

	c.StorageDriver = getEnv("STORAGE_DRIVER", c.StorageDriver)
	c.MinIOEndpoint = getEnv("MINIO_ENDPOINT", c.MinIOEndpoint)
	c.MinIOAccessKey = getEnv("MINIO_ACCESS_KEY", c.MinIOAccessKey)
	c.MinIOSecretKey = getEnv("MINIO_SECRET_KEY", c.MinIOSecretKey)
	c.MinIOBucket = getEnv("MINIO_BUCKET", c.MinIOBucket)
	c.S3Region = getEnv("S3_REGION", c.S3Region)
	c.S3Bucket = getEnv("S3_BUCKET", c.S3Bucket)
	c.S3AccessKey = getEnv("S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = getEnv("S3_SECRET_KEY", c.S3SecretKey)
	c.S3Endpoint = getEnv("S3_ENDPOINT", c.S3Endpoint)
	c.StoragePublicURL = getEnv("STORAGE_PUBLIC_URL", c.StoragePublicURL)

	c.HFToken = getEnv("HF_TOKEN", c.HFToken)
	c.HFModel = getEnv("HF_MODEL", c.HFModel)
	c.HFBaseURL = getEnv("HF_BASE_URL", c.HFBaseURL)

	var err error
	if c.TokenTTL, err = getDuration("TOKEN_TTL", c.TokenTTL); err != nil {
		return err
	}
	if c.AnthropicMaxTokens, err = getInt("ANTHROPIC_MAX_TOKENS", c.AnthropicMaxTokens); err != nil {
		return err
	}
	if c.EmbeddingDimensions, err = getInt("EMBEDDING_DIMENSIONS", c.EmbeddingDimensions); err != nil {
		return err
	}
	if c.MinIOSecure, err = getBool("MINIO_SECURE", c.MinIOSecure); err != nil {
		return err
	}
	if c.ShortTermLimit, err = getInt("SHORT_TERM_LIMIT", c.ShortTermLimit); err != nil {
		return err
	}
	if c.LongTermLimit, err = getInt("LONG_TERM_LIMIT", c.LongTermLimit); err != nil {
		return err
	}
	if c.MaxAttachmentBytes, err = getInt64("MAX_ATTACHMENT_BYTES", c.MaxAttachmentBytes); err != nil {
		return err
	}
	if c.AttachmentCacheBytes, err = getInt64("ATTACHMENT_CACHE_BYTES", c.AttachmentCacheBytes); err != nil {
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}
