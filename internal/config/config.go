package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Google    GoogleConfig
	Storage   StorageConfig
	OCR       OCRConfig
	OpenAI    OpenAIConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port     string `validate:"required"`
	Env      string
	LogLevel string
}

type AuthConfig struct {
	// SchedulerToken is the static bearer token the external trigger sends.
	// JWTSecret additionally accepts HMAC-signed tokens for operator access.
	SchedulerToken string
	JWTSecret      string
}

type RedisConfig struct {
	Addr     string `validate:"required"`
	Password string
	DB       int
}

type RateLimitConfig struct {
	IntakePerHour int
	PollPerMin    int
	DistillPerMin int
}

// GoogleConfig carries the OAuth token payload and the Drive folder layout
// the pipeline writes into.
type GoogleConfig struct {
	Token      string `validate:"required"` // authorized-user token JSON
	MainFolder string `validate:"required"`
	OldFolder  string `validate:"required"`
	TempFolder string `validate:"required"`
	JobsFile   string `validate:"required"`
	MailQuery  string `validate:"required"`
}

type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	KeyPrefix       string
}

type OCRConfig struct {
	BaseURL string `validate:"required,url"`
	APIKey  string
	Timeout time.Duration
}

type OpenAIConfig struct {
	BaseURL     string `validate:"required,url"`
	APIKey      string
	Model       string `validate:"required"`
	MaxTokens   int
	Temperature float64
	Prompt      string // overrides the built-in distillation prompt
}

type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("GOOGLE_TOKEN")
	readSecret("OPENAI_API_KEY")
	readSecret("OCR_API_KEY")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")
	readSecret("SCHEDULER_TOKEN")
	readSecret("JWT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("auth.scheduler_token", "SCHEDULER_TOKEN")
	_ = viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("google.token", "GOOGLE_TOKEN")
	_ = viper.BindEnv("google.main_folder", "DRIVE_MAIN_FOLDER")
	_ = viper.BindEnv("google.old_folder", "DRIVE_OLD_FOLDER")
	_ = viper.BindEnv("google.temp_folder", "DRIVE_TEMP_FOLDER")
	_ = viper.BindEnv("google.jobs_file", "DRIVE_JOBS_FILE")
	_ = viper.BindEnv("google.mail_query", "GMAIL_QUERY")
	_ = viper.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = viper.BindEnv("storage.region", "STORAGE_REGION")
	_ = viper.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.bucket", "STORAGE_BUCKET")
	_ = viper.BindEnv("storage.key_prefix", "STORAGE_KEY_PREFIX")
	_ = viper.BindEnv("ocr.base_url", "OCR_BASE_URL")
	_ = viper.BindEnv("ocr.api_key", "OCR_API_KEY")
	_ = viper.BindEnv("ocr.timeout", "OCR_TIMEOUT")
	_ = viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai.model", "OPENAI_MODEL")
	_ = viper.BindEnv("openai.max_tokens", "OPENAI_MAX_TOKENS")
	_ = viper.BindEnv("openai.temperature", "OPENAI_TEMPERATURE")
	_ = viper.BindEnv("openai.prompt", "OPENAI_PROMPT")
	_ = viper.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = viper.BindEnv("scheduler.interval", "SCHEDULER_INTERVAL")
	_ = viper.BindEnv("ratelimit.intake_per_hour", "RATELIMIT_INTAKE_PER_HOUR")
	_ = viper.BindEnv("ratelimit.poll_per_min", "RATELIMIT_POLL_PER_MIN")
	_ = viper.BindEnv("ratelimit.distill_per_min", "RATELIMIT_DISTILL_PER_MIN")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("ratelimit.intake_per_hour", 30)
	viper.SetDefault("ratelimit.poll_per_min", 60)
	viper.SetDefault("ratelimit.distill_per_min", 30)

	// Drive layout defaults match the folder names the Kindle export flow
	// has always used; renaming them orphans previously synced notebooks.
	viper.SetDefault("google.main_folder", "Kindle Notebooks")
	viper.SetDefault("google.old_folder", "Old")
	viper.SetDefault("google.temp_folder", "_temp_processing")
	viper.SetDefault("google.jobs_file", "ocr_jobs.json")
	viper.SetDefault("google.mail_query", `subject:"you sent a file" "from your kindle" is:unread`)

	viper.SetDefault("storage.region", "auto")
	viper.SetDefault("storage.key_prefix", "notebooks")

	viper.SetDefault("ocr.base_url", "https://api.ocr.space/v1")
	viper.SetDefault("ocr.timeout", "60s")

	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.model", "gpt-4o")
	viper.SetDefault("openai.max_tokens", 10000)
	viper.SetDefault("openai.temperature", 0.5)

	viper.SetDefault("scheduler.enabled", false)
	viper.SetDefault("scheduler.interval", "10m")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Auth: AuthConfig{
			SchedulerToken: viper.GetString("auth.scheduler_token"),
			JWTSecret:      viper.GetString("auth.jwt_secret"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			IntakePerHour: viper.GetInt("ratelimit.intake_per_hour"),
			PollPerMin:    viper.GetInt("ratelimit.poll_per_min"),
			DistillPerMin: viper.GetInt("ratelimit.distill_per_min"),
		},
		Google: GoogleConfig{
			Token:      viper.GetString("google.token"),
			MainFolder: viper.GetString("google.main_folder"),
			OldFolder:  viper.GetString("google.old_folder"),
			TempFolder: viper.GetString("google.temp_folder"),
			JobsFile:   viper.GetString("google.jobs_file"),
			MailQuery:  viper.GetString("google.mail_query"),
		},
		Storage: StorageConfig{
			Endpoint:        viper.GetString("storage.endpoint"),
			Region:          viper.GetString("storage.region"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			Bucket:          viper.GetString("storage.bucket"),
			KeyPrefix:       viper.GetString("storage.key_prefix"),
		},
		OCR: OCRConfig{
			BaseURL: viper.GetString("ocr.base_url"),
			APIKey:  viper.GetString("ocr.api_key"),
			Timeout: viper.GetDuration("ocr.timeout"),
		},
		OpenAI: OpenAIConfig{
			BaseURL:     viper.GetString("openai.base_url"),
			APIKey:      viper.GetString("openai.api_key"),
			Model:       viper.GetString("openai.model"),
			MaxTokens:   viper.GetInt("openai.max_tokens"),
			Temperature: viper.GetFloat64("openai.temperature"),
			Prompt:      viper.GetString("openai.prompt"),
		},
		Scheduler: SchedulerConfig{
			Enabled:  viper.GetBool("scheduler.enabled"),
			Interval: viper.GetDuration("scheduler.interval"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
