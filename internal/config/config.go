package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Storage    StorageConfig
	Tracing    TracingConfig `mapstructure:"tracing"`
	Judge      JudgeConfig
	Assessment AssessmentConfig
	Redis      RedisConfig
	Log        LogConfig
	CORS       CORSConfig      `mapstructure:"cors"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
	// 每个学员运行/提交代码的频率上限，保护远程判题配额
	CodeMaxRequests   int `mapstructure:"code_max_requests"`
	CodeWindowSeconds int `mapstructure:"code_window_seconds"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

// JudgeConfig 远程判题服务
type JudgeConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	URL             string  `mapstructure:"url"`
	Host            string  `mapstructure:"host"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	RatePerSecond   float64 `mapstructure:"rate_per_second"`
	Burst           int     `mapstructure:"burst"`
	DefaultLanguage string  `mapstructure:"default_language"`
}

// AssessmentConfig 测评运行时参数
type AssessmentConfig struct {
	QuizQuestionSeconds      int  `mapstructure:"quiz_question_seconds"`
	QuizSize                 int  `mapstructure:"quiz_size"`
	TestCacheMinutes         int  `mapstructure:"test_cache_minutes"`
	DraftTTLHours            int  `mapstructure:"draft_ttl_hours"`
	SubmitLockSeconds        int  `mapstructure:"submit_lock_seconds"`
	AutoSubmitTimeoutSeconds int  `mapstructure:"auto_submit_timeout_seconds"`
	IdleAttemptHours         int  `mapstructure:"idle_attempt_hours"`
	ArchiveSubmissions       bool `mapstructure:"archive_submissions"`
}

// LogConfig 日志文件滚动参数
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.charset", "utf8mb4")
	viper.SetDefault("database.parsetime", true)
	viper.SetDefault("jwt.expire_hours", 24)
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "uploads")
	viper.SetDefault("judge.timeout_seconds", 10)
	viper.SetDefault("judge.rate_per_second", 5)
	viper.SetDefault("judge.burst", 10)
	viper.SetDefault("judge.default_language", "python")
	viper.SetDefault("assessment.quiz_question_seconds", 20)
	viper.SetDefault("assessment.quiz_size", 10)
	viper.SetDefault("assessment.test_cache_minutes", 10)
	viper.SetDefault("assessment.draft_ttl_hours", 24)
	viper.SetDefault("assessment.submit_lock_seconds", 30)
	viper.SetDefault("assessment.auto_submit_timeout_seconds", 15)
	viper.SetDefault("assessment.idle_attempt_hours", 6)
	viper.SetDefault("log.file", "logs/app.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 5)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("rate_limit.max_requests", 6000)
	viper.SetDefault("rate_limit.window_minutes", 1)
	viper.SetDefault("rate_limit.code_max_requests", 10)
	viper.SetDefault("rate_limit.code_window_seconds", 60)
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("CODER_ASSESSMENT")
	viper.AutomaticEnv()
	setDefaults()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Storage / OSS
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	viper.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	viper.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	viper.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Judge
	viper.BindEnv("judge.api_key", "JUDGE_API_KEY")
	viper.BindEnv("judge.url", "JUDGE_URL")
	viper.BindEnv("judge.host", "JUDGE_HOST")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// QuizQuestionTime 单题测验每题时长
func (c AssessmentConfig) QuizQuestionTime() time.Duration {
	if c.QuizQuestionSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.QuizQuestionSeconds) * time.Second
}

func (c AssessmentConfig) TestCacheTTL() time.Duration {
	if c.TestCacheMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.TestCacheMinutes) * time.Minute
}

func (c AssessmentConfig) DraftTTL() time.Duration {
	if c.DraftTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.DraftTTLHours) * time.Hour
}

func (c AssessmentConfig) SubmitLockTTL() time.Duration {
	if c.SubmitLockSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.SubmitLockSeconds) * time.Second
}

func (c AssessmentConfig) AutoSubmitTimeout() time.Duration {
	if c.AutoSubmitTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.AutoSubmitTimeoutSeconds) * time.Second
}

// IdleAttemptTTL 无操作的作答会话保留时长，限时试卷在此基础上再加限时
func (c AssessmentConfig) IdleAttemptTTL() time.Duration {
	if c.IdleAttemptHours <= 0 {
		return 6 * time.Hour
	}
	return time.Duration(c.IdleAttemptHours) * time.Hour
}

func (c JudgeConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
