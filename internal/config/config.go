package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Extractor  ExtractorConfig  `mapstructure:"extractor"`
	BgRemover  BgRemoverConfig  `mapstructure:"bgremover"`
	Matcher    MatcherConfig    `mapstructure:"matcher"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Transcribe TranscribeConfig `mapstructure:"transcribe"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, sslMode)
	}
	return c.Path
}

type StorageConfig struct {
	Driver    string `mapstructure:"driver"` // s3, memory
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

// ExtractorConfig configures the keypoint-extraction model service and the
// contrast-threshold tuning loop used during registration.
type ExtractorConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	Timeout          time.Duration `mapstructure:"timeout"`
	TargetKeypoints  int           `mapstructure:"target_keypoints"`
	Tolerance        int           `mapstructure:"tolerance"`
	MinThreshold     float64       `mapstructure:"min_threshold"`
	MaxThreshold     float64       `mapstructure:"max_threshold"`
	DefaultThreshold float64       `mapstructure:"default_threshold"`
	MaxIterations    int           `mapstructure:"max_iterations"`
}

type BgRemoverConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MatcherConfig configures the ratio-test correspondence matcher.
type MatcherConfig struct {
	Ratio float64 `mapstructure:"ratio"`
	// MinMatches is the minimum accepted-correspondence count for a frame
	// to yield a detection.
	MinMatches int `mapstructure:"min_matches"`
	// EarlyExitMatches short-circuits the per-frame product scan once a
	// candidate reaches this count; 0 disables the early exit.
	EarlyExitMatches int `mapstructure:"early_exit_matches"`
}

// PipelineConfig configures frame sampling and transcript correlation.
type PipelineConfig struct {
	FrameInterval float64 `mapstructure:"frame_interval"` // seconds between sampled frames
	WindowSeconds float64 `mapstructure:"window_seconds"` // correlation window tolerance W
	Language      string  `mapstructure:"language"`
	// RequireVisual flips the annotation policy to corroborated-only:
	// textual mentions without a nearby visual detection are left bare.
	RequireVisual bool   `mapstructure:"require_visual"`
	WorkDir       string `mapstructure:"work_dir"`
}

type TranscribeConfig struct {
	FFmpegBinary   string `mapstructure:"ffmpeg_binary"`
	WhisperXBinary string `mapstructure:"whisperx_binary"`
	Model          string `mapstructure:"model"`
	Device         string `mapstructure:"device"`
}

// Load reads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("extractor.base_url", "EXTRACTOR_BASE_URL")
	v.BindEnv("extractor.api_key", "EXTRACTOR_API_KEY")
	v.BindEnv("bgremover.base_url", "BGREMOVER_BASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/skulens.db")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.driver", "s3")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "skulens-snapshots")

	v.SetDefault("extractor.base_url", "http://localhost:8500")
	v.SetDefault("extractor.timeout", 60*time.Second)
	v.SetDefault("extractor.target_keypoints", 1500)
	v.SetDefault("extractor.tolerance", 50)
	v.SetDefault("extractor.min_threshold", 0.001)
	v.SetDefault("extractor.max_threshold", 0.2)
	v.SetDefault("extractor.default_threshold", 0.04)
	v.SetDefault("extractor.max_iterations", 8)

	v.SetDefault("bgremover.enabled", true)
	v.SetDefault("bgremover.base_url", "http://localhost:8501")
	v.SetDefault("bgremover.timeout", 60*time.Second)

	v.SetDefault("matcher.ratio", 0.75)
	v.SetDefault("matcher.min_matches", 120)
	v.SetDefault("matcher.early_exit_matches", 0)

	v.SetDefault("pipeline.frame_interval", 1.0)
	v.SetDefault("pipeline.window_seconds", 1.0)
	v.SetDefault("pipeline.language", "es")
	v.SetDefault("pipeline.require_visual", false)
	v.SetDefault("pipeline.work_dir", "")

	v.SetDefault("transcribe.ffmpeg_binary", "ffmpeg")
	v.SetDefault("transcribe.whisperx_binary", "whisperx")
	v.SetDefault("transcribe.model", "base")
	v.SetDefault("transcribe.device", "cpu")
}
