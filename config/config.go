package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	APIPort           string `mapstructure:"API_PORT"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`
	CORSOrigins       string `mapstructure:"CORS_ORIGINS"`

	// Lab backend endpoints.
	BookingURL string `mapstructure:"BOOKING_URL"`
	StreamURL  string `mapstructure:"STREAM_URL"`
	AuthURL    string `mapstructure:"AUTH_URL"`

	// Optional credentials used when no stored session validates.
	LabEmail    string `mapstructure:"LAB_EMAIL"`
	LabPassword string `mapstructure:"LAB_PASSWORD"`

	// Redis configuration. An empty address keeps sessions in memory.
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB int    `mapstructure:"REDIS_SESSION_DB"`
	// SessionKey encrypts the stored session when set.
	SessionKey string `mapstructure:"SESSION_KEY"`

	// Connection manager.
	ReconnectBaseDelay   time.Duration `mapstructure:"RECONNECT_BASE_DELAY"`
	ReconnectMaxAttempts int           `mapstructure:"RECONNECT_MAX_ATTEMPTS"`

	// Booking store.
	PendingTimeout time.Duration `mapstructure:"PENDING_TIMEOUT"`

	// Adaptive stream controller.
	StreamInitialQuality int           `mapstructure:"STREAM_INITIAL_QUALITY"`
	StreamMinQuality     int           `mapstructure:"STREAM_MIN_QUALITY"`
	StreamMaxQuality     int           `mapstructure:"STREAM_MAX_QUALITY"`
	StreamQualityStep    int           `mapstructure:"STREAM_QUALITY_STEP"`
	StreamLowFPS         float64       `mapstructure:"STREAM_LOW_FPS"`
	StreamHighFPS        float64       `mapstructure:"STREAM_HIGH_FPS"`
	StreamWindow         time.Duration `mapstructure:"STREAM_WINDOW"`
	StreamTick           time.Duration `mapstructure:"STREAM_TICK"`
}

var AppConfig Config

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_PORT", "8090")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 600)
	v.SetDefault("CORS_ORIGINS", "*")

	v.SetDefault("BOOKING_URL", "ws://localhost:8000/slot-booking")
	v.SetDefault("STREAM_URL", "ws://localhost:8000/websocket")
	v.SetDefault("AUTH_URL", "http://localhost:8000")
	v.SetDefault("LAB_EMAIL", "")
	v.SetDefault("LAB_PASSWORD", "")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_SESSION_DB", 3)
	v.SetDefault("SESSION_KEY", "")

	v.SetDefault("RECONNECT_BASE_DELAY", time.Second)
	v.SetDefault("RECONNECT_MAX_ATTEMPTS", 5)

	v.SetDefault("PENDING_TIMEOUT", time.Second)

	v.SetDefault("STREAM_INITIAL_QUALITY", 95)
	v.SetDefault("STREAM_MIN_QUALITY", 30)
	v.SetDefault("STREAM_MAX_QUALITY", 95)
	v.SetDefault("STREAM_QUALITY_STEP", 5)
	v.SetDefault("STREAM_LOW_FPS", 28.0)
	v.SetDefault("STREAM_HIGH_FPS", 32.0)
	v.SetDefault("STREAM_WINDOW", 5*time.Second)
	v.SetDefault("STREAM_TICK", time.Second)
}

// Load reads .env, an optional config.yaml and the environment into a Config.
func Load(v *viper.Viper) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: could not load .env file: %v", err)
	}

	// Look for a config file named "config.yaml" in the current and "config" directory.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig populates AppConfig from the global viper instance.
func LoadConfig() {
	cfg, err := Load(viper.GetViper())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	AppConfig = cfg
}

// Validate rejects settings the controllers cannot run with.
func (c Config) Validate() error {
	if c.BookingURL == "" {
		return fmt.Errorf("config: BOOKING_URL is required")
	}
	if c.ReconnectBaseDelay <= 0 {
		return fmt.Errorf("config: RECONNECT_BASE_DELAY must be positive, got %s", c.ReconnectBaseDelay)
	}
	if c.ReconnectMaxAttempts < 0 {
		return fmt.Errorf("config: RECONNECT_MAX_ATTEMPTS must not be negative, got %d", c.ReconnectMaxAttempts)
	}
	if c.PendingTimeout <= 0 {
		return fmt.Errorf("config: PENDING_TIMEOUT must be positive, got %s", c.PendingTimeout)
	}
	if c.StreamMinQuality <= 0 {
		return fmt.Errorf("config: STREAM_MIN_QUALITY must be positive, got %d", c.StreamMinQuality)
	}
	if c.StreamMinQuality > c.StreamMaxQuality {
		return fmt.Errorf("config: STREAM_MIN_QUALITY %d above STREAM_MAX_QUALITY %d", c.StreamMinQuality, c.StreamMaxQuality)
	}
	if c.StreamInitialQuality < c.StreamMinQuality || c.StreamInitialQuality > c.StreamMaxQuality {
		return fmt.Errorf("config: STREAM_INITIAL_QUALITY %d outside [%d, %d]", c.StreamInitialQuality, c.StreamMinQuality, c.StreamMaxQuality)
	}
	if c.StreamQualityStep <= 0 {
		return fmt.Errorf("config: STREAM_QUALITY_STEP must be positive, got %d", c.StreamQualityStep)
	}
	// The band between the thresholds is what keeps quality from oscillating.
	if c.StreamLowFPS >= c.StreamHighFPS {
		return fmt.Errorf("config: STREAM_LOW_FPS %.1f must be below STREAM_HIGH_FPS %.1f", c.StreamLowFPS, c.StreamHighFPS)
	}
	if c.StreamWindow <= 0 || c.StreamTick <= 0 {
		return fmt.Errorf("config: STREAM_WINDOW and STREAM_TICK must be positive")
	}
	return nil
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
