package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		// TTL bounds cached questions when Redis fronts Postgres.
		TTL string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Game struct {
		QuestionDuration     string `yaml:"question_duration"`
		IntermissionDuration string `yaml:"intermission_duration"`
		RetryBackoff         string `yaml:"retry_backoff"`
		FetchTimeout         string `yaml:"fetch_timeout"`
		// MessageSalt varies intermission message draws between deployments.
		MessageSalt uint64 `yaml:"message_salt"`
	} `yaml:"game"`
	Scoring struct {
		Max               int  `yaml:"max"`
		Floor             int  `yaml:"floor"`
		TrustClientPoints bool `yaml:"trust_client_points"`
	} `yaml:"scoring"`
	Provider struct {
		BaseURL   string `yaml:"base_url"`
		Timeout   string `yaml:"timeout"`
		UserAgent string `yaml:"user_agent"`
		Offline   bool   `yaml:"offline"`
	} `yaml:"provider"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Avatars struct {
		Bucket     string `yaml:"bucket"`
		Region     string `yaml:"region"`
		Endpoint   string `yaml:"endpoint"`
		BaseURL    string `yaml:"base_url"`
		PresignTTL string `yaml:"presign_ttl"`
	} `yaml:"avatars"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Load reads YAML config from path, then applies environment overrides.
// A .env file in the working directory is loaded first when present; a
// missing config file leaves every setting at its zero value.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	override(&c.Server.Port, "PORT")
	override(&c.Auth.JWTSecret, "TRIVIA_JWT_SECRET")
	override(&c.Postgres.URL, "DATABASE_URL")
	override(&c.Redis.Addr, "REDIS_ADDR")
}

func override(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
