package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port           string        `env:"PORT,default=8080"`
	Env            string        `env:"ENV,default=development"`
	LogLevel       string        `env:"LOG_LEVEL,default=info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=30s"`

	// Database
	DatabaseURL   string `env:"DATABASE_URL,required=true"`
	DBMaxConns    int    `env:"DB_MAX_CONNS,default=25"`
	DBMinConns    int    `env:"DB_MIN_CONNS,default=5"`
	MigrationsDir string `env:"MIGRATIONS_DIR,default=migrations"`

	// Redis (optional, enables the live history feed)
	RedisURL string `env:"REDIS_URL"`

	// Sessions
	JWTSecret  string        `env:"JWT_SECRET,required=true"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,default=1h"`
	BcryptCost int           `env:"BCRYPT_COST,default=12"`

	// Completion provider
	CompletionProvider    string        `env:"COMPLETION_PROVIDER,default=gemini"`
	CompletionAPIURL      string        `env:"COMPLETION_API_URL,default=https://api.openai.com/v1"`
	CompletionAPIKey      string        `env:"COMPLETION_API_KEY,required=true"`
	CompletionModel       string        `env:"COMPLETION_MODEL,default=gemini-2.0-flash"`
	CompletionTimeout     time.Duration `env:"COMPLETION_TIMEOUT,default=60s"`
	CompletionConcurrency int           `env:"COMPLETION_CONCURRENCY,default=5"`

	// Frontend
	FrontendURL string `env:"FRONTEND_URL,default=http://localhost:5173"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	for key, val := range map[string]string{
		"DATABASE_URL":       c.DatabaseURL,
		"JWT_SECRET":         c.JWTSecret,
		"COMPLETION_API_KEY": c.CompletionAPIKey,
	} {
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("required environment variable %s is not set", key)
		}
	}

	switch c.CompletionProvider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("COMPLETION_PROVIDER must be gemini or openai, got %q", c.CompletionProvider)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.CompletionConcurrency < 1 {
		return fmt.Errorf("COMPLETION_CONCURRENCY must be at least 1, got %d", c.CompletionConcurrency)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
