package boot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"uk.co.dudmesh.tweetqueue/internal/model"
)

type Config struct {
	Env      string `env:"ENV,default=dev"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
	LogFile  string `env:"LOG_FILE"`
	Server   struct {
		Port        string `env:"PORT,default=8080"`
		MetricsPort string `env:"METRICS_PORT,default=8081"`
		Origins     string `env:"ALLOWED_ORIGINS,default=*"`
		JWTSecret   string `env:"AUTH_JWT_SECRET"`
	}
	Database struct {
		Driver string `env:"DB_DRIVER,default=sqlite3"`
		URL    string `env:"DATABASE_URL,default=file:tweetqueue.db?cache=shared&_busy_timeout=5000"`
	}
	Twitter struct {
		ConsumerKey    string        `env:"TWITTER_CONSUMER_KEY"`
		ConsumerSecret string        `env:"TWITTER_CONSUMER_SECRET"`
		BaseURL        string        `env:"TWITTER_API_BASE_URL,default=https://api.x.com/2"`
		Timeout        time.Duration `env:"PLATFORM_TIMEOUT,default=30s"`
	}
	Scheduler struct {
		Interval time.Duration `env:"SCHEDULER_INTERVAL,default=1m"`
		Workers  int           `env:"DELIVERY_WORKERS,default=4"`
		ClaimTTL time.Duration `env:"CLAIM_TTL,default=10m"`
	}
	Redis struct {
		Addr     string        `env:"REDIS_ADDR"`
		Password string        `env:"REDIS_PASSWORD"`
		DB       int           `env:"REDIS_DB,default=0"`
		LockTTL  time.Duration `env:"PASS_LOCK_TTL,default=5m"`
	}
}

var ErrorMissingConsumerCredentials = fmt.Errorf("%w: missing TWITTER_CONSUMER_KEY or TWITTER_CONSUMER_SECRET", model.ErrorConfiguration)

func Load() (*Config, error) {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
	}

	config := &Config{}
	if err := envconfig.Process(context.Background(), config); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}
	config.Twitter.ConsumerKey = strings.TrimSpace(config.Twitter.ConsumerKey)
	config.Twitter.ConsumerSecret = strings.TrimSpace(config.Twitter.ConsumerSecret)
	return config, nil
}

// Validate checks the settings every signing operation depends on. It is run once at startup.
func (c *Config) Validate() error {
	if c.Twitter.ConsumerKey == "" || c.Twitter.ConsumerSecret == "" {
		return ErrorMissingConsumerCredentials
	}
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("DELIVERY_WORKERS must be positive, got %d", c.Scheduler.Workers)
	}
	// A claim that can go stale while its platform call is still in flight lets a
	// second pass post the same tweet.
	if c.Scheduler.ClaimTTL <= c.Twitter.Timeout {
		return fmt.Errorf("CLAIM_TTL (%s) must be longer than PLATFORM_TIMEOUT (%s)", c.Scheduler.ClaimTTL, c.Twitter.Timeout)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod"
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "dev"
}
