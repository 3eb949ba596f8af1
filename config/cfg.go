package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const cfgFilePath = ".env"

type (
	Config struct {
		App     app
		Redis   redis
		HTTP    http
		Poll    poll
		DLQ     dlq
		Metrics metrics
		Jobs    jobs
	}

	app struct {
		Name     string `env:"APP_NAME"     env-default:"restpoll"`
		Version  string `env:"APP_VERSION"  env-default:"dev"`
		Env      string `env:"APP_ENV"      env-default:"local"`
		LogLevel string `env:"LOG_LEVEL"    env-default:"info"`
		Location string `env:"APP_LOCATION" env-default:"Asia/Ho_Chi_Minh"`
	}

	redis struct {
		Host           string `env:"REDIS_HOST"             env-required:"true"`
		Port           string `env:"REDIS_PORT"             env-required:"true"`
		Username       string `env:"REDIS_USERNAME"`
		Password       string `env:"REDIS_PASSWORD"`
		ClientName     string `env:"REDIS_CLIENT_NAME"      env-default:"restpoll"`
		DB             int    `env:"REDIS_DB"               env-default:"0"`
		MaxRetries     int    `env:"REDIS_MAX_RETRIES"      env-default:"3"`
		PoolSize       int    `env:"REDIS_POOL_SIZE"        env-default:"10"`
		MaxIdleConns   int    `env:"REDIS_MAX_IDLE_CONNS"   env-default:"5"`
		MaxActiveConns int    `env:"REDIS_MAX_ACTIVE_CONNS" env-default:"10"`
		MaxIdleTime    int    `env:"REDIS_MAX_IDLE_TIME"    env-default:"30"`
		MaxLifeTime    int    `env:"REDIS_MAX_LIFE_TIME"    env-default:"10"`
	}

	http struct {
		Timeout               time.Duration `env:"HTTP_TIMEOUT"                 env-default:"60s"`
		ResponseHeaderTimeout time.Duration `env:"HTTP_RESPONSE_HEADER_TIMEOUT" env-default:"30s"`
		// InsecureSkipVerify disables certificate and hostname checks for
		// every task. Leave it off outside local testing.
		InsecureSkipVerify bool `env:"TLS_INSECURE_SKIP_VERIFY" env-default:"false"`
	}

	poll struct {
		StateTTL        time.Duration `env:"POLL_STATE_TTL"         env-default:"24h"`
		CyclesPerSecond float64       `env:"POLL_CYCLES_PER_SECOND" env-default:"20"`
		Burst           int           `env:"POLL_BURST"             env-default:"5"`
	}

	dlq struct {
		WebhookURL string `env:"DLQ_WEBHOOK_URL"`
	}

	metrics struct {
		Addr string `env:"METRICS_ADDR" env-default:":9090"`
	}

	jobs struct {
		Dir string `env:"JOBS_DIR" env-default:"jobs"`
	}
)

func NewConfig() *Config {
	cfg, err := Load(projectRoot() + cfgFilePath)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads cfgFilePath when it exists and the process environment otherwise.
func Load(cfgFilePath string) (*Config, error) {
	cfg := &Config{}
	if err := loadCfg(cfgFilePath, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadCfg(cfgFilePath string, cfg *Config) error {
	envFileExists := checkFileExists(cfgFilePath)
	if envFileExists {
		err := cleanenv.ReadConfig(cfgFilePath, cfg)
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	} else {
		err := cleanenv.ReadEnv(cfg)
		if err != nil {
			return fmt.Errorf("missing environment variable: %w", err)
		}
	}
	return nil
}

// RedisAddr returns host:port of the redis server.
func (c *Config) RedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

func checkFileExists(fileName string) bool {
	exist := false
	if _, err := os.Stat(fileName); err == nil {
		exist = true
	}
	return exist
}

func projectRoot() string {
	_, b, _, _ := runtime.Caller(0)
	cwd := filepath.Dir(b)
	return cwd + "/../"
}
