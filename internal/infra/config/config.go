package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"UTC"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	ScoreCache struct {
		Backend   string        `envconfig:"SCORE_CACHE_BACKEND" default:"postgres"`
		TTL       time.Duration `envconfig:"SCORE_CACHE_TTL" default:"60m"`
		Retention time.Duration `envconfig:"SCORE_CACHE_RETENTION" default:"744h"`
	} `envconfig:""`

	Recommend struct {
		MaxActive     int           `envconfig:"RECOMMEND_MAX_ACTIVE" default:"3"`
		Cooldown      time.Duration `envconfig:"RECOMMEND_COOLDOWN" default:"4h"`
		BatchSize     int           `envconfig:"RECOMMEND_BATCH_SIZE" default:"3"`
		DismissWindow time.Duration `envconfig:"RECOMMEND_DISMISS_WINDOW" default:"168h"`
		QuietStart    int           `envconfig:"RECOMMEND_QUIET_START" default:"0"`
		QuietEnd      int           `envconfig:"RECOMMEND_QUIET_END" default:"0"`
	} `envconfig:""`

	Queue struct {
		Backend   string `envconfig:"QUEUE_BACKEND" default:"redis"`
		RabbitURL string `envconfig:"RABBITMQ_URL"`
		Key       string `envconfig:"CONSUMPTION_QUEUE_KEY" default:"consumption_logged"`
	} `envconfig:""`

	Breaker struct {
		Failures uint32        `envconfig:"BREAKER_FAILURES" default:"5"`
		Timeout  time.Duration `envconfig:"BREAKER_TIMEOUT" default:"30s"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Location возвращает часовой пояс сервиса, UTC при ошибке.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}
