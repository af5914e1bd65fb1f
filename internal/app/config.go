package app

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	HTTPAddr  string `yaml:"http_addr" env:"HTTP_ADDR" env-default:":8080"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn warning error"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"text" validate:"oneof=text json"`
	// LogFile is the rotated log file. Empty logs to stdout only.
	LogFile string `yaml:"log_file" env:"LOG_FILE" env-default:"logs/mediashare.log"`

	MongoURI      string `yaml:"mongo_uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017" validate:"required"`
	MongoDatabase string `yaml:"mongo_db" env:"MONGO_DB" env-default:"mediashare" validate:"required"`
	// RedisURL enables the shared provider cache. Empty disables it.
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`

	BotToken       string `yaml:"bot_token" env:"BOT_TOKEN" validate:"required"`
	BotUsername    string `yaml:"bot_username" env:"BOT_USERNAME" validate:"required"`
	TelegramAPIURL string `yaml:"telegram_api_url" env:"TELEGRAM_API_URL" env-default:"https://api.telegram.org" validate:"url"`
	WebhookSecret  string `yaml:"webhook_secret" env:"WEBHOOK_SECRET"`

	OwnerID         int64   `yaml:"owner_id" env:"OWNER_ID" validate:"required"`
	LogChannelID    int64   `yaml:"log_channel_id" env:"LOG_CHANNEL_ID"`
	UpdateChannelID int64   `yaml:"update_channel_id" env:"UPDATE_CHANNEL_ID"`
	TMDBChannelIDs  []int64 `yaml:"tmdb_channel_ids" env:"TMDB_CHANNEL_ID" env-separator:","`
	SendUpdates     bool    `yaml:"send_updates" env:"SEND_UPDATES" env-default:"false"`

	// MyDomain is the public base URL. It prefixes stream links and the webhook.
	MyDomain    string   `yaml:"my_domain" env:"MY_DOMAIN" validate:"omitempty,url"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:","`

	TMDBAPIKey  string `yaml:"tmdb_api_key" env:"TMDB_API_KEY"`
	TMDBBaseURL string `yaml:"tmdb_base_url" env:"TMDB_BASE_URL" env-default:"https://api.themoviedb.org/3" validate:"url"`
	IMDBBaseURL string `yaml:"imdb_base_url" env:"IMDB_BASE_URL"`

	TokenTTL           time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"24h" validate:"gt=0"`
	CacheSize          int           `yaml:"cache_size" env:"CACHE_SIZE" env-default:"1000" validate:"gt=0"`
	CacheTTL           time.Duration `yaml:"cache_ttl" env:"CACHE_TTL" env-default:"5m" validate:"gt=0"`
	QueuePace          time.Duration `yaml:"queue_pace" env:"QUEUE_PACE" env-default:"0s" validate:"gte=0"`
	AnnounceDelay      time.Duration `yaml:"announce_delay" env:"ANNOUNCE_DELAY" env-default:"3s" validate:"gte=0"`
	MaxFilesPerSession int           `yaml:"max_files_per_session" env:"MAX_FILES_PER_SESSION" env-default:"10" validate:"gte=0"`
	RateLimitRPS       float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS" env-default:"100" validate:"gt=0"`
	RateLimitBurst     int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST" env-default:"200" validate:"gt=0"`
	RatingsCron        string        `yaml:"ratings_cron" env:"RATINGS_CRON" env-default:"@daily"`

	OTelEndpoint   string  `yaml:"otel_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSampleRate float64 `yaml:"otel_sample_rate" env:"OTEL_SAMPLE_RATE" env-default:"0.1" validate:"gte=0,lte=1"`
}

// LoadConfig reads the YAML file named by CONFIG_PATH when set, with the
// environment taking precedence, or the environment alone otherwise.
func LoadConfig() (Config, error) {
	var cfg Config
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	cfg.normalize()
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.MyDomain = strings.TrimRight(strings.TrimSpace(c.MyDomain), "/")
	c.BotUsername = strings.TrimPrefix(strings.TrimSpace(c.BotUsername), "@")
	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins
}

// IsTMDBChannel reports whether posts from channelID are enriched.
func (c Config) IsTMDBChannel(channelID int64) bool {
	return slices.Contains(c.TMDBChannelIDs, channelID)
}

// WebhookURL is empty when no public domain is configured.
func (c Config) WebhookURL() string {
	if c.MyDomain == "" {
		return ""
	}
	return c.MyDomain + "/telegram/webhook"
}
