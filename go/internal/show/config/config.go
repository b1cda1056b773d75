package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const defaultPath = "config.yaml"

// Config is the full client configuration. The YAML file provides the base
// values and environment variables override them.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	Viewer struct {
		UserID   string `yaml:"user_id"`
		UserName string `yaml:"user_name"`
		Token    string `yaml:"token"`
	} `yaml:"viewer"`
	RoomID string `yaml:"room_id"`

	API struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`

	Transport string `yaml:"transport"` // websocket | nats
	Socket    struct {
		URL           string        `yaml:"url"`
		ReconnectWait time.Duration `yaml:"reconnect_wait"`
		PingInterval  time.Duration `yaml:"ping_interval"`
	} `yaml:"socket"`
	NATS struct {
		URL           string `yaml:"url"`
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Cache struct {
		Type          string        `yaml:"type"` // memory | redis
		TTL           time.Duration `yaml:"ttl"`
		RedisAddr     string        `yaml:"redis_addr"`
		RedisPassword string        `yaml:"redis_password"`
		RedisDB       int           `yaml:"redis_db"`
		KeyPrefix     string        `yaml:"key_prefix"`
	} `yaml:"cache"`

	Timings Timings `yaml:"timings"`
}

// Timings are the client-side delays and display windows.
type Timings struct {
	LeaveDebounce     time.Duration `yaml:"leave_debounce"`
	RefetchThrottle   time.Duration `yaml:"refetch_throttle"`
	BidFallback       time.Duration `yaml:"bid_fallback"`
	WinnerAlert       time.Duration `yaml:"winner_alert"`
	GiveawayWinner    time.Duration `yaml:"giveaway_winner"`
	TimeAddedFlag     time.Duration `yaml:"time_added_flag"`
	RallyDelay        time.Duration `yaml:"rally_delay"`
	NotificationLimit int           `yaml:"notification_limit"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{
		Port:      "8082",
		LogLevel:  "info",
		Transport: "websocket",
	}
	cfg.API.BaseURL = "http://localhost:3000/api"
	cfg.Socket.URL = "ws://localhost:3000/socket"
	cfg.Socket.ReconnectWait = 2 * time.Second
	cfg.Socket.PingInterval = 30 * time.Second
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.StreamName = "SHOW_EVENTS"
	cfg.NATS.SubjectPrefix = "show"
	cfg.Cache.Type = "memory"
	cfg.Cache.TTL = 10 * time.Minute
	cfg.Cache.RedisAddr = "localhost:6379"
	cfg.Cache.KeyPrefix = "liveshow"
	cfg.Timings = Timings{
		LeaveDebounce:     300 * time.Millisecond,
		RefetchThrottle:   500 * time.Millisecond,
		BidFallback:       500 * time.Millisecond,
		WinnerAlert:       5 * time.Second,
		GiveawayWinner:    10 * time.Second,
		TimeAddedFlag:     3 * time.Second,
		RallyDelay:        2 * time.Second,
		NotificationLimit: 20,
	}
	return cfg
}

// Load reads .env, then the YAML file named by LIVESHOW_CONFIG (config.yaml
// by default, optional unless named explicitly), then environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	cfg := Default()

	path, explicit := os.LookupEnv("LIVESHOW_CONFIG")
	if !explicit {
		path = defaultPath
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Viewer.UserID = getEnv("VIEWER_USER_ID", c.Viewer.UserID)
	c.Viewer.UserName = getEnv("VIEWER_USER_NAME", c.Viewer.UserName)
	c.Viewer.Token = getEnv("VIEWER_TOKEN", c.Viewer.Token)
	c.RoomID = getEnv("ROOM_ID", c.RoomID)

	c.API.BaseURL = getEnv("API_BASE_URL", c.API.BaseURL)

	c.Transport = getEnv("TRANSPORT", c.Transport)
	c.Socket.URL = getEnv("SOCKET_URL", c.Socket.URL)
	c.Socket.ReconnectWait = getEnvAsDuration("SOCKET_RECONNECT_WAIT", c.Socket.ReconnectWait)
	c.Socket.PingInterval = getEnvAsDuration("SOCKET_PING_INTERVAL", c.Socket.PingInterval)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.StreamName = getEnv("NATS_STREAM", c.NATS.StreamName)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)

	c.Cache.Type = getEnv("CACHE_TYPE", c.Cache.Type)
	c.Cache.TTL = getEnvAsDuration("CACHE_TTL", c.Cache.TTL)
	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getEnv("REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Cache.RedisDB = getEnvAsInt("REDIS_DB", c.Cache.RedisDB)
	c.Cache.KeyPrefix = getEnv("CACHE_KEY_PREFIX", c.Cache.KeyPrefix)

	t := &c.Timings
	t.LeaveDebounce = getEnvAsDuration("LEAVE_DEBOUNCE", t.LeaveDebounce)
	t.RefetchThrottle = getEnvAsDuration("REFETCH_THROTTLE", t.RefetchThrottle)
	t.BidFallback = getEnvAsDuration("BID_FALLBACK", t.BidFallback)
	t.WinnerAlert = getEnvAsDuration("WINNER_ALERT", t.WinnerAlert)
	t.GiveawayWinner = getEnvAsDuration("GIVEAWAY_WINNER_ALERT", t.GiveawayWinner)
	t.TimeAddedFlag = getEnvAsDuration("TIME_ADDED_FLAG", t.TimeAddedFlag)
	t.RallyDelay = getEnvAsDuration("RALLY_DELAY", t.RallyDelay)
	t.NotificationLimit = getEnvAsInt("NOTIFICATION_LIMIT", t.NotificationLimit)
}

// Validate rejects unknown transport and cache kinds.
func (c *Config) Validate() error {
	switch c.Transport {
	case "websocket", "nats":
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache type %q", c.Cache.Type)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring invalid duration")
	}
	return defaultValue
}
