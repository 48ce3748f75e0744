package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/skatehub/gateway/internal/domain"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Port   int    `mapstructure:"port"`
	Secret string `mapstructure:"secret"`
	// TrustedProxies lists the proxy addresses or CIDRs whose forwarding
	// headers are believed. Empty means the socket peer is the client.
	TrustedProxies []string        `mapstructure:"trusted_proxies"`
	Log            LogConfig       `mapstructure:"log"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	Rooms          RoomsConfig     `mapstructure:"rooms"`
	WS             WSConfig        `mapstructure:"ws"`
	Events         EventsConfig    `mapstructure:"events"`
	JWT            JWTConfig       `mapstructure:"jwt"`
	Database       DatabaseConfig  `mapstructure:"database"`
	CORS           CORSConfig      `mapstructure:"cors"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Window  time.Duration `mapstructure:"window"`
	Ceiling int           `mapstructure:"ceiling"`
}

type RoomsConfig struct {
	Capacities    map[string]int `mapstructure:"capacities"`
	SweepInterval time.Duration  `mapstructure:"sweep_interval"`
	Lobby         bool           `mapstructure:"lobby"`
	Backpressure  string         `mapstructure:"backpressure"`
}

// CapacityTable overlays configured capacities on the defaults.
func (r RoomsConfig) CapacityTable() domain.Capacities {
	caps := domain.DefaultCapacities()
	for name, n := range r.Capacities {
		t := domain.RoomType(strings.ToLower(name))
		if !t.Valid() {
			log.Warn().Str("module", "config").Str("room_type", name).Msg("ignoring capacity for unknown room type")
			continue
		}
		caps[t] = n
	}
	return caps
}

type WSConfig struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

type EventsConfig struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

type JWTConfig struct {
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

// DatabaseConfig selects the user directory. An empty URL keeps users in memory.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type CORSConfig struct {
	Origins []string `mapstructure:"origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("trusted_proxies", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("rate_limit.window", "60s")
	v.SetDefault("rate_limit.ceiling", 10)
	v.SetDefault("rooms.capacities", map[string]int{"battle": 2, "game": 8, "spot": 100, "global": domain.Unbounded})
	v.SetDefault("rooms.sweep_interval", "5m")
	v.SetDefault("rooms.lobby", true)
	v.SetDefault("rooms.backpressure", "drop")
	v.SetDefault("ws.read_limit", 32768)
	v.SetDefault("ws.ping_period", "54s")
	v.SetDefault("ws.pong_wait", "60s")
	v.SetDefault("ws.write_wait", "10s")
	v.SetDefault("ws.send_buffer", 64)
	v.SetDefault("events.rate", 20)
	v.SetDefault("events.burst", 40)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.audience", "")
	v.SetDefault("database.url", "")
	v.SetDefault("cors.origins", []string{"*"})
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("SKATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.JWT.Secret == "" {
		return nil, errors.New("jwt.secret is required (set SKATE_JWT_SECRET)")
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Bool("postgres", cfg.Database.URL != "").Msg("config ready")
	return &cfg, nil
}
