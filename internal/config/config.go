package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"groupplay/internal/domain"
	"groupplay/internal/session"
)

// EnvPrefix is prepended to every environment variable, e.g. GROUPPLAY_PORT
const EnvPrefix = "GROUPPLAY"

// Store drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Game    GameConfig
	Store   StoreConfig
	Logging LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port     string
	Host     string
	Env      string  // "development" or "production"
	WSRate   float64 // relay messages per second per connection, 0 disables limiting
	WSBurst  int
	RelayURL string // relay a client connects to
}

// GameConfig holds game-related configuration
type GameConfig struct {
	MinPlayers          int
	MaxPlayers          int // 0 means unlimited
	RoomCodeLength      int
	StaleRoomTimeout    time.Duration
	CleanupInterval     time.Duration
	DerangementAttempts int
	DerangementFallback domain.FallbackPolicy
	AutoCompile         session.AutoCompilePolicy
}

// StoreConfig selects the room backend
type StoreConfig struct {
	Driver      string // "memory" or "postgres"
	DatabaseURL string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// defaults are keyed by flag name. Flags bound with BindFlags share the keys.
var defaults = map[string]interface{}{
	"port":                 "8080",
	"host":                 "0.0.0.0",
	"env":                  "development",
	"ws-rate":              20.0,
	"ws-burst":             40,
	"relay-url":            "ws://localhost:8080/ws",
	"min-players":          domain.DefaultMinPlayers,
	"max-players":          12,
	"room-code-length":     domain.DefaultRoomCodeLength,
	"stale-room-timeout":   2 * time.Hour,
	"cleanup-interval":     10 * time.Minute,
	"derangement-attempts": domain.DefaultDerangementAttempts,
	"derangement-fallback": string(domain.FallbackLastShuffle),
	"auto-compile":         string(session.AutoCompileHost),
	"store-driver":         DriverMemory,
	"database-url":         "",
	"log-level":            "info",
	"log-format":           "text",
}

// NewViper returns a viper instance with defaults that reads GROUPPLAY_* variables
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// usage documents each flag; the environment variable is GROUPPLAY_ plus the
// upper-cased flag name with dashes replaced by underscores.
var usage = map[string]string{
	"port":                 "port to listen on",
	"host":                 "address to bind to",
	"env":                  "development or production",
	"ws-rate":              "relay messages per second per connection, 0 disables limiting",
	"ws-burst":             "relay message burst per connection",
	"relay-url":            "relay websocket URL a client connects to",
	"min-players":          "players required to start a game",
	"max-players":          "room capacity, 0 for unlimited",
	"room-code-length":     "length of generated room codes",
	"stale-room-timeout":   "inactivity before a room is reaped, 0 disables reaping",
	"cleanup-interval":     "how often stale rooms are reaped",
	"derangement-attempts": "shuffles tried before the derangement fallback applies",
	"derangement-fallback": "shuffle or error",
	"auto-compile":         "which client compiles custom prompts: host, any or off",
	"store-driver":         "memory or postgres",
	"database-url":         "postgres connection string",
	"log-level":            "debug, info, warn or error",
	"log-format":           "text or json",
}

// AddFlags declares a flag for each of the given keys with its default.
func AddFlags(fs *pflag.FlagSet, keys ...string) {
	for _, key := range keys {
		help := fmt.Sprintf("%s (env: %s_%s)", usage[key], EnvPrefix, strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
		switch value := defaults[key].(type) {
		case string:
			fs.String(key, value, help)
		case int:
			fs.Int(key, value, help)
		case float64:
			fs.Float64(key, value, help)
		case time.Duration:
			fs.Duration(key, value, help)
		}
	}
}

// ServerFlags are the keys the server binary exposes as flags
var ServerFlags = []string{
	"port", "host", "env", "ws-rate", "ws-burst",
	"min-players", "max-players", "room-code-length",
	"stale-room-timeout", "cleanup-interval",
	"store-driver", "database-url", "log-level", "log-format",
}

// ClientFlags are the keys the party client exposes as flags
var ClientFlags = []string{
	"relay-url", "min-players", "max-players", "room-code-length",
	"derangement-attempts", "derangement-fallback", "auto-compile",
	"log-level", "log-format",
}

// BindFlags binds every flag of fs into v, so a flag wins over the
// environment which wins over the default.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
	})
}

// Load reads the configuration from v
func Load(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:     v.GetString("port"),
			Host:     v.GetString("host"),
			Env:      v.GetString("env"),
			WSRate:   v.GetFloat64("ws-rate"),
			WSBurst:  v.GetInt("ws-burst"),
			RelayURL: v.GetString("relay-url"),
		},
		Game: GameConfig{
			MinPlayers:          v.GetInt("min-players"),
			MaxPlayers:          v.GetInt("max-players"),
			RoomCodeLength:      v.GetInt("room-code-length"),
			StaleRoomTimeout:    v.GetDuration("stale-room-timeout"),
			CleanupInterval:     v.GetDuration("cleanup-interval"),
			DerangementAttempts: v.GetInt("derangement-attempts"),
			DerangementFallback: domain.FallbackPolicy(strings.ToLower(v.GetString("derangement-fallback"))),
			AutoCompile:         session.AutoCompilePolicy(strings.ToLower(v.GetString("auto-compile"))),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(v.GetString("store-driver")),
			DatabaseURL: v.GetString("database-url"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(v.GetString("log-level")),
			Format: strings.ToLower(v.GetString("log-format")),
		},
	}
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port (must be between 1-65535 inclusive): %s", c.Server.Port))
	}
	if c.Server.WSRate < 0 || c.Server.WSBurst < 0 {
		errs = append(errs, errors.New("ws-rate and ws-burst must not be negative"))
	}
	if c.Server.WSRate > 0 && c.Server.WSBurst == 0 {
		errs = append(errs, errors.New("ws-burst must be positive when ws-rate is set"))
	}

	if c.Game.MinPlayers < domain.DefaultMinPlayers {
		errs = append(errs, fmt.Errorf("min-players must be at least %d", domain.DefaultMinPlayers))
	}
	if c.Game.MaxPlayers != 0 && c.Game.MaxPlayers < c.Game.MinPlayers {
		errs = append(errs, errors.New("max-players must be 0 or at least min-players"))
	}
	if c.Game.RoomCodeLength < 4 {
		errs = append(errs, errors.New("room-code-length must be at least 4"))
	}
	if c.Game.DerangementAttempts < 1 {
		errs = append(errs, errors.New("derangement-attempts must be positive"))
	}
	if !c.Game.DerangementFallback.Valid() {
		errs = append(errs, fmt.Errorf("unknown derangement-fallback %q (want shuffle or error)", c.Game.DerangementFallback))
	}
	if !c.Game.AutoCompile.Valid() {
		errs = append(errs, fmt.Errorf("unknown auto-compile %q (want host, any or off)", c.Game.AutoCompile))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("database-url is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store-driver %q (want memory or postgres)", c.Store.Driver))
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		errs = append(errs, fmt.Errorf("unknown log-format %q (want json or text)", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// SessionConfig returns the session client settings
func (c *Config) SessionConfig(rng domain.Rand) session.Config {
	return session.Config{
		MinPlayers:     c.Game.MinPlayers,
		MaxPlayers:     c.Game.MaxPlayers,
		RoomCodeLength: c.Game.RoomCodeLength,
		AutoCompile:    c.Game.AutoCompile,
		Rand:           rng,
		Deranger: domain.Deranger{
			Rand:        rng,
			MaxAttempts: c.Game.DerangementAttempts,
			Fallback:    c.Game.DerangementFallback,
		},
	}
}

// LogLevel parses the configured level, defaulting to info
func (c *Config) LogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a logger writing to w in the configured format and level
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: c.LogLevel(),
	}

	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
