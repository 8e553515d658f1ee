package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full process configuration, read from the environment
// (optionally seeded by a .env file in the working directory).
type Config struct {
	HostingAddr         string `env:"HOSTING_ADDR" envDefault:":7911"`
	HTTPAddr            string `env:"HTTP_ADDR" envDefault:":7922"`
	MaxConnectionsPerIP int    `env:"MAX_CONNECTIONS_PER_IP" envDefault:"-1"`

	CoreType        string        `env:"CORE_TYPE" envDefault:"shared"`
	CoreDir         string        `env:"CORE_DIR" envDefault:"./core"`
	CoreFileRegex   string        `env:"CORE_FILE_REGEX" envDefault:".*\\.so$"`
	CoreTmpDir      string        `env:"CORE_TMP_DIR" envDefault:"./tmp"`
	CoreLoadPerCall bool          `env:"CORE_LOAD_PER_CALL" envDefault:"false"`
	HornetPath      string        `env:"HORNET_PATH" envDefault:"./hornet"`
	HornetTimeout   time.Duration `env:"HORNET_TIMEOUT" envDefault:"5s"`

	CardDBs    []string `env:"CARD_DBS" envDefault:"./data/cards.cdb" envSeparator:","`
	BanlistDir string   `env:"BANLIST_DIR" envDefault:"./data/banlists"`
	ScriptDirs []string `env:"SCRIPT_DIRS" envDefault:"./data/script" envSeparator:","`

	ReplayDSN        string `env:"REPLAY_DSN"`
	ReplaySQLitePath string `env:"REPLAY_SQLITE_PATH" envDefault:"./replays.db"`

	WebhookToken string `env:"WEBHOOK_TOKEN"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

const (
	CoreTypeShared = "shared"
	CoreTypeHornet = "hornet"
)

var ErrUnknownCoreType = errors.New("unknown core type")

// Load reads .env (if present) and parses the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	switch c.CoreType {
	case CoreTypeShared, CoreTypeHornet:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCoreType, c.CoreType)
	}
	if c.HornetTimeout <= 0 {
		return fmt.Errorf("hornet timeout must be positive, got %v", c.HornetTimeout)
	}
	return nil
}
