package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

type Config struct {
	LogLevel          string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort          string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Storage           string `yaml:"storage" env:"STORAGE" env-default:"redis"`
	Redis             Redis  `yaml:"redis"`
	SQLiteStoragePath string `yaml:"sqlite-storage-path" env:"SQLITE_STORAGE_PATH" env-default:"tictactoe.db"`
	Game              Game   `yaml:"game"`
}

type Redis struct {
	Host    string        `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port    string        `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	LockTTL time.Duration `yaml:"lock-ttl" env:"REDIS_LOCK_TTL" env-default:"5s"`
}

type Game struct {
	PollInterval        time.Duration `yaml:"poll-interval" env:"GAME_POLL_INTERVAL" env-default:"1s"`
	StaleAfter          time.Duration `yaml:"stale-after" env:"GAME_STALE_AFTER" env-default:"1h"`
	FinishedRetention   time.Duration `yaml:"finished-retention" env:"GAME_FINISHED_RETENTION" env-default:"10s"`
	ThinkTime           time.Duration `yaml:"think-time" env:"GAME_THINK_TIME"`
	HardOpeningShortcut bool          `yaml:"hard-opening-shortcut" env:"GAME_HARD_OPENING_SHORTCUT"`
}

// defaults holds the values whose zero is a valid setting, so env-default can't carry them.
func defaults() *Config {
	return &Config{
		Game: Game{
			ThinkTime:           500 * time.Millisecond,
			HardOpeningShortcut: true,
		},
	}
}

// Load reads an optional .env, then the yaml file at path. Without the file only the environment is used.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := defaults()

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err = cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("unable to read environment: %w", err)
		}
	} else if err = cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

func (that *Config) validate() error {
	switch that.Storage {
	case StorageRedis, StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q, want %q or %q", that.Storage, StorageRedis, StorageMemory)
	}

	if that.Game.PollInterval <= 0 {
		return fmt.Errorf("game.poll-interval must be positive, got %s", that.Game.PollInterval)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
