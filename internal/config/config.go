package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Addr          string        `yaml:"addr"`
	DBPath        string        `yaml:"db_path"`
	SecretKey     string        `yaml:"secret_key"`
	SyncWorkers   int           `yaml:"sync_workers"`
	SyncTimeout   time.Duration `yaml:"sync_timeout"`
	SyncInterval  time.Duration `yaml:"sync_interval"` // 0 disables the background scheduler
	AdminUser     string        `yaml:"admin_user"`
	AdminPassword string        `yaml:"admin_password"`
	Debug         bool          `yaml:"debug"`
}

func defaults() *Config {
	return &Config{
		Addr:          ":8080",
		DBPath:        defaultDBPath(),
		SyncWorkers:   4,
		SyncTimeout:   5 * time.Minute,
		SyncInterval:  0,
		AdminUser:     "admin",
		AdminPassword: "changeit",
	}
}

// Load populates Config from an optional YAML file, environment variables
// and command line flags, in increasing order of precedence.
func Load() *Config {
	cfg := defaults()

	if path := configPath(os.Args[1:]); path != "" {
		if err := applyFile(cfg, path); err != nil {
			log.Printf("Warning: could not load config file %s: %v", path, err)
		}
	}

	applyEnv(cfg)

	// Command Line Flags (Override File and Env)
	var configFile string
	flag.StringVar(&configFile, "config", getEnv("SECLENS_CONFIG", ""), "Path to YAML config file")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite database")
	flag.StringVar(&cfg.SecretKey, "secret-key", cfg.SecretKey, "Master key for credential encryption")
	flag.IntVar(&cfg.SyncWorkers, "sync-workers", cfg.SyncWorkers, "Concurrent tenant syncs per batch")
	flag.DurationVar(&cfg.SyncTimeout, "sync-timeout", cfg.SyncTimeout, "Per-tenant sync run budget")
	flag.DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "Periodic sync-all interval (0 disables)")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable verbose debug logging")
	flag.Parse()

	return cfg
}

// configPath pre-scans the arguments for -config so the file can be read
// before the full flag set is parsed.
func configPath(args []string) string {
	for i, a := range args {
		name, value, hasValue := strings.Cut(a, "=")
		if name != "-config" && name != "--config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return getEnv("SECLENS_CONFIG", "")
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	cfg.Addr = getEnv("SECLENS_ADDR", cfg.Addr)
	cfg.DBPath = getEnv("SECLENS_DB", cfg.DBPath)
	cfg.SecretKey = getEnv("SECLENS_SECRET_KEY", cfg.SecretKey)
	cfg.SyncWorkers = getEnvInt("SECLENS_SYNC_WORKERS", cfg.SyncWorkers)
	cfg.SyncTimeout = getEnvDuration("SECLENS_SYNC_TIMEOUT", cfg.SyncTimeout)
	cfg.SyncInterval = getEnvDuration("SECLENS_SYNC_INTERVAL", cfg.SyncInterval)
	cfg.AdminUser = getEnv("SECLENS_ADMIN_USER", cfg.AdminUser)
	cfg.AdminPassword = getEnv("SECLENS_ADMIN_PASSWORD", cfg.AdminPassword)
	cfg.Debug = getEnvBool("SECLENS_DEBUG", cfg.Debug)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// defaultDBPath returns the default database path in the user's home
// directory, creating it if needed.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return "seclens.db"
	}

	dir := filepath.Join(home, ".seclens")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: Could not create .seclens directory, using current dir: %v", err)
		return "seclens.db"
	}

	return filepath.Join(dir, "seclens.db")
}
