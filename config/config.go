package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultImportConcurrency = 4
	DefaultResolveTimeout    = 30 * time.Second
	DefaultCacheSize         = 256
	DefaultCacheTTL          = 10 * time.Minute
	DefaultLogFile           = "mc-resource-manager.log"
	defaultUserAgent         = "mc-resource-manager/dev (unknown-user)"
	databaseFileName         = "resources.db"
)

// ResourceDirs are the subdirectories of the Minecraft directory holding importable files.
var ResourceDirs = []string{"mods", "resourcepacks", "shaderpacks", "saves"}

// Config holds all configuration for the application.
// Values are loaded by Viper from a config file and/or environment variables.
type Config struct {
	MinecraftDir      string        `mapstructure:"MINECRAFT_DIR"`
	DatabasePath      string        `mapstructure:"DATABASE_PATH"` // Defaults to <MINECRAFT_DIR>/resources.db
	ImportConcurrency int           `mapstructure:"IMPORT_CONCURRENCY"`
	ResolveTimeout    time.Duration `mapstructure:"RESOLVE_TIMEOUT"`
	CacheSize         int           `mapstructure:"CACHE_SIZE"`
	CacheTTL          time.Duration `mapstructure:"CACHE_TTL"`
	ModrinthLookup    bool          `mapstructure:"MODRINTH_LOOKUP"`
	ModrinthAPIKey    string        `mapstructure:"MODRINTH_API_KEY"`
	UserAgent         string        `mapstructure:"USERAGENT"`
	LogFile           string        `mapstructure:"LOG_FILE"`
}

var envKeys = []string{
	"MINECRAFT_DIR",
	"DATABASE_PATH",
	"IMPORT_CONCURRENCY",
	"RESOLVE_TIMEOUT",
	"CACHE_SIZE",
	"CACHE_TTL",
	"MODRINTH_LOOKUP",
	"MODRINTH_API_KEY",
	"USERAGENT",
	"LOG_FILE",
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)   // Path to look for the config file in
	viper.SetConfigName(".env") // Name of config file (without extension)
	viper.SetConfigType("env")  // REQUIRED if the config file does not have the extension in the name

	vipErr := viper.ReadInConfig()
	if _, ok := vipErr.(viper.ConfigFileNotFoundError); ok {
		slog.Info("Config file (.env) not found, relying on environment variables.")
	} else if vipErr != nil {
		return Config{}, fmt.Errorf("fatal error config file: %w", vipErr)
	}

	viper.AutomaticEnv()
	for _, key := range envKeys {
		if err := viper.BindEnv(key); err != nil {
			slog.Warn("Unable to bind env var", "key", key, "error", err)
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %w", err)
	}

	processConfigDefaults(&config)
	if err := validateAndEnsureDirectories(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// processConfigDefaults fills in every unset optional value.
func processConfigDefaults(config *Config) {
	if config.ImportConcurrency <= 0 {
		config.ImportConcurrency = DefaultImportConcurrency
	}
	if config.ResolveTimeout <= 0 {
		config.ResolveTimeout = DefaultResolveTimeout
	}
	if config.CacheSize <= 0 {
		config.CacheSize = DefaultCacheSize
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if config.LogFile == "" {
		config.LogFile = DefaultLogFile
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
		if config.ModrinthLookup {
			slog.Warn("USERAGENT not set in config or environment, using default.")
		}
	}
}

// validateAndEnsureDirectories requires MINECRAFT_DIR, creates it and its
// resource subdirectories when missing and derives the database path.
func validateAndEnsureDirectories(config *Config) error {
	if config.MinecraftDir == "" {
		slog.Error("MINECRAFT_DIR is not set")
		return fmt.Errorf("MINECRAFT_DIR is required")
	}

	dirs := []string{config.MinecraftDir}
	for _, sub := range ResourceDirs {
		dirs = append(dirs, filepath.Join(config.MinecraftDir, sub))
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			slog.Info("Directory does not exist, creating it", "path", dir)
			if err := os.MkdirAll(dir, 0755); err != nil {
				slog.Error("Failed to create directory", "path", dir, "error", err)
				return err
			}
		} else if err != nil {
			slog.Error("Failed to check directory", "path", dir, "error", err)
			return err
		}
	}

	if config.DatabasePath == "" {
		config.DatabasePath = filepath.Join(config.MinecraftDir, databaseFileName)
	}
	return nil
}
