package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestProcessConfigDefaults(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		viper.Reset()
		cfg := Config{}
		processConfigDefaults(&cfg)

		if cfg.ImportConcurrency != DefaultImportConcurrency {
			t.Errorf("Expected ImportConcurrency to be %d, got %d", DefaultImportConcurrency, cfg.ImportConcurrency)
		}
		if cfg.ResolveTimeout != DefaultResolveTimeout {
			t.Errorf("Expected ResolveTimeout to be %s, got %s", DefaultResolveTimeout, cfg.ResolveTimeout)
		}
		if cfg.CacheSize != DefaultCacheSize || cfg.CacheTTL != DefaultCacheTTL {
			t.Errorf("Expected cache defaults, got size %d ttl %s", cfg.CacheSize, cfg.CacheTTL)
		}
		if cfg.LogFile != DefaultLogFile {
			t.Errorf("Expected LogFile to be %s, got %s", DefaultLogFile, cfg.LogFile)
		}
		if cfg.UserAgent == "" {
			t.Error("Expected UserAgent to have a default value")
		}
	})

	t.Run("respects existing values", func(t *testing.T) {
		viper.Reset()
		cfg := Config{
			ImportConcurrency: 16,
			ResolveTimeout:    time.Second,
			UserAgent:         "custom-agent",
			LogFile:           "custom.log",
		}
		processConfigDefaults(&cfg)

		if cfg.ImportConcurrency != 16 {
			t.Errorf("Expected ImportConcurrency to stay 16, got %d", cfg.ImportConcurrency)
		}
		if cfg.ResolveTimeout != time.Second {
			t.Errorf("Expected ResolveTimeout to stay 1s, got %s", cfg.ResolveTimeout)
		}
		if cfg.UserAgent != "custom-agent" {
			t.Errorf("Expected UserAgent to stay custom-agent, got %s", cfg.UserAgent)
		}
		if cfg.LogFile != "custom.log" {
			t.Errorf("Expected LogFile to stay custom.log, got %s", cfg.LogFile)
		}
	})
}

func TestValidateAndEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("missing minecraft dir", func(t *testing.T) {
		cfg := Config{MinecraftDir: ""}
		err := validateAndEnsureDirectories(&cfg)
		if err == nil {
			t.Error("Expected error for missing MinecraftDir")
		}
	})

	t.Run("creates directories", func(t *testing.T) {
		mcDir := filepath.Join(tmpDir, "mc")
		cfg := Config{MinecraftDir: mcDir}
		err := validateAndEnsureDirectories(&cfg)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		for _, sub := range ResourceDirs {
			path := filepath.Join(mcDir, sub)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				t.Errorf("Directory %s was not created", sub)
			}
		}
		if cfg.DatabasePath != filepath.Join(mcDir, "resources.db") {
			t.Errorf("Unexpected DatabasePath %s", cfg.DatabasePath)
		}
	})

	t.Run("keeps explicit database path", func(t *testing.T) {
		cfg := Config{MinecraftDir: filepath.Join(tmpDir, "mc2"), DatabasePath: "/var/lib/mcrm.db"}
		if err := validateAndEnsureDirectories(&cfg); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if cfg.DatabasePath != "/var/lib/mcrm.db" {
			t.Errorf("DatabasePath was overwritten: %s", cfg.DatabasePath)
		}
	})
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	mcDir := filepath.Join(dir, "minecraft")
	env := "MINECRAFT_DIR=" + mcDir + "\nIMPORT_CONCURRENCY=2\nRESOLVE_TIMEOUT=5s\nMODRINTH_LOOKUP=true\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.MinecraftDir != mcDir {
		t.Errorf("Expected MinecraftDir %s, got %s", mcDir, cfg.MinecraftDir)
	}
	if cfg.ImportConcurrency != 2 {
		t.Errorf("Expected ImportConcurrency 2, got %d", cfg.ImportConcurrency)
	}
	if cfg.ResolveTimeout != 5*time.Second {
		t.Errorf("Expected ResolveTimeout 5s, got %s", cfg.ResolveTimeout)
	}
	if !cfg.ModrinthLookup {
		t.Error("Expected ModrinthLookup to be true")
	}
	if cfg.CacheSize != DefaultCacheSize {
		t.Errorf("Expected default CacheSize, got %d", cfg.CacheSize)
	}
}
