// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for all databases (defaults to "./data")
	Port       int
	DevMode    bool
	LogLevel   string
	AssetID    string // Identity of the underlying fungible asset, e.g. "USDQ"
	AdminToken string // Bearer token required for administrative endpoints

	// Simulated strategy accrual rates, in basis points per accrual tick.
	OptionsYieldBps int
	LPYieldBps      int
	StakingYieldBps int

	Backup *BackupConfig
}

// BackupConfig holds backup and off-site upload configuration
type BackupConfig struct {
	Dir       string // Local backup directory (defaults to DataDir/backups)
	S3Enabled bool
	S3Bucket  string
	S3Prefix  string
	S3Region  string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		// Check ../data first (when running from a checkout), then ./data
		if _, err := os.Stat("../data"); err == nil {
			dataDir = "../data"
		} else {
			dataDir = "./data"
		}
	}

	cfg := &Config{
		DataDir:         dataDir,
		Port:            getEnvAsInt("PORT", 8010),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		AssetID:         getEnv("ASSET_ID", "USDQ"),
		AdminToken:      getEnv("ADMIN_TOKEN", ""),
		OptionsYieldBps: getEnvAsInt("OPTIONS_YIELD_BPS", 2),
		LPYieldBps:      getEnvAsInt("LP_YIELD_BPS", 1),
		StakingYieldBps: getEnvAsInt("STAKING_YIELD_BPS", 1),
		Backup:          loadBackupConfig(dataDir),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.AssetID == "" {
		return fmt.Errorf("ASSET_ID must not be empty")
	}
	if c.Backup.S3Enabled && c.Backup.S3Bucket == "" {
		return fmt.Errorf("BACKUP_S3_BUCKET required when BACKUP_S3_ENABLED is set")
	}
	return nil
}

func loadBackupConfig(dataDir string) *BackupConfig {
	return &BackupConfig{
		Dir:       getEnv("BACKUP_DIR", dataDir+"/backups"),
		S3Enabled: getEnvAsBool("BACKUP_S3_ENABLED", false),
		S3Bucket:  getEnv("BACKUP_S3_BUCKET", ""),
		S3Prefix:  getEnv("BACKUP_S3_PREFIX", "trivault"),
		S3Region:  getEnv("BACKUP_S3_REGION", "eu-central-1"),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
