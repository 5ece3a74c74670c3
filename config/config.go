package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultDatabasePath = "renders.db"
	DefaultSettingsPath = "settings.yaml"
	DefaultReportName   = "scan_report.txt"
)

const defaultPort = 8080

type Config struct {
	// directories scanned for date-coded batch folders, in scan order
	RootDirectories []string

	// database path
	DatabasePath string

	// dotted-key settings file (yaml, or the legacy settings.json)
	SettingsPath string

	// where the plain-text scan report is written; empty disables it
	ReportPath string

	// logging
	LogLevel  string
	LogFormat string
	LogOutput string

	// http surface
	Port        int
	CORSOrigins []string

	Settings *Settings
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadConfig reads the environment (after any .env file has been applied by
// the caller) and the settings file it points at.
func LoadConfig() (Config, error) {
	var roots []string
	for _, root := range splitList(getEnvOrDefault("ROOT_DIRECTORIES", "")) {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return Config{}, fmt.Errorf("failed to get absolute path for root directory '%s': %w", root, err)
		}
		roots = append(roots, filepath.Clean(absRoot))
	}

	dbPath := getEnvOrDefault("DATABASE_PATH", DefaultDatabasePath)
	absDBPath, err := filepath.Abs(dbPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for database '%s': %w", dbPath, err)
	}

	settingsPath := getEnvOrDefault("SETTINGS_PATH", DefaultSettingsPath)
	settings, err := LoadSettings(settingsPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load settings from '%s': %w", settingsPath, err)
	}

	cfg := Config{
		RootDirectories: roots,
		DatabasePath:    absDBPath,
		SettingsPath:    settingsPath,
		ReportPath:      getEnvOrDefault("REPORT_PATH", DefaultReportName),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       getEnvOrDefault("LOG_FORMAT", "console"),
		LogOutput:       getEnvOrDefault("LOG_OUTPUT", "stdout"),
		Port:            getEnvIntOrDefault("PORT", defaultPort),
		CORSOrigins:     splitList(getEnvOrDefault("CORS_ORIGINS", "http://localhost:5173")),
		Settings:        settings,
	}

	return cfg, nil
}
