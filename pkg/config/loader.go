package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigEnv names an explicit YAML config file.
	ConfigEnv = "SCOREGATE_CONFIG"

	// EnvFileEnv names an explicit .env file.
	EnvFileEnv = "SCOREGATE_ENV_FILE"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, SCOREGATE_CONFIG env, ./config.yaml, /etc/scoregate/config.yaml)
//  3. .env file (SCOREGATE_ENV_FILE or ./.env); existing variables win
//  4. Environment variable overrides, including legacy names
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. SCOREGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/scoregate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv(ConfigEnv); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/scoregate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// loadEnvFile populates the process environment from a .env file. A missing
// default ./.env is not an error; a missing explicit file is.
func loadEnvFile() error {
	path := os.Getenv(EnvFileEnv)
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// applyEnvOverrides maps environment variables to config fields. Legacy
// names (PORT, AUDIVERIS_CMD, JAVA_TOOL_OPTIONS) are applied first so the
// SCOREGATE_ names win when both are set.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	// Legacy env var mappings.
	if v := os.Getenv("PORT"); v != "" {
		setInt(&errs, "PORT", v, &cfg.Server.Port)
	}
	if v := os.Getenv("AUDIVERIS_CMD"); v != "" {
		cfg.Engine.Command = v
	}
	if v := os.Getenv("JAVA_TOOL_OPTIONS"); v != "" {
		cfg.Engine.JavaOptions = v
	}

	if v := os.Getenv("SCOREGATE_PORT"); v != "" {
		setInt(&errs, "SCOREGATE_PORT", v, &cfg.Server.Port)
	}
	if v := os.Getenv("SCOREGATE_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SCOREGATE_MAX_UPLOAD_BYTES: %w", err))
		} else {
			cfg.Server.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("SCOREGATE_ENGINE_COMMAND"); v != "" {
		cfg.Engine.Command = v
	}
	if v := os.Getenv("SCOREGATE_ENGINE_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SCOREGATE_ENGINE_TIMEOUT: %w", err))
		} else {
			cfg.Engine.Timeout = d
		}
	}
	if v := os.Getenv("SCOREGATE_MAX_CONCURRENT"); v != "" {
		setInt(&errs, "SCOREGATE_MAX_CONCURRENT", v, &cfg.Engine.MaxConcurrent)
	}
	if v := os.Getenv("SCOREGATE_WORK_DIR"); v != "" {
		cfg.Engine.WorkDir = v
	}
	if v := os.Getenv("SCOREGATE_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("SCOREGATE_STORAGE_SIZE"); v != "" {
		setInt(&errs, "SCOREGATE_STORAGE_SIZE", v, &cfg.Storage.MaxSize)
	}
	if v := os.Getenv("SCOREGATE_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("SCOREGATE_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}
	if v := os.Getenv("SCOREGATE_JWT_SECRET"); v != "" {
		cfg.Auth.JWT.Secret = v
	}
	if v := os.Getenv("SCOREGATE_MCP_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SCOREGATE_MCP_ENABLED: %w", err))
		} else {
			cfg.MCP.Enabled = b
		}
	}
	if v := os.Getenv("SCOREGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// SCOREGATE_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("SCOREGATE_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			errs = append(errs, err)
		} else if len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	return errors.Join(errs...)
}

func setInt(errs *[]error, name, v string, dst *int) {
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = n
}

// parseDuration accepts a Go duration ("90s", "2m") or a bare number of
// seconds ("90").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	// auth.jwt.secret_file -> auth.jwt.secret
	if cfg.Auth.JWT.SecretFile != "" && cfg.Auth.JWT.Secret == "" {
		val, err := readSecretFile(cfg.Auth.JWT.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt.secret_file: %w", err)
		}
		cfg.Auth.JWT.Secret = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
