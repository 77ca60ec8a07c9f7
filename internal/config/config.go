package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// Source
	Source string `yaml:"source"` // "s3" or "github"

	// S3 run reports
	S3Bucket           string `yaml:"s3_bucket"`
	S3Region           string `yaml:"s3_region"`
	S3ReportsPrefix    string `yaml:"s3_reports_prefix"`
	S3Endpoint         string `yaml:"s3_endpoint"`
	S3ReportCount      int    `yaml:"s3_report_count"`
	AWSAccessKeyID     string `yaml:"aws_access_key_id"`
	AWSSecretAccessKey string `yaml:"aws_secret_access_key"`

	// GitHub logbooks
	GitHubToken string `yaml:"github_token"`
	RepoOwner   string `yaml:"logbook_repo_owner"`
	RepoName    string `yaml:"logbook_repo_name"`
	RepoPath    string `yaml:"logbook_repo_path"`
	RepoRef     string `yaml:"logbook_repo_ref"`

	// Term expiry
	ExpiryAPIURL string  `yaml:"expiry_api_url"`
	ExpiryRPS    float64 `yaml:"expiry_rps"`

	// Aggregation
	Window           string `yaml:"window"` // "count" or "calendar"
	WindowSize       int    `yaml:"window_size"`
	ParsePolicy      string `yaml:"parse_policy"` // "skip" or "fail"
	FetchConcurrency int    `yaml:"fetch_concurrency"`

	// Output
	OutputDir   string `yaml:"output_dir"`
	ServicesCSV string `yaml:"services_csv"`

	// Storage
	StorageType string `yaml:"storage_type"` // "none", "sqlite" or "postgres"
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresURL string `yaml:"postgres_url"`

	// API Server
	APIPort string `yaml:"api_port"`
	APIHost string `yaml:"api_host"`

	// CLI
	APIEndpoint string `yaml:"api_endpoint"`

	LogLevel string `yaml:"log_level"`
}

// Load loads the configuration from environment variables. When path is set,
// the YAML file there overrides whatever keys it names.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Source:             getEnv("SOURCE", "s3"),
		S3Bucket:           getEnv("S3_BUCKET", "lgsf-run-artifacts-dev"),
		S3Region:           getEnv("S3_REGION", "eu-west-2"),
		S3ReportsPrefix:    getEnv("S3_REPORTS_PREFIX", "run-reports/"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		GitHubToken:        getEnv("GITHUB_TOKEN", ""),
		RepoOwner:          getEnv("LOGBOOK_REPO_OWNER", ""),
		RepoName:           getEnv("LOGBOOK_REPO_NAME", ""),
		RepoPath:           getEnv("LOGBOOK_REPO_PATH", "logbooks"),
		RepoRef:            getEnv("LOGBOOK_REPO_REF", ""),
		ExpiryAPIURL:       getEnv("EXPIRY_API_URL", ""),
		Window:             getEnv("WINDOW", "count"),
		ParsePolicy:        getEnv("PARSE_POLICY", "skip"),
		OutputDir:          getEnv("OUTPUT_DIR", "_data"),
		ServicesCSV:        getEnv("SERVICES_CSV", "_data/services.csv"),
		StorageType:        getEnv("STORAGE_TYPE", "none"),
		SQLitePath:         getEnv("SQLITE_PATH", "./logbooks.db"),
		PostgresURL:        getEnv("POSTGRES_URL", ""),
		APIPort:            getEnv("API_PORT", "8080"),
		APIHost:            getEnv("API_HOST", "localhost"),
		APIEndpoint:        getEnv("API_ENDPOINT", "http://localhost:8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.S3ReportCount, err = getEnvInt("S3_REPORT_COUNT", 10); err != nil {
		return nil, err
	}
	if cfg.WindowSize, err = getEnvInt("WINDOW_SIZE", 20); err != nil {
		return nil, err
	}
	if cfg.FetchConcurrency, err = getEnvInt("FETCH_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if cfg.ExpiryRPS, err = getEnvFloat("EXPIRY_RPS", 5); err != nil {
		return nil, err
	}

	if path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: fmt.Sprintf("must be an integer, got %q", value)}
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: fmt.Sprintf("must be a number, got %q", value)}
	}
	return f, nil
}

// Validate validates the configuration used by an aggregation pass
func (c *Config) Validate() error {
	switch c.Source {
	case "s3":
		if c.S3Bucket == "" {
			return &ConfigError{Field: "S3_BUCKET", Message: "bucket is required when SOURCE is 's3'"}
		}
		if c.S3ReportCount <= 0 {
			return &ConfigError{Field: "S3_REPORT_COUNT", Message: "must be positive"}
		}
	case "github":
		if c.RepoOwner == "" || c.RepoName == "" {
			return &ConfigError{Field: "LOGBOOK_REPO_NAME", Message: "owner and name are required when SOURCE is 'github'"}
		}
	default:
		return &ConfigError{Field: "SOURCE", Message: "must be 's3' or 'github'"}
	}

	if c.Window != "count" && c.Window != "calendar" {
		return &ConfigError{Field: "WINDOW", Message: "must be 'count' or 'calendar'"}
	}
	if c.WindowSize <= 0 {
		return &ConfigError{Field: "WINDOW_SIZE", Message: "must be positive"}
	}
	if c.ParsePolicy != "skip" && c.ParsePolicy != "fail" {
		return &ConfigError{Field: "PARSE_POLICY", Message: "must be 'skip' or 'fail'"}
	}
	if c.FetchConcurrency <= 0 {
		return &ConfigError{Field: "FETCH_CONCURRENCY", Message: "must be positive"}
	}
	if c.ExpiryAPIURL != "" && c.ExpiryRPS <= 0 {
		return &ConfigError{Field: "EXPIRY_RPS", Message: "must be positive when EXPIRY_API_URL is set"}
	}
	return c.ValidateStorage()
}

// ValidateStorage validates only the archive settings, for commands that
// never touch a source
func (c *Config) ValidateStorage() error {
	switch c.StorageType {
	case "none", "sqlite":
	case "postgres":
		if c.PostgresURL == "" {
			return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
		}
	default:
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'none', 'sqlite' or 'postgres'"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
