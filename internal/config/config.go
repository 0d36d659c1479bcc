package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	HTTPTimeout     time.Duration `json:"http_timeout"`
	MaxBodySize     int           `json:"max_body_size"`

	// Security
	Token       string `json:"-"`
	GitHubToken string `json:"-"`

	// Content repository
	RepoURL        string `json:"repo_url"`
	RepoPath       string `json:"repo_path"`
	RepoBranch     string `json:"repo_branch"`
	GitAuthorName  string `json:"git_author_name"`
	GitAuthorEmail string `json:"git_author_email"`
	SiteURL        string `json:"site_url"`

	// S3-compatible object storage (Scaleway)
	S3Endpoint        string `json:"s3_endpoint"`
	S3Region          string `json:"s3_region"`
	S3Bucket          string `json:"s3_bucket"`
	S3AccessKey       string `json:"-"`
	S3SecretKey       string `json:"-"`
	ImageBaseURL      string `json:"image_base_url"`
	UploadConcurrency int    `json:"upload_concurrency"`

	// Image pre-processing
	ResizeEnabled     bool `json:"resize_enabled"`
	MaxImageDimension int  `json:"max_image_dimension"`
	JPEGQuality       int  `json:"jpeg_quality"`

	// Brevo email campaigns
	BrevoAPIKey     string        `json:"-"`
	BrevoBaseURL    string        `json:"brevo_base_url"`
	BrevoSenderID   int           `json:"brevo_sender_id"`
	BrevoListID     int           `json:"brevo_list_id"`
	BrevoTemplateID int           `json:"brevo_template_id"`
	BrevoTag        string        `json:"brevo_tag"`
	CampaignDelay   time.Duration `json:"campaign_delay"`

	// Redis campaign ledger (optional)
	RedisURL          string        `json:"redis_url"`
	RedisPrefix       string        `json:"redis_prefix"`
	CampaignLedgerTTL time.Duration `json:"campaign_ledger_ttl"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 5*time.Minute),
		MaxBodySize:     getEnvAsInt("MAX_BODY_SIZE", 64<<20), // 64MB

		Token:       getEnv("TOKEN", ""),
		GitHubToken: getEnv("GITHUB_TOKEN", ""),

		RepoURL:        getEnv("REPO_URL", "https://github.com/Kyrremann/plog.git"),
		RepoPath:       getEnv("REPO_PATH", "./plog"),
		RepoBranch:     getEnv("REPO_BRANCH", "main"),
		GitAuthorName:  getEnv("GIT_AUTHOR_NAME", "Plog Bot"),
		GitAuthorEmail: getEnv("GIT_AUTHOR_EMAIL", "plog-scaleway[bot]@users.noreply.github.com"),
		SiteURL:        getEnv("SITE_URL", "https://kyrremann.no/plog"),

		S3Endpoint:        getEnv("S3_ENDPOINT", "https://s3.nl-ams.scw.cloud"),
		S3Region:          getEnv("S3_REGION", "nl-ams"),
		S3Bucket:          getEnv("S3_BUCKET", "kyrremann-plog"),
		S3AccessKey:       getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:       getEnv("S3_SECRET_KEY", ""),
		ImageBaseURL:      getEnv("IMAGE_BASE_URL", "https://kyrremann-plog.s3.nl-ams.scw.cloud"),
		UploadConcurrency: getEnvAsInt("UPLOAD_CONCURRENCY", 4),

		ResizeEnabled:     getEnvAsBool("RESIZE_ENABLED", true),
		MaxImageDimension: getEnvAsInt("MAX_IMAGE_DIMENSION", 1440),
		JPEGQuality:       getEnvAsInt("JPEG_QUALITY", 75),

		BrevoAPIKey:     getEnv("BREVO_API_KEY", ""),
		BrevoBaseURL:    getEnv("BREVO_BASE_URL", "https://api.brevo.com"),
		BrevoSenderID:   getEnvAsInt("BREVO_SENDER_ID", 2),
		BrevoListID:     getEnvAsInt("BREVO_LIST_ID", 2),
		BrevoTemplateID: getEnvAsInt("BREVO_TEMPLATE_ID", 6),
		BrevoTag:        getEnv("BREVO_TAG", "plog"),
		CampaignDelay:   getEnvAsDuration("CAMPAIGN_DELAY", time.Hour),

		RedisURL:          getEnv("REDIS_URL", ""),
		RedisPrefix:       getEnv("REDIS_PREFIX", "plogtion:campaign:"),
		CampaignLedgerTTL: getEnvAsDuration("CAMPAIGN_LEDGER_TTL", 720*time.Hour), // 30 days

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks values the process cannot start without. TOKEN and
// GITHUB_TOKEN are checked per request instead.
func (c *Config) Validate() error {
	var missing []string
	if c.RepoURL == "" {
		missing = append(missing, "REPO_URL")
	}
	if c.RepoPath == "" {
		missing = append(missing, "REPO_PATH")
	}
	if c.S3Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if c.ImageBaseURL == "" {
		missing = append(missing, "IMAGE_BASE_URL")
	}
	if c.SiteURL == "" {
		missing = append(missing, "SITE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be between 1 and 100, got %d", c.JPEGQuality)
	}
	if c.UploadConcurrency < 1 {
		c.UploadConcurrency = 1
	}
	return nil
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %t", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
