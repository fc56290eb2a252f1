package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Converter ConverterConfig `json:"converter"`
	Storage   StorageConfig   `json:"storage"`
	Security  SecurityConfig  `json:"security"`
	Logging   LoggingConfig   `json:"logging"`
	Jobs      JobsConfig      `json:"jobs"`
	Studio    StudioConfig    `json:"studio"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	AllowedOrigins  []string      `json:"allowed_origins"`
}

// DatabaseConfig holds the template store connection. Templates are disabled
// when Host is empty.
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// ConverterConfig points at the Word to PDF conversion service.
type ConverterConfig struct {
	URL        string        `json:"url"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
}

// StorageConfig enables S3 delivery of job archives when Bucket is set.
type StorageConfig struct {
	Bucket          string        `json:"bucket"`
	Region          string        `json:"region"`
	Endpoint        string        `json:"endpoint"`
	AccessKeyID     string        `json:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key"`
	Prefix          string        `json:"prefix"`
	PresignExpiry   time.Duration `json:"presign_expiry"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// JobsConfig controls background jobs.
type JobsConfig struct {
	Retention           time.Duration `json:"retention"`
	PurgeSpec           string        `json:"purge_spec"`
	MaxConcurrentIngest int           `json:"max_concurrent_ingest"`
}

// StudioConfig holds output settings for generated files.
type StudioConfig struct {
	PageSize         string `json:"page_size"`
	JPEGQuality      int    `json:"jpeg_quality"`
	CompressionLevel int    `json:"compression_level"`
	// Rasterizer is the pdftoppm binary used for PDF backgrounds; empty disables them.
	Rasterizer  string `json:"rasterizer"`
	RasterWidth int    `json:"raster_width"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     2 * time.Minute,
			WriteTimeout:    10 * time.Minute,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Port:           5432,
			DBName:         "cert_studio",
			SSLMode:        "disable",
			MaxConnections: 10,
			MaxIdleConns:   5,
			MaxLifetime:    time.Hour,
		},
		Converter: ConverterConfig{
			Timeout:    2 * time.Minute,
			MaxRetries: 2,
		},
		Storage: StorageConfig{
			Region:        "us-east-1",
			Prefix:        "archives",
			PresignExpiry: 24 * time.Hour,
		},
		Logging: LoggingConfig{Level: "info"},
		Jobs: JobsConfig{
			Retention:           time.Hour,
			PurgeSpec:           "0 */5 * * * *",
			MaxConcurrentIngest: 4,
		},
		Studio: StudioConfig{
			PageSize:         "A4",
			JPEGQuality:      85,
			CompressionLevel: 6,
			Rasterizer:       "pdftoppm",
			RasterWidth:      2000,
		},
	}
}

// LoadConfig loads defaults, then the JSON file at configPath if it exists,
// then variables from a .env file, then the process environment.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) error {
	strs := map[string]*string{
		"SERVER_HOST":           &config.Server.Host,
		"DATABASE_HOST":         &config.Database.Host,
		"DATABASE_USER":         &config.Database.User,
		"DATABASE_PASSWORD":     &config.Database.Password,
		"DATABASE_DBNAME":       &config.Database.DBName,
		"DATABASE_SSLMODE":      &config.Database.SSLMode,
		"CONVERTER_URL":         &config.Converter.URL,
		"S3_BUCKET":             &config.Storage.Bucket,
		"S3_ENDPOINT":           &config.Storage.Endpoint,
		"S3_PREFIX":             &config.Storage.Prefix,
		"AWS_REGION":            &config.Storage.Region,
		"AWS_ACCESS_KEY_ID":     &config.Storage.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY": &config.Storage.SecretAccessKey,
		"JWT_SECRET":            &config.Security.JWTSecret,
		"LOG_LEVEL":             &config.Logging.Level,
		"JOBS_PURGE_SPEC":       &config.Jobs.PurgeSpec,
		"STUDIO_PAGE_SIZE":      &config.Studio.PageSize,
		"STUDIO_RASTERIZER":     &config.Studio.Rasterizer,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SERVER_PORT":                &config.Server.Port,
		"DATABASE_PORT":              &config.Database.Port,
		"CONVERTER_MAX_RETRIES":      &config.Converter.MaxRetries,
		"JOBS_MAX_CONCURRENT_INGEST": &config.Jobs.MaxConcurrentIngest,
		"STUDIO_JPEG_QUALITY":        &config.Studio.JPEGQuality,
		"STUDIO_COMPRESSION_LEVEL":   &config.Studio.CompressionLevel,
		"STUDIO_RASTER_WIDTH":        &config.Studio.RasterWidth,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"CONVERTER_TIMEOUT":       &config.Converter.Timeout,
		"S3_PRESIGN_EXPIRY":       &config.Storage.PresignExpiry,
		"JOBS_RETENTION":          &config.Jobs.Retention,
		"SERVER_SHUTDOWN_TIMEOUT": &config.Server.ShutdownTimeout,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = strings.Split(origins, ",")
		for i := range config.Server.AllowedOrigins {
			config.Server.AllowedOrigins[i] = strings.TrimSpace(config.Server.AllowedOrigins[i])
		}
	}
	return nil
}

// Validate rejects settings the studio cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Studio.Rasterizer != "" && c.Studio.RasterWidth <= 0 {
		return fmt.Errorf("raster width %d must be positive", c.Studio.RasterWidth)
	}
	if c.Studio.JPEGQuality < 1 || c.Studio.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality %d out of range 1-100", c.Studio.JPEGQuality)
	}
	if c.Studio.CompressionLevel < -2 || c.Studio.CompressionLevel > 9 {
		return fmt.Errorf("compression level %d out of range -2-9", c.Studio.CompressionLevel)
	}
	if c.Database.Enabled() && c.Security.JWTSecret == "" {
		return errors.New("jwt secret is required when templates are enabled")
	}
	return nil
}

// Enabled reports whether a template database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
