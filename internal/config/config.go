// Package config loads runtime settings from an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Database struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Port     string `yaml:"port"`
}

// DSN prefers the full URL and otherwise assembles a key/value DSN.
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		d.Host, d.User, d.Password, d.Name, d.Port)
}

type AWS struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
}

// Enabled reports whether S3 credentials are complete.
func (a AWS) Enabled() bool {
	return a.Region != "" && a.AccessKeyID != "" && a.SecretAccessKey != "" && a.Bucket != ""
}

type Mail struct {
	From     string `yaml:"from"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
}

type SMS struct {
	Username string `yaml:"username"`
	APIKey   string `yaml:"api_key"`
}

type Config struct {
	Port                       string        `yaml:"port"`
	Database                   Database      `yaml:"database"`
	RedisURL                   string        `yaml:"redis_url"`
	JWTSecret                  string        `yaml:"jwt_secret"`
	AWS                        AWS           `yaml:"aws"`
	UploadDir                  string        `yaml:"upload_dir"`
	BaseURL                    string        `yaml:"base_url"`
	FirebaseServiceAccountPath string        `yaml:"firebase_service_account_path"`
	Mail                       Mail          `yaml:"mail"`
	SMS                        SMS           `yaml:"sms"`
	ReconcileInterval          time.Duration `yaml:"reconcile_interval"`
	AvailabilityCacheTTL       time.Duration `yaml:"availability_cache_ttl"`
}

func defaults() Config {
	return Config{
		Port:                 "8080",
		UploadDir:            "/app/uploads",
		BaseURL:              "http://localhost:8080",
		ReconcileInterval:    time.Hour,
		AvailabilityCacheTTL: 5 * time.Minute,
	}
}

// Load reads .env if present, then CONFIG_FILE if set, then applies
// environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"PORT":                          &c.Port,
		"DATABASE_URL":                  &c.Database.URL,
		"DB_HOST":                       &c.Database.Host,
		"DB_USER":                       &c.Database.User,
		"DB_PASSWORD":                   &c.Database.Password,
		"DB_NAME":                       &c.Database.Name,
		"DB_PORT":                       &c.Database.Port,
		"REDIS_URL":                     &c.RedisURL,
		"JWT_SECRET":                    &c.JWTSecret,
		"AWS_REGION":                    &c.AWS.Region,
		"AWS_ACCESS_KEY_ID":             &c.AWS.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY":         &c.AWS.SecretAccessKey,
		"AWS_S3_BUCKET":                 &c.AWS.Bucket,
		"UPLOAD_DIR":                    &c.UploadDir,
		"BASE_URL":                      &c.BaseURL,
		"FIREBASE_SERVICE_ACCOUNT_PATH": &c.FirebaseServiceAccountPath,
		"EMAIL_FROM":                    &c.Mail.From,
		"EMAIL_PASSWORD":                &c.Mail.Password,
		"SMTP_HOST":                     &c.Mail.Host,
		"SMTP_PORT":                     &c.Mail.Port,
		"AT_USERNAME":                   &c.SMS.Username,
		"AT_API_KEY":                    &c.SMS.APIKey,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"RECONCILE_INTERVAL":     &c.ReconcileInterval,
		"AVAILABILITY_CACHE_TTL": &c.AvailabilityCacheTTL,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

// parseDuration accepts Go duration syntax or a bare number of seconds.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	if c.Database.URL == "" && c.Database.Host == "" {
		return fmt.Errorf("config: DATABASE_URL or DB_HOST is required")
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("config: RECONCILE_INTERVAL must be positive")
	}
	return nil
}
