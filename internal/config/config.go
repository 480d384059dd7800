package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Permission states mirror the browser notification permission values.
const (
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
	PermissionDefault = "default"
)

// Config stores runtime configuration loaded from an optional YAML file and environment variables.
type Config struct {
	SupabaseURL            string `yaml:"supabase_url"`
	SupabaseAnonKey        string `yaml:"supabase_anon_key"`
	MagicLinkRedirect      string `yaml:"magic_link_redirect"`
	Port                   string `yaml:"port"`
	DatabaseURL            string `yaml:"database_url"`
	Timezone               string `yaml:"timezone"`
	NotificationPermission string `yaml:"notification_permission"`
	NotifyWhatsAppTo       string `yaml:"notify_whatsapp_to"`
	TwilioAccountSID       string `yaml:"twilio_account_sid"`
	TwilioAuthToken        string `yaml:"twilio_auth_token"`
	TwilioWhatsAppNumber   string `yaml:"twilio_whatsapp_number"`
	OpenAIAPIKey           string `yaml:"openai_api_key"`
	SoundCommand           string `yaml:"sound_command"`
	LogDir                 string `yaml:"log_dir"`
	LogLevel               string `yaml:"log_level"`
	HTTPTimeoutSeconds     int    `yaml:"http_timeout_seconds"`

	LocalTimezone *time.Location `yaml:"-"`
}

// ErrMissingBackend is returned by Validate when the backend connection parameters are absent.
var ErrMissingBackend = errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required")

// Load reads configuration values and prepares defaults where applicable.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			log.Printf("config: ignoring %s: %v", path, err)
		}
	}

	cfg.SupabaseURL = getenvDefault("SUPABASE_URL", cfg.SupabaseURL)
	cfg.SupabaseAnonKey = getenvDefault("SUPABASE_ANON_KEY", cfg.SupabaseAnonKey)
	cfg.MagicLinkRedirect = getenvDefault("MAGIC_LINK_REDIRECT", cfg.MagicLinkRedirect)
	cfg.Port = getenvDefault("PORT", fallback(cfg.Port, "8080"))
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.Timezone = getenvDefault("LOCAL_TIMEZONE", fallback(cfg.Timezone, "Local"))
	cfg.NotificationPermission = getenvDefault("NOTIFICATION_PERMISSION", fallback(cfg.NotificationPermission, PermissionDefault))
	cfg.NotifyWhatsAppTo = getenvDefault("NOTIFY_WHATSAPP_TO", cfg.NotifyWhatsAppTo)
	cfg.TwilioAccountSID = getenvDefault("TWILIO_ACCOUNT_SID", cfg.TwilioAccountSID)
	cfg.TwilioAuthToken = getenvDefault("TWILIO_AUTH_TOKEN", cfg.TwilioAuthToken)
	cfg.TwilioWhatsAppNumber = getenvDefault("TWILIO_WHATSAPP_NUMBER", cfg.TwilioWhatsAppNumber)
	cfg.OpenAIAPIKey = getenvDefault("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.SoundCommand = getenvDefault("SOUND_COMMAND", cfg.SoundCommand)
	cfg.LogDir = getenvDefault("LOG_DIR", fallback(cfg.LogDir, "./logs"))
	cfg.LogLevel = getenvDefault("LOG_LEVEL", fallback(cfg.LogLevel, "info"))

	timeout := cfg.HTTPTimeoutSeconds
	if timeout <= 0 {
		timeout = 15
	}
	cfg.HTTPTimeoutSeconds = ParseIntEnv("HTTP_TIMEOUT_SECONDS", timeout)

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("config: invalid LOCAL_TIMEZONE %q, defaulting to system local: %v", cfg.Timezone, err)
		location = time.Local
	}
	cfg.LocalTimezone = location

	return cfg
}

// Validate reports configuration that prevents reaching the backend.
func (c *Config) Validate() error {
	if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
		return ErrMissingBackend
	}
	switch c.NotificationPermission {
	case PermissionGranted, PermissionDenied, PermissionDefault:
	default:
		return fmt.Errorf("NOTIFICATION_PERMISSION must be granted, denied or default, got %q", c.NotificationPermission)
	}
	return nil
}

// HTTPTimeout is the per-request timeout for backend calls.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// NotificationsGranted reports whether system notifications may be shown.
func (c *Config) NotificationsGranted() bool {
	return c.NotificationPermission == PermissionGranted
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func getenvDefault(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	return value
}

func fallback(primary, secondary string) string {
	if primary == "" {
		return secondary
	}
	return primary
}

// ParseIntEnv returns the integer value for an environment variable or the provided default.
func ParseIntEnv(key string, def int) int {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as int: %v", key, value, err)
		return def
	}
	return parsed
}
