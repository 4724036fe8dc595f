// Package config loads service settings with Viper from defaults, an
// optional YAML file, environment variables and command-line flags.
//
// Environment variables use the CONTACT_ prefix with dots replaced by
// underscores (CONTACT_SERVER_ADDR). The relay identifiers also accept the
// NEXT_PUBLIC_EMAILJS_* names the site's frontend build already uses.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"towing-contact/api/services/contact"
	"towing-contact/api/services/storage"
)

const envPrefix = "CONTACT"

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Server   ServerConfig   `mapstructure:"server"`
	EmailJS  EmailJSConfig  `mapstructure:"emailjs"`
	Form     FormConfig     `mapstructure:"form"`
	Sessions SessionsConfig `mapstructure:"sessions"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SecureCookies   bool          `mapstructure:"secure_cookies"`
}

// EmailJSConfig holds the relay identifiers. Any of the three IDs may be
// empty; the service still starts and renders, but every submission fails.
type EmailJSConfig struct {
	ServiceID   string        `mapstructure:"service_id"`
	TemplateID  string        `mapstructure:"template_id"`
	UserID      string        `mapstructure:"user_id"`
	AccessToken string        `mapstructure:"access_token"`
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// Stub logs submissions instead of calling EmailJS.
	Stub bool `mapstructure:"stub"`
}

type FormConfig struct {
	ResetDelay time.Duration `mapstructure:"reset_delay"`
	Labels     LabelsConfig  `mapstructure:"labels"`
}

type LabelsConfig struct {
	Idle    string `mapstructure:"idle"`
	Sending string `mapstructure:"sending"`
	Success string `mapstructure:"success"`
	Error   string `mapstructure:"error"`
}

type SessionsConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	MaxSessions   int           `mapstructure:"max_sessions"`
}

// Relay returns the form's view of the EmailJS settings.
func (c EmailJSConfig) Relay() contact.RelayConfig {
	return contact.RelayConfig{
		ServiceID:  c.ServiceID,
		TemplateID: c.TemplateID,
		UserID:     c.UserID,
		Timeout:    c.Timeout,
	}
}

// ContactLabels converts the configured texts; blanks keep their defaults.
func (c FormConfig) ContactLabels() contact.Labels {
	return contact.Labels{
		Idle:    c.Labels.Idle,
		Sending: c.Labels.Sending,
		Success: c.Labels.Success,
		Error:   c.Labels.Error,
	}
}

// Storage converts session limits for the session store.
func (c SessionsConfig) Storage() storage.Config {
	return storage.Config{
		TTL:           c.TTL,
		SweepInterval: c.SweepInterval,
		MaxSessions:   c.MaxSessions,
	}
}

// New returns a Viper instance with defaults and environment bindings set.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The frontend build already exports these names.
	_ = v.BindEnv("emailjs.service_id", "CONTACT_EMAILJS_SERVICE_ID", "NEXT_PUBLIC_EMAILJS_SERVICE_ID")
	_ = v.BindEnv("emailjs.template_id", "CONTACT_EMAILJS_TEMPLATE_ID", "NEXT_PUBLIC_EMAILJS_TEMPLATE_ID")
	_ = v.BindEnv("emailjs.user_id", "CONTACT_EMAILJS_USER_ID", "NEXT_PUBLIC_EMAILJS_USER_ID")
	return v
}

// SetDefaults registers every default so AutomaticEnv can see each key.
func SetDefaults(v *viper.Viper) {
	labels := contact.DefaultLabels()
	sessions := storage.DefaultConfig()

	v.SetDefault("log_level", "info")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.secure_cookies", false)

	v.SetDefault("emailjs.service_id", "")
	v.SetDefault("emailjs.template_id", "")
	v.SetDefault("emailjs.user_id", "")
	v.SetDefault("emailjs.access_token", "")
	v.SetDefault("emailjs.url", "https://api.emailjs.com/api/v1.0/email/send")
	v.SetDefault("emailjs.timeout", 10*time.Second)
	v.SetDefault("emailjs.stub", false)

	v.SetDefault("form.reset_delay", contact.DefaultResetDelay)
	v.SetDefault("form.labels.idle", labels.Idle)
	v.SetDefault("form.labels.sending", labels.Sending)
	v.SetDefault("form.labels.success", labels.Success)
	v.SetDefault("form.labels.error", labels.Error)

	v.SetDefault("sessions.ttl", sessions.TTL)
	v.SetDefault("sessions.sweep_interval", sessions.SweepInterval)
	v.SetDefault("sessions.max_sessions", sessions.MaxSessions)
}

// BindFlags binds a command's flags to their config keys. Flag names use
// dashes where keys use underscores (server.addr ← --addr).
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := fs.Lookup(flag)
		if f == nil {
			return fmt.Errorf("config: unknown flag %q", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("config: bind flag %q: %w", flag, err)
		}
	}
	return nil
}

// Load reads the optional config file and decodes the merged settings.
// A missing default file is not an error; a missing explicit file is.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("contact")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", describe(file), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr is required")
	}
	if c.Form.ResetDelay <= 0 {
		return fmt.Errorf("config: form.reset_delay must be positive, got %s", c.Form.ResetDelay)
	}
	if c.EmailJS.Timeout < 0 {
		return fmt.Errorf("config: emailjs.timeout must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

// SlogLevel maps LogLevel onto slog levels.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MissingRelayIDs names the relay identifiers that are not set.
func (c *Config) MissingRelayIDs() []string {
	var missing []string
	if c.EmailJS.ServiceID == "" {
		missing = append(missing, "emailjs.service_id")
	}
	if c.EmailJS.TemplateID == "" {
		missing = append(missing, "emailjs.template_id")
	}
	if c.EmailJS.UserID == "" {
		missing = append(missing, "emailjs.user_id")
	}
	return missing
}

func describe(file string) string {
	if file == "" {
		return "contact.yaml"
	}
	return file
}
