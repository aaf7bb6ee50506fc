package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
)

// EncryptKeyEnv holds the raw 32-byte AES key. It is read on every use, never cached.
const EncryptKeyEnv = "APP_ENCRYPT_KEY"

// SealedPrefix marks a config value that must be decrypted before use.
const SealedPrefix = "enc:"

// Config holds all dynamic configuration for the API process.
type Config struct {
	Environment    string `validate:"oneof=development production"`
	Port           string `validate:"required,numeric"`
	AllowedOrigins []string
	APIKey         string

	LogDir   string `validate:"required"`
	LogLevel string

	RateLimitRPS   float64 `validate:"gt=0"`
	RateLimitBurst int     `validate:"gt=0"`

	MySQL MySQLConfig
	Mail  MailConfig
}

// MySQLConfig describes the shared connection pool.
type MySQLConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"gte=1,lte=65535"`
	User     string `validate:"required"`
	Password string
	Database string `validate:"required"`
	MinConns int    `validate:"gte=0"`
	MaxConns int    `validate:"gte=1,gtefield=MinConns"`
}

// DSN renders the go-sql-driver connection string.
func (c MySQLConfig) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// MailConfig mirrors the MAIL_* environment. Every field is optional;
// an incomplete config disables delivery.
type MailConfig struct {
	Host        string
	Port        string
	Username    string
	Password    string
	Timeout     time.Duration
	LocalDomain string
	Encryption  string `validate:"omitempty,oneof=tls starttls none"`
	SendTo      string `validate:"omitempty,email"`
	From        string `validate:"omitempty,email"`
}

// Configured reports whether enough is set to attempt delivery to to.
func (m MailConfig) Configured(to string) bool {
	return m.Host != "" && m.Port != "" && m.From != "" && to != ""
}

var validate = validator.New()

// Load parses the environment and applies sensible default fallbacks.
func Load() (*Config, error) {
	env := getEnv("APP_ENV", "production")

	// 1. 🛡️ Fail fast on missing secrets in production
	apiKey := getEnv("API_KEY", "")
	if apiKey == "" && env == "production" {
		return nil, fmt.Errorf("config: API_KEY is required in production")
	}

	corsOrigins := getEnv("CORS_ALLOWED_ORIGINS", "")
	if corsOrigins == "" {
		if env == "production" {
			return nil, fmt.Errorf("config: CORS_ALLOWED_ORIGINS is required in production")
		}
		corsOrigins = "*"
	}

	var num numbers
	cfg := &Config{
		Environment:    env,
		Port:           getEnv("PORT", "8000"),
		AllowedOrigins: splitList(corsOrigins),
		APIKey:         apiKey,
		LogDir:         getEnv("LOG_DIR", "logs"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RateLimitRPS:   num.float("RATE_LIMIT_RPS", 10),
		RateLimitBurst: num.int("RATE_LIMIT_BURST", 30),

		MySQL: MySQLConfig{
			Host:     getEnv("MYSQL_LOCALHOST", "localhost"),
			Port:     num.int("MYSQL_PORT", 3306),
			User:     getEnv("MYSQL_USER", ""),
			Password: getEnv("MYSQL_PASSWORD", ""),
			Database: getEnv("MYSQL_DB", ""),
			MinConns: num.int("MYSQL_POOL_MIN", 1),
			MaxConns: num.int("MYSQL_POOL_MAX", 10),
		},

		Mail: MailConfig{
			Host:        getEnv("MAIL_HOST", ""),
			Port:        getEnv("MAIL_PORT", ""),
			Username:    getEnv("MAIL_USERNAME", ""),
			Password:    getEnv("MAIL_PASSWORD", ""),
			Timeout:     time.Duration(num.int("MAIL_TIMEOUT", 0)) * time.Second,
			LocalDomain: getEnv("MAIL_LOCAL_DOMAIN", ""),
			Encryption:  strings.ToLower(getEnv("MAIL_ENCRYPTION", "")),
			SendTo:      getEnv("MAIL_SYSTEM_SEND_MAIL", ""),
			From:        getEnv("MAIL_SYSTEM_INFO_MAIL", ""),
		},
	}

	// 2. 🛡️ Malformed numbers are reported before any rule runs on the defaults
	if err := errors.Join(num.errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// EncryptKey reads the symmetric key from the environment at call time.
func EncryptKey() string {
	return os.Getenv(EncryptKeyEnv)
}

// Decrypter is the subset of the cipher service needed to unseal values.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertextBase64 string) (string, error)
}

// UnsealSecrets replaces every secret carrying SealedPrefix with its plaintext.
func (c *Config) UnsealSecrets(ctx context.Context, d Decrypter) error {
	secrets := map[string]*string{
		"MYSQL_PASSWORD": &c.MySQL.Password,
		"MAIL_PASSWORD":  &c.Mail.Password,
	}
	for name, v := range secrets {
		if !strings.HasPrefix(*v, SealedPrefix) {
			continue
		}
		plain, err := d.Decrypt(ctx, strings.TrimPrefix(*v, SealedPrefix))
		if err != nil {
			return fmt.Errorf("config: unseal %s: %w", name, err)
		}
		*v = plain
	}
	return nil
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// numbers parses numeric variables and remembers every malformed one, so a
// typo fails Load instead of silently becoming the default.
type numbers struct {
	errs []error
}

func (n *numbers) int(key string, fallback int) int {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		n.errs = append(n.errs, fmt.Errorf("%s=%q is not an integer", key, raw))
		return fallback
	}
	return v
}

func (n *numbers) float(key string, fallback float64) float64 {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		n.errs = append(n.errs, fmt.Errorf("%s=%q is not a number", key, raw))
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
