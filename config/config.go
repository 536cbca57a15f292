package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	QR       QRConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type QRConfig struct {
	// MinValue is the redemption threshold: a code is exchangeable
	// only while new_value strictly exceeds it.
	MinValue decimal.Decimal
	IDLength int
}

type AuthConfig struct {
	JWTSecret          string
	TokenExpireMinutes int
}

type CORSConfig struct {
	Origins []string
}

type LogConfig struct {
	Level string
	JSON  bool
}

// Load reads configuration from the environment, falling back to
// development defaults. It is called once at process start; the
// resulting struct is passed by reference into the constructors that
// need it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: 3000,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DATABASE_HOST", "localhost"),
			Port:     5432,
			User:     getEnv("DATABASE_USER", "postgres"),
			Password: getEnv("DATABASE_PASSWORD", "postgres"),
			DBName:   getEnv("DATABASE_DBNAME", "qrvend"),
			SSLMode:  getEnv("DATABASE_SSLMODE", "disable"),
		},
		QR: QRConfig{
			MinValue: decimal.RequireFromString("0.05"),
			IDLength: 8,
		},
		Auth: AuthConfig{
			JWTSecret:          getEnv("JWT_SECRET", "change-me"),
			TokenExpireMinutes: 30,
		},
		CORS: CORSConfig{
			Origins: strings.Split(getEnv("CORS_ORIGINS", "*"), ","),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			JSON:  getEnv("LOG_JSON", "false") == "true",
		},
	}

	var err error
	if cfg.Server.Port, err = getEnvInt("SERVER_PORT", 3000); err != nil {
		return nil, err
	}
	if cfg.Database.Port, err = getEnvInt("DATABASE_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.QR.IDLength, err = getEnvInt("QR_ID_LENGTH", 8); err != nil {
		return nil, err
	}
	if cfg.Auth.TokenExpireMinutes, err = getEnvInt("TOKEN_EXPIRE_MINUTES", 30); err != nil {
		return nil, err
	}

	if v := os.Getenv("QR_MIN_VALUE"); v != "" {
		min, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid QR_MIN_VALUE %q: %w", v, err)
		}
		if min.Sign() < 0 {
			return nil, fmt.Errorf("QR_MIN_VALUE cannot be negative, got %s", min)
		}
		cfg.QR.MinValue = min
	}

	return cfg, nil
}

// DatabaseDSN builds the connection string handed to the pgx pool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
