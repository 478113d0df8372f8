package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	AuthMode  string `mapstructure:"AUTH_MODE"`
	JWTSecret string `mapstructure:"JWT_SECRET"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int64   `mapstructure:"RATE_LIMIT_BURST"`

	PersistenceTimeoutMS int `mapstructure:"PERSISTENCE_TIMEOUT_MS"`

	// Jurisdiction tariff constants. Zero means the surcharge is disabled;
	// they are handed to the tariff package as an explicit value, never read
	// ambiently.
	TarifIKPerKm   float64 `mapstructure:"TARIF_IK_PER_KM"`
	TarifIFD       float64 `mapstructure:"TARIF_IFD"`
	TarifNuit      float64 `mapstructure:"TARIF_NUIT"`
	TarifFerie     float64 `mapstructure:"TARIF_FERIE"`

	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`

	// Cron expression for the nightly bordereau re-aggregation sweep.
	BordereauRefreshCron string `mapstructure:"BORDEREAU_REFRESH_CRON"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("PERSISTENCE_TIMEOUT_MS", 5000)
	v.SetDefault("TARIF_IK_PER_KM", 0)
	v.SetDefault("TARIF_IFD", 0)
	v.SetDefault("TARIF_NUIT", 0)
	v.SetDefault("TARIF_FERIE", 0)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("BORDEREAU_REFRESH_CRON", "0 3 * * *")

	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("PERSISTENCE_TIMEOUT_MS")
	v.BindEnv("TARIF_IK_PER_KM")
	v.BindEnv("TARIF_IFD")
	v.BindEnv("TARIF_NUIT")
	v.BindEnv("TARIF_FERIE")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("BORDEREAU_REFRESH_CRON")

	// A missing .env file is fine; env vars alone are a valid configuration.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ResolvedAuthMode returns the effective auth mode: an explicit AUTH_MODE
// wins, development implies no auth, otherwise the built-in JWT verifier.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "standalone"
}

// PersistenceTimeout returns the per-call deadline services apply to
// repository operations.
func (c *Config) PersistenceTimeout() time.Duration {
	if c.PersistenceTimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.PersistenceTimeoutMS) * time.Millisecond
}

// Validate rejects configurations that must not reach production: outside
// development the standalone verifier needs a signing secret.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	switch mode {
	case "development":
	case "standalone":
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE is %q (ENV=%q)", mode, c.Env)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"standalone\", got %q", mode)
	}

	if c.TarifIKPerKm < 0 || c.TarifIFD < 0 || c.TarifNuit < 0 || c.TarifFerie < 0 {
		return fmt.Errorf("tariff rates must not be negative")
	}
	return nil
}
