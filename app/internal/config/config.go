package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port             string
	EnableScheduler  bool
	PollInterval     time.Duration
	CleanupInterval  time.Duration
	LivePushInterval time.Duration

	// Storage
	DBDriver string
	DBDSN    string

	// Engine
	Workers       int
	Sequential    bool
	CycleTimeout  time.Duration
	RetentionDays int
	LogKeep       int
	CacheTTL      time.Duration

	// Alerts
	AlertWindow        time.Duration
	AlertOnWarning     bool
	AlertOnTransitions bool

	// Admin API
	AdminUser string
	AdminHash []byte
	JWTSecret []byte
	TokenTTL  time.Duration
	// AdminAllowIPs is a comma-separated list of IPs/CIDRs; empty allows all.
	AdminAllowIPs string
	// TrustedProxies lists proxies whose X-Forwarded-For is believed.
	TrustedProxies string

	// Targets (loaded from YAML)
	TargetsFile string
	Targets     Targets
}

// AdminEnabled reports whether the admin API has credentials configured.
func (c *Config) AdminEnabled() bool {
	return len(c.AdminHash) > 0 && len(c.JWTSecret) > 0
}

// Load reads configuration from the environment plus the targets file.
// envFiles are loaded first, defaulting to .env; variables already set in
// the environment win.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		Port:               getenv("PORT", "4555"),
		EnableScheduler:    envBool("ENABLE_SCHEDULER", true),
		PollInterval:       envDurSecs("POLL_SECONDS", 300),
		CleanupInterval:    envDurSecs("CLEANUP_SECONDS", 86400),
		LivePushInterval:   envDurSecs("LIVE_PUSH_SECONDS", 10),
		DBDriver:           strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		Workers:            envInt("WORKERS", 8),
		Sequential:         envBool("SEQUENTIAL", false),
		CycleTimeout:       envDurSecs("CYCLE_TIMEOUT_SECONDS", 120),
		RetentionDays:      envInt("RETENTION_DAYS", 90),
		LogKeep:            envInt("LOG_KEEP", 10000),
		CacheTTL:           envDurSecs("CACHE_SECONDS", 30),
		AlertWindow:        envDurSecs("ALERT_WINDOW_SECONDS", 3600),
		AlertOnWarning:     envBool("ALERT_ON_WARNING", false),
		AlertOnTransitions: envBool("ALERT_ON_TRANSITIONS", true),
		AdminUser:          getenv("ADMIN_USER", "admin"),
		TokenTTL:           envDurSecs("TOKEN_TTL_SECONDS", 86400),
		AdminAllowIPs:      getenv("ADMIN_ALLOW_IPS", ""),
		TrustedProxies:     getenv("TRUSTED_PROXIES", ""),
		TargetsFile:        getenv("TARGETS_FILE", "targets.yaml"),
	}

	switch cfg.DBDriver {
	case "sqlite":
		cfg.DBDSN = getenv("DB_DSN", getenv("DB_PATH", "./infrastatus.db"))
	case "postgres":
		cfg.DBDSN = getenv("DB_DSN", "")
		if cfg.DBDSN == "" {
			return nil, errors.New("DB_DSN is required for the postgres driver")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 || cfg.CleanupInterval <= 0 {
		return nil, errors.New("POLL_SECONDS and CLEANUP_SECONDS must be positive")
	}
	if cfg.RetentionDays < 1 {
		return nil, fmt.Errorf("RETENTION_DAYS must be positive, got %d", cfg.RetentionDays)
	}

	if err := loadAdmin(cfg); err != nil {
		return nil, err
	}

	targets, err := LoadTargets(cfg.TargetsFile)
	if err != nil {
		return nil, err
	}
	if pw := getenv("PROXMOX_PASSWORD", ""); pw != "" {
		targets.Hypervisor.Password = pw
	}
	if err := targets.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.TargetsFile, err)
	}
	cfg.Targets = targets

	return cfg, nil
}

// loadAdmin leaves the admin API disabled when no password is set.
func loadAdmin(cfg *Config) error {
	if hp := getenv("ADMIN_PASSWORD_BCRYPT", ""); hp != "" {
		cfg.AdminHash = []byte(hp)
	} else if pw := getenv("ADMIN_PASSWORD", ""); pw != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		cfg.AdminHash = h
	} else {
		log.Printf("ADMIN_PASSWORD not set, admin API disabled")
		return nil
	}

	secret := getenv("JWT_SECRET", "")
	if len(secret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 bytes (use a long random string)")
	}
	cfg.JWTSecret = []byte(secret)
	return nil
}

// Helper functions
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(k string, def bool) bool {
	v := strings.ToLower(getenv(k, ""))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

func envDurSecs(k string, def int) time.Duration {
	return time.Duration(envInt(k, def)) * time.Second
}
