package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Addr             string
	Environment      string
	LogLevel         string
	DBPath           string
	StoreMode        string
	TaxScheduleFile  string
	INSSWorkerRate   *decimal.Decimal
	INSSEmployerRate *decimal.Decimal
	AbsenceDayBase   int
	IRTExempt        []string
	CORSOrigins      []string
	CompanyName      string
	CompanyFiscalID  string
	SyncInterval     time.Duration
}

const (
	// StoreMemory keeps engine state in memory and mirrors it to SQLite.
	StoreMemory = "memory"
	// StoreSQLite runs the engine directly against SQLite.
	StoreSQLite = "sqlite"
)

// LoadDotEnv reads .env into the process environment. A missing file is
// not an error; variables already set take precedence.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

func Load() Config {
	return Config{
		Addr:             getEnv("APP_ADDR", ":8080"),
		Environment:      getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DBPath:           getEnv("DB_PATH", "./data/payroll.db"),
		StoreMode:        getEnv("APP_STORE", StoreMemory),
		TaxScheduleFile:  getEnv("TAX_SCHEDULE_FILE", ""),
		INSSWorkerRate:   getEnvDecimal("INSS_WORKER_RATE"),
		INSSEmployerRate: getEnvDecimal("INSS_EMPLOYER_RATE"),
		AbsenceDayBase:   getEnvInt("ABSENCE_DAY_BASE", 30),
		IRTExempt:        getEnvList("IRT_EXEMPT_SUBSIDIES"),
		CORSOrigins:      getEnvList("CORS_ORIGINS", "http://localhost:5173", "http://localhost:8080"),
		CompanyName:      getEnv("COMPANY_NAME", "Imatec"),
		CompanyFiscalID:  getEnv("COMPANY_NIF", ""),
		SyncInterval:     getEnvDuration("SYNC_INTERVAL", 5*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDecimal returns nil when the variable is unset or malformed, so the
// tax schedule keeps its own rate.
func getEnvDecimal(key string) *decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return nil
	}
	return &parsed
}

func getEnvList(key string, fallback ...string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsProduction reports APP_ENV=production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("APP_ADDR is required")
	}
	if c.StoreMode != StoreMemory && c.StoreMode != StoreSQLite {
		return fmt.Errorf("APP_STORE must be %q or %q", StoreMemory, StoreSQLite)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	for name, rate := range map[string]*decimal.Decimal{
		"INSS_WORKER_RATE":   c.INSSWorkerRate,
		"INSS_EMPLOYER_RATE": c.INSSEmployerRate,
	} {
		if rate != nil && (rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1))) {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if c.AbsenceDayBase <= 0 {
		return fmt.Errorf("ABSENCE_DAY_BASE must be positive")
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("SYNC_INTERVAL must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}
	return nil
}
