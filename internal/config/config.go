package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Secrets (from .env)
	APIKey          string
	CORSAllowOrigin string

	// Server
	Port int

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Market data provider
	CoinGeckoBaseURL   string
	RateLimitPerMinute int

	// Assets
	HomeCoinID     string
	HomeCoinSymbol string
	RefCoinIDs     []string
	RefCoinSymbols []string

	// Timing
	IngestIntervalMinutes int
	RetentionDays         int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Secrets
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		// Server
		Port: envInt("PORT", 3001),

		// Database
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "coinpulse"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),

		// Market data provider
		CoinGeckoBaseURL:   envStr("COINGECKO_BASE_URL", ""),
		RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 10),

		// Assets
		HomeCoinID:     envStr("HOME_COIN_ID", "bitcoin"),
		HomeCoinSymbol: envStr("HOME_COIN_SYMBOL", "btc"),
		RefCoinIDs:     envList("REF_COIN_IDS", []string{"ethereum", "solana"}),
		RefCoinSymbols: envList("REF_COIN_SYMBOLS", []string{"eth", "sol"}),

		// Timing
		IngestIntervalMinutes: envInt("INGEST_INTERVAL_MINUTES", 15),
		RetentionDays:         envInt("RETENTION_DAYS", 90),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.DBUser == "" {
		errs = append(errs, "DB_USER is required")
	}
	if len(c.RefCoinIDs) != len(c.RefCoinSymbols) {
		errs = append(errs, "REF_COIN_IDS and REF_COIN_SYMBOLS must have the same length")
	}
	if c.HomeCoinID == "" || c.HomeCoinSymbol == "" {
		errs = append(errs, "HOME_COIN_ID and HOME_COIN_SYMBOL are required")
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.IngestIntervalMinutes <= 0 {
		errs = append(errs, "INGEST_INTERVAL_MINUTES must be positive")
	}
	if c.APIKey == "" {
		fmt.Println("[WARN] API_KEY not set — REST API has no authentication")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== CoinPulse Market Snapshot Service ===")
	fmt.Printf("Port: %d\n", c.Port)
	fmt.Printf("Database: %s@%s:%d/%s\n", c.DBUser, c.DBHost, c.DBPort, c.DBName)
	fmt.Println("--------------------------------------")
	fmt.Printf("Home Asset: %s (%s)\n", c.HomeCoinID, strings.ToUpper(c.HomeCoinSymbol))
	fmt.Printf("Reference Assets: %s\n", strings.Join(c.RefCoinIDs, ", "))
	fmt.Printf("Provider Rate Limit: %d calls/min\n", c.RateLimitPerMinute)
	fmt.Println("--------------------------------------")
	fmt.Printf("Ingest Interval: every %d minutes\n", c.IngestIntervalMinutes)
	fmt.Printf("Retention: %d days\n", c.RetentionDays)
	fmt.Printf("API Auth: %s\n", boolLabel(c.APIKey != "", "configured", "disabled"))
	fmt.Printf("CORS Origin: %s\n", c.CORSAllowOrigin)
	fmt.Println("======================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
