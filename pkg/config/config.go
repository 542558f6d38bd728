package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL    string
	Port           string
	IsProduction   bool
	EnableDBCheck  bool
	JWTSecret      string
	JWTIssuer      string
	RunMigrations  bool
	MigrationsPath string

	// Calculation engine
	CalcWorkers           int
	RateLookupTimeout     time.Duration
	ApprovalSweepInterval time.Duration
	ApprovalDefaultTTL    time.Duration
	AllowanceMaxRetries   int

	// HTTP surface
	RateLimit          string // ulule/limiter format, e.g. "100-M"
	CORSAllowedOrigins []string

	// Collaborators; empty values disable the integration
	ServiceBusConnectionString string
	ServiceBusQueue            string
	AuditArchiveDSN            string
	AuthzModelPath             string
	AuthzPolicyPath            string
	StatementTitle             string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("JWT_ISSUER", "payroll-engine")
	viper.SetDefault("RUN_MIGRATIONS", true)
	viper.SetDefault("MIGRATIONS_PATH", "file://migrations")
	viper.SetDefault("CALC_WORKERS", 8)
	viper.SetDefault("RATE_LOOKUP_TIMEOUT", "2s")
	viper.SetDefault("APPROVAL_SWEEP_INTERVAL", "1m")
	viper.SetDefault("APPROVAL_DEFAULT_TTL", "72h")
	viper.SetDefault("ALLOWANCE_MAX_RETRIES", 5)
	viper.SetDefault("RATE_LIMIT", "600-M")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("SERVICEBUS_CONNECTION_STRING", "")
	viper.SetDefault("SERVICEBUS_QUEUE", "payroll-approvals")
	viper.SetDefault("AUDIT_ARCHIVE_DSN", "")
	viper.SetDefault("AUTHZ_MODEL_PATH", "config/approver_model.conf")
	viper.SetDefault("AUTHZ_POLICY_PATH", "config/approver_policy.csv")
	viper.SetDefault("STATEMENT_TITLE", "Payroll statement")

	viper.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:                viper.GetString("PGSQL_URL"),
		Port:                       viper.GetString("PORT"),
		IsProduction:               viper.GetBool("IS_PRODUCTION"),
		EnableDBCheck:              viper.GetBool("ENABLE_DB_CHECK"),
		JWTSecret:                  viper.GetString("JWT_SECRET"),
		JWTIssuer:                  viper.GetString("JWT_ISSUER"),
		RunMigrations:              viper.GetBool("RUN_MIGRATIONS"),
		MigrationsPath:             viper.GetString("MIGRATIONS_PATH"),
		CalcWorkers:                viper.GetInt("CALC_WORKERS"),
		RateLookupTimeout:          viper.GetDuration("RATE_LOOKUP_TIMEOUT"),
		ApprovalSweepInterval:      viper.GetDuration("APPROVAL_SWEEP_INTERVAL"),
		ApprovalDefaultTTL:         viper.GetDuration("APPROVAL_DEFAULT_TTL"),
		AllowanceMaxRetries:        viper.GetInt("ALLOWANCE_MAX_RETRIES"),
		RateLimit:                  viper.GetString("RATE_LIMIT"),
		CORSAllowedOrigins:         splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		ServiceBusConnectionString: viper.GetString("SERVICEBUS_CONNECTION_STRING"),
		ServiceBusQueue:            viper.GetString("SERVICEBUS_QUEUE"),
		AuditArchiveDSN:            viper.GetString("AUDIT_ARCHIVE_DSN"),
		AuthzModelPath:             viper.GetString("AUTHZ_MODEL_PATH"),
		AuthzPolicyPath:            viper.GetString("AUTHZ_POLICY_PATH"),
		StatementTitle:             viper.GetString("STATEMENT_TITLE"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}
	if cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.CalcWorkers <= 0 {
		return fmt.Errorf("CALC_WORKERS must be positive, got %d", c.CalcWorkers)
	}
	if c.RateLookupTimeout <= 0 {
		return fmt.Errorf("RATE_LOOKUP_TIMEOUT must be positive, got %s", c.RateLookupTimeout)
	}
	if c.ApprovalSweepInterval <= 0 {
		return fmt.Errorf("APPROVAL_SWEEP_INTERVAL must be positive, got %s", c.ApprovalSweepInterval)
	}
	if c.ApprovalDefaultTTL <= 0 {
		return fmt.Errorf("APPROVAL_DEFAULT_TTL must be positive, got %s", c.ApprovalDefaultTTL)
	}
	if c.AllowanceMaxRetries < 0 {
		return fmt.Errorf("ALLOWANCE_MAX_RETRIES must not be negative, got %d", c.AllowanceMaxRetries)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
