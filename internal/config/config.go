package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	PublicBaseURL  string
	LogLevel       string
	ClinicTimezone string
	ClinicID       string
	SeedDemoData   bool

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Hosted voice platform (Vapi)
	VapiAPIKey            string
	VapiBaseURL           string
	VapiPhoneNumberID     string
	VapiWebhookSecret     string
	AllowUnsignedWebhooks bool

	// Patient SMS confirmations
	TelnyxAPIKey             string
	TelnyxMessagingProfileID string
	SMSFromNumber            string

	// Clinic inbox email
	EmailProvider     string
	ClinicInboxEmail  string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	CallArchiveBucket   string

	ReminderInterval time.Duration
	ReminderLeadTime time.Duration
	ReminderBatch    int
	// RemindersInline runs the reminder loop inside the API process. Disable it
	// when cmd/reminder-worker is deployed.
	RemindersInline  bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "UTC"),
		ClinicID:       getEnv("CLINIC_ID", "sai-clinic"),
		SeedDemoData:   getEnvAsBool("SEED_DEMO_DATA", false),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		VapiAPIKey:            getEnv("VAPI_API_KEY", ""),
		VapiBaseURL:           getEnv("VAPI_BASE_URL", "https://api.vapi.ai"),
		VapiPhoneNumberID:     getEnv("VAPI_PHONE_NUMBER_ID", ""),
		VapiWebhookSecret:     getEnv("VAPI_WEBHOOK_SECRET", ""),
		AllowUnsignedWebhooks: getEnvAsBool("ALLOW_UNSIGNED_WEBHOOKS", false),

		TelnyxAPIKey:             getEnv("TELNYX_API_KEY", ""),
		TelnyxMessagingProfileID: getEnv("TELNYX_MESSAGING_PROFILE_ID", ""),
		SMSFromNumber:            getEnv("SMS_FROM_NUMBER", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		ClinicInboxEmail:  getEnv("CLINIC_INBOX_EMAIL", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Sai Clinic Receptionist"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		CallArchiveBucket:   getEnv("CALL_ARCHIVE_BUCKET", ""),

		ReminderInterval: getEnvAsDuration("REMINDER_INTERVAL", 5*time.Minute),
		ReminderLeadTime: getEnvAsDuration("REMINDER_LEAD_TIME", 24*time.Hour),
		ReminderBatch:    getEnvAsInt("REMINDER_BATCH", 50),
		RemindersInline:  getEnvAsBool("REMINDERS_INLINE", true),
	}
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// Location resolves ClinicTimezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
