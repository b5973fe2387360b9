package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL        string
	DBConnectAttempts  int
	DBConnectBaseDelay time.Duration

	OpenAIAPIKey   string
	OpenAIModel    string
	EmbeddingModel string
	LLMTimeout     time.Duration
	LLMMaxAttempts int

	GeminiAPIKey string
	GeminiModel  string

	// Appointment rows are inserted with this status ("pending" or "scheduled").
	AppointmentStatus string

	PreferredChannel  string
	NotifyMaxAttempts int
	NotifyBaseDelay   time.Duration
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	DoctorPhone       string
	DoctorEmail       string
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	AWSRegion         string

	RedisAddr        string
	RedisPassword    string
	UseMemoryHistory bool

	DataDir      string
	ChunkSize    int
	ChunkOverlap int
	RetrieveTopK int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBConnectAttempts:  getEnvAsInt("DB_CONNECT_ATTEMPTS", 3),
		DBConnectBaseDelay: getEnvAsDuration("DB_CONNECT_BASE_DELAY", time.Second),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		LLMMaxAttempts: getEnvAsInt("LLM_MAX_ATTEMPTS", 3),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		AppointmentStatus: strings.ToLower(getEnv("APPOINTMENT_STATUS", "pending")),

		PreferredChannel:  strings.ToLower(getEnv("PREFERRED_CHANNEL", "sms")),
		NotifyMaxAttempts: getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 3),
		NotifyBaseDelay:   getEnvAsDuration("NOTIFY_BASE_DELAY", 200*time.Millisecond),
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:  getEnv("TWILIO_FROM_NUMBER", ""),
		DoctorPhone:       getEnv("DOCTOR_PHONE", ""),
		DoctorEmail:       getEnv("DOCTOR_EMAIL", ""),
		EmailProvider:     strings.ToLower(getEnv("EMAIL_PROVIDER", "sendgrid")),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Clinic Assistant"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),

		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		UseMemoryHistory: getEnvAsBool("USE_MEMORY_HISTORY", false),

		DataDir:      getEnv("DATA_DIR", "data/clinic_docs"),
		ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 200),
		RetrieveTopK: getEnvAsInt("RETRIEVE_TOP_K", 3),
	}
}

// Validate reports missing or inconsistent required settings. The server
// refuses to start when this returns an error.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.PreferredChannel != "sms" && c.PreferredChannel != "email" {
		return fmt.Errorf("config: PREFERRED_CHANNEL must be sms or email, got %q", c.PreferredChannel)
	}
	if c.AppointmentStatus != "pending" && c.AppointmentStatus != "scheduled" {
		return fmt.Errorf("config: APPOINTMENT_STATUS must be pending or scheduled, got %q", c.AppointmentStatus)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("config: CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
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
