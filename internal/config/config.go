package config

import (
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

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Clinic contact details shown in every fallback message.
	ClinicName     string
	ClinicPhone    string
	ClinicAddress  string
	WorkingHours   string
	OperatorChatID int64
	OperatorEmail  string

	Timezone            string
	BookingDaysAhead    int
	SlotDurationMinutes int

	GoogleCalendarID      string
	GoogleCredentialsFile string

	LLMProvider             string
	GeminiAPIKey            string
	GeminiModel             string
	GeminiFastModel         string
	BedrockModelID          string
	BedrockFastModelID      string
	BedrockEmbeddingModelID string
	LLMMaxAttempts          int
	LLMInitialBackoff       time.Duration
	LLMMaxBackoff           time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	RetrievalTopK     int
	RetrievalMinScore float64
	RetrievalCacheTTL time.Duration
	MaxContextLength  int

	IntentCacheTTL time.Duration

	RateLimitTextCount      int
	RateLimitTextWindow     time.Duration
	RateLimitBookingCount   int
	RateLimitBookingWindow  time.Duration
	ReminderPollInterval    time.Duration
	ReminderBatchSize       int
	PendingDigestCron       string
	OutboundGatewayURL      string
	OutboundGatewayToken    string
	NATSURL                 string
	NATSToken               string
	EventSubjectPrefix      string
	EmailProvider           string
	SendGridAPIKey          string
	EmailFromAddress        string
	EmailFromName           string
	AdminJWTSecret          string
	WebchatSessionSecret    string
	WebchatSessionTTL       time.Duration
	CORSAllowedOrigins      []string
	ShutdownTimeout         time.Duration
	ConversationHistorySize int
	MetricsEnabled          bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		ClinicName:     getEnv("CLINIC_NAME", "Клиника косметологии"),
		ClinicPhone:    getEnv("CLINIC_PHONE", "+375 29 000-00-00"),
		ClinicAddress:  getEnv("CLINIC_ADDRESS", ""),
		WorkingHours:   getEnv("WORKING_HOURS", "Пн-Сб 09:00-18:00"),
		OperatorChatID: getEnvAsInt64("OPERATOR_CHAT_ID", 0),
		OperatorEmail:  getEnv("OPERATOR_EMAIL", ""),

		Timezone:            getEnv("CLINIC_TIMEZONE", "Europe/Minsk"),
		BookingDaysAhead:    getEnvAsInt("BOOKING_DAYS_AHEAD", 14),
		SlotDurationMinutes: getEnvAsInt("SLOT_DURATION_MINUTES", 60),

		GoogleCalendarID:      getEnv("GOOGLE_CALENDAR_ID", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),

		LLMProvider:             strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GeminiModel:             getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiFastModel:         getEnv("GEMINI_FAST_MODEL", "gemini-2.5-flash-lite"),
		BedrockModelID:          getEnv("BEDROCK_MODEL_ID", ""),
		BedrockFastModelID:      getEnv("BEDROCK_FAST_MODEL_ID", ""),
		BedrockEmbeddingModelID: getEnv("BEDROCK_EMBEDDING_MODEL_ID", "amazon.titan-embed-text-v2:0"),
		LLMMaxAttempts:          getEnvAsInt("LLM_MAX_ATTEMPTS", 3),
		LLMInitialBackoff:       getEnvAsDuration("LLM_INITIAL_BACKOFF", 4*time.Second),
		LLMMaxBackoff:           getEnvAsDuration("LLM_MAX_BACKOFF", 10*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RetrievalTopK:     getEnvAsInt("RETRIEVAL_TOP_K", 3),
		RetrievalMinScore: getEnvAsFloat("RETRIEVAL_MIN_SCORE", 0.5),
		RetrievalCacheTTL: getEnvAsDuration("RETRIEVAL_CACHE_TTL", 10*time.Minute),
		MaxContextLength:  getEnvAsInt("MAX_CONTEXT_LENGTH", 2000),

		IntentCacheTTL: getEnvAsDuration("INTENT_CACHE_TTL", 300*time.Second),

		RateLimitTextCount:      getEnvAsInt("RATE_LIMIT_TEXT_COUNT", 20),
		RateLimitTextWindow:     getEnvAsDuration("RATE_LIMIT_TEXT_WINDOW", time.Minute),
		RateLimitBookingCount:   getEnvAsInt("RATE_LIMIT_BOOKING_COUNT", 3),
		RateLimitBookingWindow:  getEnvAsDuration("RATE_LIMIT_BOOKING_WINDOW", 5*time.Minute),
		ReminderPollInterval:    getEnvAsDuration("REMINDER_POLL_INTERVAL", 30*time.Second),
		ReminderBatchSize:       getEnvAsInt("REMINDER_BATCH_SIZE", 50),
		PendingDigestCron:       getEnv("PENDING_DIGEST_CRON", "0 9 * * *"),
		OutboundGatewayURL:      getEnv("OUTBOUND_GATEWAY_URL", ""),
		OutboundGatewayToken:    getEnv("OUTBOUND_GATEWAY_TOKEN", ""),
		NATSURL:                 getEnv("NATS_URL", ""),
		NATSToken:               getEnv("NATS_TOKEN", ""),
		EventSubjectPrefix:      getEnv("EVENT_SUBJECT_PREFIX", "clinic.booking"),
		EmailProvider:           strings.ToLower(getEnv("EMAIL_PROVIDER", "")),
		SendGridAPIKey:          getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress:        getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "Ассистент клиники"),
		AdminJWTSecret:          getEnv("ADMIN_JWT_SECRET", ""),
		WebchatSessionSecret:    getEnv("WEBCHAT_SESSION_SECRET", ""),
		WebchatSessionTTL:       getEnvAsDuration("WEBCHAT_SESSION_TTL", 30*24*time.Hour),
		CORSAllowedOrigins:      getEnvAsList("CORS_ALLOWED_ORIGINS"),
		ShutdownTimeout:         getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		ConversationHistorySize: getEnvAsInt("CONVERSATION_HISTORY_SIZE", 5),
		MetricsEnabled:          getEnvAsBool("METRICS_ENABLED", true),
	}
}

// CalendarEnabled reports whether Google Calendar integration is configured.
func (c *Config) CalendarEnabled() bool {
	return strings.TrimSpace(c.GoogleCalendarID) != "" && strings.TrimSpace(c.GoogleCredentialsFile) != ""
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
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

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
