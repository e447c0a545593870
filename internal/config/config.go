package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "change-me"

// Config holds application level configuration. It is loaded once at start
// and passed by pointer; nothing mutates it afterwards.
type Config struct {
	ServerPort     string
	Env            string
	RequestTimeout time.Duration
	BodyLimit      string
	CORSOrigins    []string

	MongoURI          string
	MongoDatabase     string
	MongoTransactions bool

	// MySQLDSN is optional; without it the notification log is disabled.
	MySQLDSN string

	RedisAddr string
	RedisDB   int
	RedisPass string

	JWTSecret string

	S3Region        string
	S3Bucket        string
	S3Endpoint      string
	S3PublicBaseURL string
	S3UsePathStyle  bool

	UploadMaxFileSize int64
	UploadMaxImages   int

	FrontendURL string

	BrevoAPIKey   string
	EmailFrom     string
	EmailFromName string

	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string

	AuthRateLimit   float64
	ListingCacheTTL time.Duration

	SwaggerHost string
}

// Load builds Config from defaults, an optional config.yaml, an optional .env
// file and the process environment, in increasing order of precedence.
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()

	return &Config{
		ServerPort:     v.GetString("SERVER_PORT"),
		Env:            v.GetString("APP_ENV"),
		RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
		BodyLimit:      v.GetString("BODY_LIMIT"),
		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),

		MongoURI:          v.GetString("MONGO_URI"),
		MongoDatabase:     v.GetString("MONGO_DATABASE"),
		MongoTransactions: v.GetBool("MONGO_TRANSACTIONS"),

		MySQLDSN: v.GetString("MYSQL_DSN"),

		RedisAddr: v.GetString("REDIS_ADDR"),
		RedisDB:   v.GetInt("REDIS_DB"),
		RedisPass: v.GetString("REDIS_PASSWORD"),

		JWTSecret: v.GetString("JWT_SECRET"),

		S3Region:        v.GetString("S3_REGION"),
		S3Bucket:        v.GetString("S3_BUCKET"),
		S3Endpoint:      v.GetString("S3_ENDPOINT"),
		S3PublicBaseURL: v.GetString("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:  v.GetBool("S3_USE_PATH_STYLE"),

		UploadMaxFileSize: v.GetInt64("UPLOAD_MAX_FILE_SIZE"),
		UploadMaxImages:   v.GetInt("UPLOAD_MAX_IMAGES"),

		FrontendURL: strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),

		BrevoAPIKey:   v.GetString("BREVO_API_KEY"),
		EmailFrom:     v.GetString("EMAIL_FROM"),
		EmailFromName: v.GetString("EMAIL_FROM_NAME"),

		TwilioAccountSID:   v.GetString("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    v.GetString("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppFrom: v.GetString("TWILIO_WHATSAPP_FROM"),

		AuthRateLimit:   v.GetFloat64("AUTH_RATE_LIMIT"),
		ListingCacheTTL: v.GetDuration("LISTING_CACHE_TTL"),

		SwaggerHost: v.GetString("SWAGGER_HOST"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("REQUEST_TIMEOUT", 60*time.Second)
	v.SetDefault("BODY_LIMIT", "120M")
	v.SetDefault("CORS_ORIGINS", "https://www.siddiqproperties.com,http://localhost:3000")

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "PropertySales")
	v.SetDefault("MONGO_TRANSACTIONS", true)

	v.SetDefault("MYSQL_DSN", "")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PASSWORD", "")

	v.SetDefault("JWT_SECRET", defaultJWTSecret)

	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_BUCKET", "maskan-listings")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_PUBLIC_BASE_URL", "")
	v.SetDefault("S3_USE_PATH_STYLE", false)

	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 10<<20)
	v.SetDefault("UPLOAD_MAX_IMAGES", 10)

	v.SetDefault("FRONTEND_URL", "https://www.siddiqproperties.com")

	v.SetDefault("BREVO_API_KEY", "")
	v.SetDefault("EMAIL_FROM", "no-reply@siddiqproperties.com")
	v.SetDefault("EMAIL_FROM_NAME", "MASKAN")

	v.SetDefault("TWILIO_ACCOUNT_SID", "")
	v.SetDefault("TWILIO_AUTH_TOKEN", "")
	v.SetDefault("TWILIO_WHATSAPP_FROM", "")

	v.SetDefault("AUTH_RATE_LIMIT", 5)
	v.SetDefault("LISTING_CACHE_TTL", 30*time.Second)

	v.SetDefault("SWAGGER_HOST", "")
}

// Validate reports configuration that is unsafe to run with.
func (c *Config) Validate() error {
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.UploadMaxImages <= 0 {
		return errors.New("UPLOAD_MAX_IMAGES must be positive")
	}
	if c.UploadMaxFileSize <= 0 {
		return errors.New("UPLOAD_MAX_FILE_SIZE must be positive")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
