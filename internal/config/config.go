package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	JWTSecret    string
	MongoURI     string
	DBName       string
	SkipAuth     bool
	Environment  string
	AppId        string
	ServicesURL  string // Public base URL of this service, used to mint local ids
	RerumURL     string // Base URL of the RERUM annotation store API
	RerumIDBase  string // Prefix under which the RERUM store mints ids
	RerumToken   string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	MailFrom     string
	InterfaceURL string // Browser frontend, used in invite links
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		smtpPort = 587
	}

	return &Config{
		Port:         getEnv("PORT", "3001"),
		JWTSecret:    getEnv("JWT_SECRET", "secret"),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:       getEnv("DB_NAME", "tpen-services"),
		SkipAuth:     getEnv("SKIP_AUTH", "false") == "true",
		Environment:  getEnv("ENVIRONMENT", "development"),
		AppId:        getEnv("APP_ID", "tpen-services"),
		ServicesURL:  getEnv("SERVICES_URL", "https://api.t-pen.org"),
		RerumURL:     getEnv("RERUM_URL", "https://store.rerum.io/v1/api"),
		RerumIDBase:  getEnv("RERUM_ID_BASE", "https://store.rerum.io/v1/id"),
		RerumToken:   getEnv("RERUM_TOKEN", ""),
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     smtpPort,
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPass:     getEnv("SMTP_PASS", ""),
		MailFrom:     getEnv("MAIL_FROM", "no-reply@t-pen.org"),
		InterfaceURL: getEnv("INTERFACE_URL", "https://app.t-pen.org"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
