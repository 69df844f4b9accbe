package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadENV loads environment variables from .env unless GO_ENV says otherwise
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	APP_URL      string
	FRONTEND_URL string
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL string
	// Attachment storage (S3-compatible private disk)
	STORAGE_DISK      string
	SPACES_ACCESS_KEY string
	SPACES_SECRET_KEY string
	SPACES_BUCKET     string
	SPACES_REGION     string
	SPACES_ENDPOINT   string
	// Payments
	PAYMENT_DEFAULT_CURRENCY string
	STRIPE_SECRET_KEY        string
	STRIPE_WEBHOOK_SECRET    string
	RAZORPAY_KEY_ID          string
	RAZORPAY_KEY_SECRET      string
	RAZORPAY_WEBHOOK_SECRET  string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		appURL = "http://localhost:8080"
	}

	// Where the browser lands after provider checkout
	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}

	currency := os.Getenv("PAYMENT_DEFAULT_CURRENCY")
	if currency == "" {
		currency = "USD"
	}

	disk := os.Getenv("STORAGE_DISK")
	if disk == "" {
		disk = "local"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		APP_URL:      appURL,
		FRONTEND_URL: frontendURL,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: os.Getenv("JWT_ISSUER"),
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// Storage
		STORAGE_DISK:      disk,
		SPACES_ACCESS_KEY: os.Getenv("SPACES_ACCESS_KEY"),
		SPACES_SECRET_KEY: os.Getenv("SPACES_SECRET_KEY"),
		SPACES_BUCKET:     os.Getenv("SPACES_BUCKET"),
		SPACES_REGION:     os.Getenv("SPACES_REGION"),
		SPACES_ENDPOINT:   os.Getenv("SPACES_ENDPOINT"),
		// Payments
		PAYMENT_DEFAULT_CURRENCY: currency,
		STRIPE_SECRET_KEY:        os.Getenv("STRIPE_SECRET_KEY"),
		STRIPE_WEBHOOK_SECRET:    os.Getenv("STRIPE_WEBHOOK_SECRET"),
		RAZORPAY_KEY_ID:          os.Getenv("RAZORPAY_KEY_ID"),
		RAZORPAY_KEY_SECRET:      os.Getenv("RAZORPAY_KEY_SECRET"),
		RAZORPAY_WEBHOOK_SECRET:  os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
	}

	return envVariables, nil
}
