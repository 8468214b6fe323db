// Package config loads the application configuration from defaults, command
// line flags, a .env file, and environment variables, in that order of
// precedence (environment wins). Invalid or missing required values are
// startup errors, not runtime errors.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config carries every tunable of the service.
type Config struct {
	RunAddr  string `env:"SERVER_ADDRESS" validate:"hostname_port"`
	LogLevel string `env:"LOG_LEVEL" validate:"loglevel"`

	// DatabaseDSN selects the PostgreSQL backing when non-empty. It can be
	// given directly or assembled from the DB* parts below.
	DatabaseDSN string `env:"DATABASE_DSN"`
	DBHost      string `env:"DB_HOST"`
	DBPort      int    `env:"DB_PORT"`
	DBUser      string `env:"DB_USER"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME"`
	DBSSL       bool   `env:"DB_SSL"`

	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR" validate:"filepath"`

	// FileStoragePath selects the JSON-file backing when non-empty and no
	// database is configured. It is a directory holding users.json,
	// qr_codes.json, and the qr_images cache.
	FileStoragePath string `env:"FILE_STORAGE_PATH" validate:"filepath"`

	SessionCookieName       string `env:"SESSION_COOKIE_NAME" validate:"required"`
	SessionSigningSecretKey string `env:"SESSION_SECRET_KEY" validate:"required,base64url"`

	// TrustedSubnet (CIDR) guards the internal stats endpoint. Empty keeps
	// the endpoint closed.
	TrustedSubnet string `env:"TRUSTED_SUBNET"`

	SweeperQueueCapacity int           `env:"SWEEPER_QUEUE_CAPACITY"`
	DelayBetweenSweeps   time.Duration `env:"SWEEPER_INTERVAL"`
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warning": true,
		"error":   true,
		"fatal":   true,
	}

	return allowedLogLevels[value]
}

func validate(values *Config) error {
	theValidator := validator.New()

	err := theValidator.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = theValidator.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return theValidator.Struct(values)
}

// InitOption customizes New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing skips command line flag registration; tests use it
// so the flag package is not touched twice.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds the Config from defaults, flags, .env, and environment.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{
		RunAddr:             ":8080",
		LogLevel:            "info",
		DatabaseDSN:         "",
		DBPort:              5432,
		DBConnectionTimeout: 10 * time.Second,
		MigrationsDir:       "cmd/qrvault/migrations",
		FileStoragePath:     "",
		SessionCookieName:   "qrvault_session",
		// Development-only default; override in any real deployment.
		SessionSigningSecretKey: "c3VwZXJzZWNyZXRrZXk=",
		SweeperQueueCapacity:    64,
		DelayBetweenSweeps:      5,
	}
	if !options.disableFlagsParsing {
		flag.StringVar(&values.RunAddr, "a", values.RunAddr, "address and port to run server")
		flag.StringVar(&values.LogLevel, "l", values.LogLevel, "logger level")
		flag.StringVar(&values.DatabaseDSN, "d", values.DatabaseDSN, "a string with the database connection details")
		flag.StringVar(&values.FileStoragePath, "f", values.FileStoragePath, "directory with the JSON database and image cache")
		flag.StringVar(&values.MigrationsDir, "m", values.MigrationsDir, "directory with the goose migrations")
		flag.StringVar(&values.TrustedSubnet, "t", values.TrustedSubnet, "CIDR of the subnet trusted to read internal stats")
		flag.Parse()
	}

	valuesFromEnv := Config{}
	err = env.Parse(&valuesFromEnv)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(values, &valuesFromEnv)

	if values.DatabaseDSN == "" && values.DBHost != "" {
		values.DatabaseDSN = assembleDSN(values)
	}

	return values, validate(values)
}

func applyEnvOverrides(values, valuesFromEnv *Config) {
	if valuesFromEnv.RunAddr != "" {
		values.RunAddr = valuesFromEnv.RunAddr
	}

	if valuesFromEnv.LogLevel != "" {
		values.LogLevel = valuesFromEnv.LogLevel
	}

	if valuesFromEnv.DatabaseDSN != "" {
		values.DatabaseDSN = valuesFromEnv.DatabaseDSN
	}

	if valuesFromEnv.DBHost != "" {
		values.DBHost = valuesFromEnv.DBHost
	}

	if valuesFromEnv.DBPort != 0 {
		values.DBPort = valuesFromEnv.DBPort
	}

	if valuesFromEnv.DBUser != "" {
		values.DBUser = valuesFromEnv.DBUser
	}

	if valuesFromEnv.DBPassword != "" {
		values.DBPassword = valuesFromEnv.DBPassword
	}

	if valuesFromEnv.DBName != "" {
		values.DBName = valuesFromEnv.DBName
	}

	if valuesFromEnv.DBSSL {
		values.DBSSL = true
	}

	if valuesFromEnv.DBConnectionTimeout != 0 {
		values.DBConnectionTimeout = valuesFromEnv.DBConnectionTimeout
	}

	if valuesFromEnv.MigrationsDir != "" {
		values.MigrationsDir = valuesFromEnv.MigrationsDir
	}

	if valuesFromEnv.FileStoragePath != "" {
		values.FileStoragePath = valuesFromEnv.FileStoragePath
	}

	if valuesFromEnv.SessionCookieName != "" {
		values.SessionCookieName = valuesFromEnv.SessionCookieName
	}

	if valuesFromEnv.SessionSigningSecretKey != "" {
		values.SessionSigningSecretKey = valuesFromEnv.SessionSigningSecretKey
	}

	if valuesFromEnv.TrustedSubnet != "" {
		values.TrustedSubnet = valuesFromEnv.TrustedSubnet
	}

	if valuesFromEnv.SweeperQueueCapacity != 0 {
		values.SweeperQueueCapacity = valuesFromEnv.SweeperQueueCapacity
	}

	if valuesFromEnv.DelayBetweenSweeps != 0 {
		values.DelayBetweenSweeps = valuesFromEnv.DelayBetweenSweeps
	}
}

func assembleDSN(values *Config) string {
	sslMode := "disable"
	if values.DBSSL {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		values.DBUser,
		values.DBPassword,
		values.DBHost,
		values.DBPort,
		values.DBName,
		sslMode,
	)
}
