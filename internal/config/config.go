// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Deployment namespaces. The namespace prefixes every DynamoDB table name so
// dev/staging/prod data never share a table.
var validEnvironments = []string{"dev", "staging", "prod"}

type Config struct {
	Environment string
	Server      ServerConfig
	AWS         AWSConfig
	Auth        AuthConfig
	Schema      SchemaConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the DynamoDB endpoint (local DynamoDB in development).
	Endpoint string
}

type AuthConfig struct {
	ServiceTokenSecret string
	TokenTTL           int // in hours
}

type SchemaConfig struct {
	// ProvisionOnStart creates the product tables and indexes at startup if
	// they do not exist yet. Off by default; production tables are managed by
	// the versioned migrations.
	ProvisionOnStart bool
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("CATALOG_ENV", ""),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("DYNAMODB_ENDPOINT", ""),
		},
		Auth: AuthConfig{
			ServiceTokenSecret: getEnv("SERVICE_TOKEN_SECRET", "change-me-in-production"),
			TokenTTL:           getEnvAsInt("SERVICE_TOKEN_TTL", 24),
		},
		Schema: SchemaConfig{
			ProvisionOnStart: getEnvAsBool("SCHEMA_PROVISION_ON_START", false),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	valid := false
	for _, env := range validEnvironments {
		if c.Environment == env {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf(
			`environment variable "CATALOG_ENV" is not set or is invalid (should be one of %s)`,
			strings.Join(validEnvironments, ", "),
		)
	}

	if c.Auth.ServiceTokenSecret == "change-me-in-production" && c.Environment == "prod" {
		return fmt.Errorf("service token secret must be changed in production")
	}

	return nil
}

// TablePrefix returns the namespace prefix for all table names, e.g.
// "catalog_dev" for the dev environment.
func (c *Config) TablePrefix() string {
	return strings.ToLower("catalog_" + c.Environment)
}

// TableName prefixes a logical table name with the deployment namespace.
func (c *Config) TableName(name string) string {
	return c.TablePrefix() + "_" + name
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
