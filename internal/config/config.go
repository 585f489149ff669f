package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	Environment    string
	AllowedOrigins []string
}

func NewConfig(serverAddr, databaseDSN, environment string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	if environment == "" {
		environment = EnvDevelopment
	}
	if environment != EnvProduction && environment != EnvDevelopment {
		return nil, fmt.Errorf("invalid environment %q", environment)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		Environment:    environment,
		AllowedOrigins: allowedOrigins,
	}, nil
}

// IsProduction reports whether the cross-origin allow-list is enforced.
// Outside production any origin is accepted.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Getenv returns the value of the environment variable or a default,
// used for flag defaults in main.
func Getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// SplitOrigins turns a comma-separated origin list into a slice,
// dropping empty entries.
func SplitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
