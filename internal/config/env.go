// Package config loads the configuration recognized by the ETL client
// (§6.2): the retry defaults, logging verbosity, the list of protocol
// factories to run, and opaque per-protocol sections consumed only by
// drivers. Layering, low to high precedence: built-in defaults, a local
// .env file, the process environment, an optional --config file.
package config

import (
	"os"
	"strconv"
	"strings"
)

// GetenvOrDefault returns os.Getenv(key), or defaultValue if unset/blank.
func GetenvOrDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}

	return defaultValue
}

// GetenvBoolOrDefault parses os.Getenv(key) as a bool, or returns
// defaultValue if unset or unparsable.
func GetenvBoolOrDefault(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}

	return v
}

// GetenvFloatOrDefault parses os.Getenv(key) as a float64, or returns
// defaultValue if unset or unparsable.
func GetenvFloatOrDefault(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}

	return v
}

// GetenvIntOrDefault parses os.Getenv(key) as an int64, or returns
// defaultValue if unset or unparsable.
func GetenvIntOrDefault(key string, defaultValue int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return defaultValue
	}

	return v
}
