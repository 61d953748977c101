// Package env reads process environment variables that sit outside the
// envconfig-managed configuration, such as LOG_FORMAT.
package env

import "os"

// Get returns the variable's value, or fallback when unset or empty.
func Get(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
