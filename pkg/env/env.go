// Package env has the few raw environment lookups needed before config
// parsing is available (logger bootstrap runs first).
package env

import "os"

// Get returns the environment variable value, or fallback when the variable
// is unset or empty.
func Get(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
