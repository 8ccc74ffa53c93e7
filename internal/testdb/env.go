package testdb

import (
	"net/url"
	"os"
	"strings"
	"testing"
)

// URL environment variables, in order of precedence.
var urlEnvVars = []string{"DATABASE_URL", "BESPOKE_DATABASE_URL"}

// DatabaseURL returns the configured test database URL, or "".
func DatabaseURL() string {
	for _, name := range urlEnvVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// RequireDatabaseURL returns the test database URL or skips the test.
func RequireDatabaseURL(t *testing.T) string {
	t.Helper()
	u := DatabaseURL()
	if u == "" {
		t.Skipf("none of %s is set", strings.Join(urlEnvVars, ", "))
	}
	return u
}

// MaskDatabaseURL hides the password of a connection URL for logging.
func MaskDatabaseURL(dbURL string) string {
	parsed, err := url.Parse(dbURL)
	if err != nil || parsed.User == nil {
		return dbURL
	}
	if _, ok := parsed.User.Password(); ok {
		parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
	}
	return parsed.String()
}
