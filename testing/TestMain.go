// Package testing switches the binaries into test mode when imported by a test.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

// Defaults applies only to variables the environment leaves unset, so a
// developer can still point a test run at a real Postgres or Redis.
var Defaults = map[string]string{
	"ODYSSEY_TEST_MODE":     "1",
	"APP_ENV":               "test",
	"JWT_SECRET":            "odyssey-test-secret-0123456789",
	"AUDIT_ASYNC":           "false",
	"PERMISSION_CACHE_TTL":  "1s",
	"RATE_LIMIT_PER_MINUTE": "10000",
}

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		for key, value := range Defaults {
			if _, ok := os.LookupEnv(key); !ok {
				_ = os.Setenv(key, value)
			}
		}
		// Test mode is never left to the environment.
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
