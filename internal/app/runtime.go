package app

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const testModeEnv = "ODYSSEY_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// detectTestMode reads the ODYSSEY_TEST_MODE flag. "1" and "true" enable it.
func detectTestMode() {
	v := strings.TrimSpace(os.Getenv(testModeEnv))
	testModeFlag.Store(v == "1" || strings.EqualFold(v, "true"))
}

// InTestMode reports whether the binaries should skip connecting to
// Postgres and Redis.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode updates the cached flag after environment changes.
func RefreshTestMode() {
	detectTestMode()
}
