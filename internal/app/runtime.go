package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// TestModeEnv makes both binaries return before dialling anything.
const TestModeEnv = "OPSDASH_TEST_MODE"

var testMode struct {
	once sync.Once
	on   atomic.Bool
}

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	testMode.once.Do(RefreshTestMode)
	return testMode.on.Load()
}

// RefreshTestMode re-reads the environment.
func RefreshTestMode() {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.on.Store(on)
}
