// Package testing switches binaries into test mode when imported by a test.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

// Defaults are applied for variables the caller left unset.
var Defaults = map[string]string{
	"OPSDASH_TEST_MODE": "1",
	"USE_MOCK_DATA":     "true",
	"APP_ADDR":          "127.0.0.1:0",
	"LOG_LEVEL":         "warn",
}

var once sync.Once

// Setup applies Defaults once per process.
func Setup() {
	once.Do(func() {
		for key, value := range Defaults {
			if _, ok := os.LookupEnv(key); !ok {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	Setup()
}

func TestMain(m *stdtesting.M) {
	Setup()
	os.Exit(m.Run())
}
