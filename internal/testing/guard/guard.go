// Package guard keeps tests off real infrastructure. Importing it switches on
// test mode and clears every address a test could otherwise dial.
package guard

import "os"

// Cleared lists the variables removed at init.
var Cleared = []string{"BACKEND_URL", "BACKEND_API_KEY", "REDIS_ADDR", "WEBHOOK_URL", "S3_BUCKET", "S3_ENDPOINT"}

func init() {
	_ = os.Setenv("OPSDASH_TEST_MODE", "1")
	for _, key := range Cleared {
		_ = os.Unsetenv(key)
	}
}
