// Package testing switches binaries into test mode when imported by tests, so
// main packages can be exercised without opening database or Redis
// connections.
package testing

import (
	"os"
	"sync"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		if os.Getenv("RATES_URL") == "" {
			_ = os.Setenv("RATES_URL", "http://127.0.0.1:0/rates")
		}
	})
}

func init() {
	ensureTestMode()
}
