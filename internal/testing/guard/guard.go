// Package guard flips binaries into test mode when imported from test code.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("AGRISTOCK_TEST_MODE") == "" {
			_ = os.Setenv("AGRISTOCK_TEST_MODE", "1")
		}
	})
}
