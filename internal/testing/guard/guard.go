package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("TAWTHIQ_TEST_MODE") == "" {
			_ = os.Setenv("TAWTHIQ_TEST_MODE", "1")
		}
	})
}
