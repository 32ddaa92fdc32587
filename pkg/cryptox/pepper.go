package cryptox

import (
	"os"
	"strings"
	"sync"
)

var (
	pepperOnce sync.Once
	pepperPath = "pepper"
	pepper     string
)

// SetPepperPath overrides the file the pepper is loaded from. Must be called
// before the first password hash or verify.
func SetPepperPath(path string) {
	if path != "" {
		pepperPath = path
	}
}

// GetPepper loads the pepper from disk on first use. A missing file yields an
// empty pepper, which keeps hashes valid but unpeppered (dev setups).
func GetPepper() string {
	pepperOnce.Do(func() {
		data, err := os.ReadFile(pepperPath)
		if err != nil {
			pepper = ""
			return
		}
		pepper = strings.TrimSpace(string(data))
	})
	return pepper
}
