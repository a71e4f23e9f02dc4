//go:build windows

package log

import (
	"os"
	"path/filepath"
)

func defaultDir() (string, error) {
	base, err := os.UserCacheDir() // %LocalAppData%
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "ragyverse", "logs"), nil
}
