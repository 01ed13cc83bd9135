// Package versioning derives the code version a trial is stamped with when
// the caller does not provide one.
package versioning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"
)

// DefaultVersion identifies the code that launched the run. It prefers the
// VCS revision the binary was built from, then a digest of the executable
// itself, and as a last resort a time-derived tag so the version is never
// empty.
func DefaultVersion() string {
	if rev := vcsRevision(); rev != "" {
		return rev
	}

	if exe, err := os.Executable(); err == nil {
		if digest, err := HashFile(exe); err == nil {
			return digest
		}
	}

	return "untracked-" + time.Now().UTC().Format("20060102150405")
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

// HashFile returns the sha256 hex digest of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
