// Package cachedir maps a repository path to its stable per-repo cache
// directory, adapted from the teacher's pkg/checkpoint.RepoHash hashing
// idiom and generalized to also compute the sanitized repo-name prefix
// spec sec 6 requires: ~/.cache/<app>/<repo-name>-<12-hex>/.
package cachedir

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

const (
	hashSuffixLen = 12
	maxNamePrefix = 20
)

// Resolve returns the cache directory for repoPath under ~/.cache/<app>/.
// If the home directory cannot be determined, it returns the relative path
// ./.cache/<app>/<dir> instead.
func Resolve(appName, repoPath string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	dirName, err := DirName(repoPath)
	if err != nil {
		return "", err
	}

	return filepath.Join(home, ".cache", appName, dirName), nil
}

// DirName computes the "<sanitized-repo-name>-<12-hex>" directory name for
// repoPath's canonical absolute form.
func DirName(repoPath string) (string, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return "", err
	}

	abs = filepath.Clean(abs)

	sum := sha256.Sum256([]byte(abs))
	suffix := hex.EncodeToString(sum[:])[:hashSuffixLen]

	prefix := sanitize(filepath.Base(abs))
	if prefix == "" {
		prefix = "repo"
	}

	return prefix + "-" + suffix, nil
}

// sanitize keeps only alphanumeric/-/_ characters, truncated to
// maxNamePrefix characters.
func sanitize(name string) string {
	var b strings.Builder

	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}

		if b.Len() >= maxNamePrefix {
			break
		}
	}

	return b.String()
}
