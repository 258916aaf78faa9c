package graphbuilder

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

const ignoreFileName = ".codegraphignore"

// walkFiles returns every file under root whose extension is in extensions,
// honoring hidden files, a .gitignore-style custom per-repo ignore file
// (ignoreFileName), and skipping .git directories (spec 4.2 step 1).
func walkFiles(root string, extensions map[string]bool) ([]string, error) {
	ignore := loadIgnorePatterns(root)

	var files []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // non-fatal per spec 4.2/7: unreadable entries are skipped.
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		if info.IsDir() {
			if isHidden(info.Name()) && rel != "." {
				return filepath.SkipDir
			}

			if matchesIgnore(rel, ignore) {
				return filepath.SkipDir
			}

			return nil
		}

		if isHidden(info.Name()) {
			return nil
		}

		if matchesIgnore(rel, ignore) {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if extensions[ext] {
			files = append(files, path)
		}

		return nil
	})

	return files, err
}

func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}

func loadIgnorePatterns(root string) []string {
	var patterns []string

	for _, name := range []string{".gitignore", ignoreFileName} {
		f, err := os.Open(filepath.Join(root, name))
		if err != nil {
			continue
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			patterns = append(patterns, line)
		}

		f.Close()
	}

	return patterns
}

func matchesIgnore(rel string, patterns []string) bool {
	rel = filepath.ToSlash(rel)

	for _, p := range patterns {
		p = strings.TrimSuffix(p, "/")
		if rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}

		if ok, _ := filepath.Match(p, filepath.Base(rel)); ok {
			return true
		}
	}

	return false
}
