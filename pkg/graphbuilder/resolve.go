package graphbuilder

import (
	"path/filepath"
	"strings"

	"github.com/codegraph-dev/codegraph/pkg/alg/bloom"
)

// buildKnownSymbolFilter sizes a bloom filter over every short function name
// known across the repo, used as a fast "definitely unknown" pre-filter
// before the exact short-name map lookup (spec 4.2 step 5).
func buildKnownSymbolFilter(shortNameMap map[string]string) *bloom.Filter {
	n := uint(len(shortNameMap))
	if n == 0 {
		n = 1
	}

	f, err := bloom.NewWithEstimates(n, 0.01)
	if err != nil {
		return nil
	}

	for name := range shortNameMap {
		f.Add([]byte(name))
	}

	return f
}

// splitCallee splits a callee symbol of the form `name`, `module::name`, or
// `receiver.name` into (module, name), per spec 4.2 step 5.
func splitCallee(symbol string) (module, name string) {
	symbol = stripReceiver(symbol)

	if idx := strings.LastIndex(symbol, "::"); idx >= 0 {
		return symbol[:idx], symbol[idx+2:]
	}

	return "", symbol
}

// stripReceiver removes a leading "receiver." if present, keeping the final
// dotted segment as the callable name.
func stripReceiver(symbol string) string {
	if idx := strings.LastIndex(symbol, "."); idx >= 0 {
		return symbol[idx+1:]
	}

	return symbol
}

// resolveCallee implements spec 4.2 step 5's resolution order: same-file
// match, then module-qualified cross-file match, then the global
// short-name map. Returns "" if no resolution succeeds (external symbol,
// edge dropped).
func resolveCallee(
	callerFile, symbol string,
	byFile map[string]fileParse,
	shortNameMap map[string]string,
	known *bloom.Filter,
) string {
	module, name := splitCallee(symbol)

	if known != nil && !known.Test([]byte(name)) {
		return ""
	}

	if local, ok := byFile[callerFile]; ok {
		if qn, ok := local.funcByName[name]; ok {
			return qn
		}
	}

	if module != "" {
		for path, fp := range byFile {
			if path == callerFile {
				continue
			}

			stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if stem == module || strings.HasSuffix(path, "/"+module+filepath.Ext(path)) {
				if qn, ok := fp.funcByName[name]; ok {
					return qn
				}
			}
		}
	}

	return shortNameMap[name]
}

// normalizeImportSpec strips leading relative and language-module prefixes
// from a raw import specifier (spec 4.2 step 6).
func normalizeImportSpec(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, `"'`)
	raw = strings.ReplaceAll(raw, "::", "/")

	for strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") {
		raw = strings.TrimPrefix(raw, "./")
		raw = strings.TrimPrefix(raw, "../")
	}

	return strings.TrimPrefix(raw, "/")
}

// resolveImport implements spec 4.2 step 6: match any other file whose path
// equals or ends with the normalized spec plus a known extension, or
// corresponds to the first module segment as <seg>/mod.<ext> or
// <seg>/__init__.<ext>. First match wins; self-imports are skipped.
func resolveImport(selfFile, rawSpec string, files []string, extensions []string) string {
	spec := normalizeImportSpec(rawSpec)
	if spec == "" {
		return ""
	}

	firstSeg := spec

	if idx := strings.Index(spec, "/"); idx >= 0 {
		firstSeg = spec[:idx]
	}

	for _, f := range files {
		if f == selfFile {
			continue
		}

		slashed := filepath.ToSlash(f)

		for _, ext := range extensions {
			if slashed == spec+ext || strings.HasSuffix(slashed, "/"+spec+ext) {
				return f
			}

			if strings.HasSuffix(slashed, "/"+firstSeg+"/mod"+ext) ||
				strings.HasSuffix(slashed, "/"+firstSeg+"/__init__"+ext) {
				return f
			}
		}
	}

	return ""
}
