package kernel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandEnv substitutes `$(NAME)` references against the process
// environment, applied to every path-shaped value after the YAML/env
// merge (spec §6 "Variable references $(NAME)").
func ExpandEnv(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '(' {
			end := strings.IndexByte(s[i+2:], ')')
			if end >= 0 {
				name := s[i+2 : i+2+end]
				b.WriteString(os.Getenv(name))
				i += 2 + end + 1
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// ResolveFilePath implements spec §4.6 "get_file_path(short_name,
// including_file)": as an absolute path; relative to the current working
// directory; relative to each search-path entry; relative to the
// including file's directory. If a repository root is configured and
// strict-paths is on, only a path inside it is accepted. On failure the
// error lists every path tried.
func (k *Kernel) ResolveFilePath(shortName string, includingDir string) (string, error) {
	name := ExpandEnv(shortName)
	var tried []string

	tryPath := func(p string) (string, bool) {
		tried = append(tried, p)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			abs, err := filepath.Abs(p)
			if err != nil {
				return "", false
			}
			if k.settings.RepoRoot != "" && k.settings.StrictPaths {
				rel, err := filepath.Rel(k.settings.RepoRoot, abs)
				if err != nil || strings.HasPrefix(rel, "..") {
					return "", false
				}
			}
			return abs, true
		}
		return "", false
	}

	if filepath.IsAbs(name) {
		if p, ok := tryPath(name); ok {
			return p, nil
		}
	} else {
		if p, ok := tryPath(name); ok {
			return p, nil
		}
		for _, dir := range k.settings.SearchPath {
			if p, ok := tryPath(filepath.Join(ExpandEnv(dir), name)); ok {
				return p, nil
			}
		}
		if includingDir != "" {
			if p, ok := tryPath(filepath.Join(includingDir, name)); ok {
				return p, nil
			}
		}
	}

	return "", fmt.Errorf("kernel: could not resolve %q, tried: %s", shortName, strings.Join(tried, ", "))
}

// ValidateIncludePath enforces spec §4.6's "an include path in a
// repository-backed file is rejected if it is absolute or contains `.`
// / `..` segments; it must be repository-relative".
func ValidateIncludePath(p string) error {
	if filepath.IsAbs(p) {
		return fmt.Errorf("kernel: include path %q must be repository-relative, not absolute", p)
	}
	for _, seg := range strings.Split(filepath.ToSlash(p), "/") {
		if seg == "." || seg == ".." {
			return fmt.Errorf("kernel: include path %q may not contain %q segments", p, seg)
		}
	}
	return nil
}
