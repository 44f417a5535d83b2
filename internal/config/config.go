// Package config resolves a Kernel's Settings from an optional oks.yaml
// profile layered with environment-variable overrides (spec §6 "Path
// resolution inputs"), decoded with goccy/go-yaml the way
// magicschema.ParseYAMLValue decodes its own YAML input before
// env/flag overrides are applied.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"oks/internal/kernel"
	"oks/internal/oklog"
)

// Profile is the oks.yaml document shape. Every field is optional; a
// field absent from the file keeps kernel.Settings' zero value until an
// environment variable or flag overrides it.
type Profile struct {
	SearchPath  []string `yaml:"search_path"`
	RepoRoot    string   `yaml:"repo_root"`
	StrictPaths bool     `yaml:"strict_paths"`

	PoolSize int `yaml:"pool_size"`

	InheritedIDCheck       bool `yaml:"inherited_id_check"`
	AllowDuplicateClass    bool `yaml:"allow_duplicate_class"`
	AllowDuplicateObjectID bool `yaml:"allow_duplicate_object_id"`
	Verbose                bool `yaml:"verbose"`
	Silence                bool `yaml:"silence"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Environment variable names interpreted on top of the YAML profile
// (spec §6 "Path resolution inputs"). Each wins over both the profile
// default and any earlier-set value, matching the spec's "explicit
// override wins" rule for thread-pool sizing generalized to every
// toggle.
const (
	EnvSearchPath             = "OKS_SEARCH_PATH"
	EnvRepoRoot               = "OKS_REPOSITORY_ROOT"
	EnvStrictPaths            = "OKS_STRICT_PATHS"
	EnvPoolSize               = "OKS_POOL_SIZE"
	EnvInheritedIDCheck       = "OKS_INHERITED_ID_CHECK"
	EnvAllowDuplicateClass    = "OKS_ALLOW_DUPLICATE_CLASS"
	EnvAllowDuplicateObjectID = "OKS_ALLOW_DUPLICATE_OBJECT_ID"
	EnvVerbose                = "OKS_VERBOSE"
	EnvSilence                = "OKS_SILENCE"
)

// Load reads path as a YAML profile (a missing path is not an error — it
// resolves to the default Profile — log level "info", format "text",
// every other field zero — so a bare environment-only deployment works), then returns the merged kernel.Settings and oklog.Config.
func Load(path string) (kernel.Settings, *oklog.Config, error) {
	prof := Profile{LogLevel: "info", LogFormat: "text"}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(raw, &prof); err != nil {
				return kernel.Settings{}, nil, fmt.Errorf("config: %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return kernel.Settings{}, nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	applyEnvOverrides(&prof)

	settings := kernel.Settings{
		SearchPath:             expandAll(prof.SearchPath),
		RepoRoot:               kernel.ExpandEnv(prof.RepoRoot),
		StrictPaths:            prof.StrictPaths,
		PoolSize:               resolvePoolSize(prof.PoolSize),
		InheritedIDCheck:       prof.InheritedIDCheck,
		AllowDuplicateClass:    prof.AllowDuplicateClass,
		AllowDuplicateObjectID: prof.AllowDuplicateObjectID,
		Verbose:                prof.Verbose,
		Silence:                prof.Silence,
	}

	logCfg := oklog.NewConfig()
	logCfg.Level = prof.LogLevel
	logCfg.Format = prof.LogFormat
	if prof.Verbose {
		logCfg.Level = "verbose"
	}
	if prof.Silence {
		logCfg.Level = "silence"
	}

	return settings, logCfg, nil
}

func applyEnvOverrides(p *Profile) {
	if v, ok := os.LookupEnv(EnvSearchPath); ok {
		p.SearchPath = filepath.SplitList(v)
	}
	if v, ok := os.LookupEnv(EnvRepoRoot); ok {
		p.RepoRoot = v
	}
	if v, ok := lookupBool(EnvStrictPaths); ok {
		p.StrictPaths = v
	}
	if v, ok := os.LookupEnv(EnvPoolSize); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			p.PoolSize = n
		}
	}
	if v, ok := lookupBool(EnvInheritedIDCheck); ok {
		p.InheritedIDCheck = v
	}
	if v, ok := lookupBool(EnvAllowDuplicateClass); ok {
		p.AllowDuplicateClass = v
	}
	if v, ok := lookupBool(EnvAllowDuplicateObjectID); ok {
		p.AllowDuplicateObjectID = v
	}
	if v, ok := lookupBool(EnvVerbose); ok {
		p.Verbose = v
	}
	if v, ok := lookupBool(EnvSilence); ok {
		p.Silence = v
	}
}

func lookupBool(name string) (bool, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, false
	}
	return b, true
}

func resolvePoolSize(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func expandAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = kernel.ExpandEnv(p)
	}
	return out
}
