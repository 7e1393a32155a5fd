package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxIncludeDepth = 10

// processIncludes overlays the files named by cfg.Includes onto cfg, in
// order. Patterns may be globs and are resolved relative to baseDir; they
// must stay inside it. visited holds absolute paths already merged.
func processIncludes(cfg *Config, baseDir string, visited map[string]bool, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("config includes: max depth %d exceeded", maxIncludeDepth)
	}

	patterns := cfg.Includes
	cfg.Includes = nil
	for _, pattern := range patterns {
		paths, err := expandInclude(pattern, baseDir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			if visited[p] {
				return fmt.Errorf("config includes: circular include detected for %q", p)
			}
			visited[p] = true
			if err := overlayFile(cfg, p, visited, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func expandInclude(pattern, baseDir string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(baseDir, pattern)
	}
	pattern = filepath.Clean(pattern)

	if rel, err := filepath.Rel(baseDir, pattern); err == nil && strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("config includes: path %q escapes config directory", pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("config includes: glob %q: %w", pattern, err)
	}
	if len(matches) == 0 && !strings.ContainsAny(pattern, "*?[") {
		// A literal path that does not exist is reported by overlayFile.
		matches = []string{pattern}
	}

	for i, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			return nil, fmt.Errorf("config includes: abs path %q: %w", m, err)
		}
		matches[i] = abs
	}
	return matches, nil
}

func overlayFile(cfg *Config, path string, visited map[string]bool, depth int) error {
	if err := validatePermissions(path); err != nil {
		return fmt.Errorf("config includes: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config includes: read %q: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config includes: parse %q: %w", path, err)
	}
	if len(cfg.Includes) > 0 {
		return processIncludes(cfg, filepath.Dir(path), visited, depth)
	}
	return nil
}
