// Copyright © 2024 The ELPS authors

package cmd

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// moduleExts are the file extensions expandArgs collects.
var moduleExts = map[string]bool{".txt": true, ".bsl": true, ".os": true}

// expandArgs expands arguments, resolving patterns ending with "/..." to all
// module files found recursively under the given directory.  Files matching
// an exclude pattern are dropped.  Non-pattern arguments pass through
// unchanged unless excluded.
func expandArgs(args []string, excludes []string) ([]string, error) {
	globs, err := compileExcludes(excludes)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, arg := range args {
		if dir, ok := strings.CutSuffix(arg, "/..."); ok {
			if dir == "" {
				dir = "."
			}
			files, err := findModuleFiles(dir)
			if err != nil {
				return nil, fmt.Errorf("expanding %s: %w", arg, err)
			}
			out = append(out, files...)
		} else {
			out = append(out, arg)
		}
	}
	return filterExcludes(out, globs), nil
}

func findModuleFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			if path != root && strings.HasPrefix(e.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if moduleExts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func compileExcludes(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func filterExcludes(paths []string, excludes []glob.Glob) []string {
	if len(excludes) == 0 {
		return paths
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !matchesAny(p, excludes) {
			out = append(out, p)
		}
	}
	return out
}

// matchesAny reports whether the slash separated path, its base name or any
// of its directory components matches a pattern.
func matchesAny(path string, excludes []glob.Glob) bool {
	path = filepath.ToSlash(path)
	components := splitPath(path)
	for _, g := range excludes {
		if g.Match(path) {
			return true
		}
		for _, c := range components {
			if g.Match(c) {
				return true
			}
		}
	}
	return false
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(filepath.ToSlash(path), "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	return parts
}
