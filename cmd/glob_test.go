// Copyright © 2024 The ELPS authors

package cmd

import (
	"path/filepath"
	"testing"

	"github.com/gobwas/glob"
	"github.com/luthersystems/bsl/bsltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGlobs(t *testing.T, patterns ...string) []glob.Glob {
	t.Helper()
	globs, err := compileExcludes(patterns)
	require.NoError(t, err)
	return globs
}

func TestFilterExcludes_ByName(t *testing.T) {
	paths := []string{
		"dump/ОбщийМодуль.А.Модуль.txt",
		"dump/ОбщийМодуль.Б.Модуль.txt",
		"lib/ОбщийМодуль.В.Модуль.txt",
	}
	result := filterExcludes(paths, mustGlobs(t, "ОбщийМодуль.Б.Модуль.txt"))
	assert.Equal(t, []string{"dump/ОбщийМодуль.А.Модуль.txt", "lib/ОбщийМодуль.В.Модуль.txt"}, result)
}

func TestFilterExcludes_ByDirectory(t *testing.T) {
	paths := []string{
		"dump/a.txt",
		"build/b.txt",
		"build/sub/c.txt",
		"lib/d.txt",
	}
	result := filterExcludes(paths, mustGlobs(t, "build"))
	assert.Equal(t, []string{"dump/a.txt", "lib/d.txt"}, result)
}

func TestFilterExcludes_GlobPattern(t *testing.T) {
	paths := []string{
		"dump/ОбщийМодуль.А.Модуль.txt",
		"dump/Документ.Заказ.Форма.Ф.Форма.Модуль.txt",
		"dump/Документ.Счет.Форма.Ф.Форма.Модуль.txt",
	}
	result := filterExcludes(paths, mustGlobs(t, "Документ.*"))
	assert.Equal(t, []string{"dump/ОбщийМодуль.А.Модуль.txt"}, result)
}

func TestFilterExcludes_Alternatives(t *testing.T) {
	paths := []string{"dump/a.txt", "build/b.txt", "dump/c.bsl"}
	result := filterExcludes(paths, mustGlobs(t, "{build,*.bsl}"))
	assert.Equal(t, []string{"dump/a.txt"}, result)
}

func TestFilterExcludes_EmptyExcludes(t *testing.T) {
	paths := []string{"dump/a.txt"}
	assert.Equal(t, paths, filterExcludes(paths, nil))
}

func TestMatchesAny_FullPath(t *testing.T) {
	assert.True(t, matchesAny("dump/a.txt", mustGlobs(t, "dump/*.txt")))
	assert.False(t, matchesAny("lib/a.txt", mustGlobs(t, "dump/*.txt")))
}

func TestMatchesAny_Component(t *testing.T) {
	assert.True(t, matchesAny("project/build/a.txt", mustGlobs(t, "build")))
	assert.False(t, matchesAny("project/dump/a.txt", mustGlobs(t, "build")))
}

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c.txt"}, splitPath("./a/b/c.txt"))
}

func TestExpandArgs(t *testing.T) {
	dir := bsltest.WriteTree(t, map[string]string{
		"a.txt":        "",
		"sub/b.bsl":    "",
		"sub/c.md":     "",
		".git/d.txt":   "",
		"skip/e.txt":   "",
		"sub/F.TXT":    "",
		"other/os.txt": "",
	})
	files, err := expandArgs([]string{filepath.Join(dir, "..."), "single.txt"}, []string{"skip", "other"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "sub", "F.TXT"),
		filepath.Join(dir, "sub", "b.bsl"),
		"single.txt",
	}, files)

	_, err = expandArgs(nil, []string{"[unclosed"})
	assert.Error(t, err)
}
