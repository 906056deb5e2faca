// Copyright © 2024 The ELPS authors

package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/luthersystems/bsl/bsltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher(t *testing.T) {
	dir := bsltest.WriteTree(t, map[string]string{
		"ОбщийМодуль.Общий.Модуль.txt":  "",
		"ОбщийМодуль.Скрыть.Модуль.txt": "",
	})
	d, err := Open(dir, &Options{Exclude: []string{"*.Скрыть.*"}})
	require.NoError(t, err)

	changes := make(chan []string, 4)
	w, err := d.NewWatcher(50*time.Millisecond, bsltest.Slog(t), func(paths []string) {
		changes <- paths
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	module := filepath.Join(dir, "ОбщийМодуль.Общий.Модуль.txt")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ОбщийМодуль.Скрыть.Модуль.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(module, []byte("Процедура П()\nКонецПроцедуры"), 0o600))

	select {
	case paths := <-changes:
		assert.Equal(t, []string{module}, paths)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherDebounce(t *testing.T) {
	d, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	var calls [][]string
	w, err := d.NewWatcher(time.Hour, nil, func(paths []string) {
		calls = append(calls, paths)
	})
	require.NoError(t, err)
	defer w.Close()

	w.schedule("b")
	w.schedule("a")
	w.schedule("b")
	w.flush()
	w.flush()
	assert.Equal(t, [][]string{{"a", "b"}}, calls)
}

func TestWatcherExcludedDir(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir, &Options{Exclude: []string{"Старое", "архив/*"}})
	require.NoError(t, err)
	w, err := d.NewWatcher(time.Hour, nil, func([]string) {})
	require.NoError(t, err)
	defer w.Close()

	tests := []struct {
		path   string
		module bool
	}{
		{"ОбщийМодуль.Общий.Модуль.txt", true},
		{"sub/ОбщийМодуль.Общий.Модуль.txt", true},
		{"Старое/ОбщийМодуль.Общий.Модуль.txt", false},
		{"sub/Старое/ОбщийМодуль.Общий.Модуль.txt", false},
		{"архив/ОбщийМодуль.Общий.Модуль.txt", false},
		{"sub/readme.md", false},
	}
	for i, test := range tests {
		t.Run(fmt.Sprintf("test%d", i), func(t *testing.T) {
			assert.Equal(t, test.module, w.isModule(filepath.Join(dir, filepath.FromSlash(test.path))))
		})
	}
}
