// Copyright © 2024 The ELPS authors

// Package workspace loads the module texts of a configuration dump.
//
// A dump is a directory of UTF-8 text files, one per module, named after the
// metadata object that owns the module:
//
//	Конфигурация.МодульУправляемогоПриложения.txt
//	Конфигурация.МодульОбычногоПриложения.txt
//	ОбщийМодуль.<Имя>.Модуль.txt
//	<Тип>.<Объект>.Форма.<Форма>.Форма.Модуль.txt
//	ОбщаяФорма.<Форма>.Форма.Модуль.txt
//
// English spellings of the fixed parts are accepted as well.  Files that do
// not follow the convention are ignored.
package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/luthersystems/bsl/parser/token"
)

// Kind classifies a module by its owner.
type Kind uint8

const (
	InvalidKind Kind = iota
	CommonModule
	FormManaged
	FormOrdinary
	ApplicationModule
)

var kindStrings = []string{
	InvalidKind:       "Invalid",
	CommonModule:      "CommonModule",
	FormManaged:       "FormManaged",
	FormOrdinary:      "FormOrdinary",
	ApplicationModule: "ApplicationModule",
}

func (k Kind) String() string {
	if int(k) >= len(kindStrings) {
		return kindStrings[InvalidKind]
	}
	return kindStrings[k]
}

// ParseKind returns the Kind named s, ignoring case.
func ParseKind(s string) (Kind, bool) {
	for k := CommonModule; int(k) < len(kindStrings); k++ {
		if strings.EqualFold(s, kindStrings[k]) {
			return k, true
		}
	}
	return InvalidKind, false
}

// Module is the text of one module.
type Module struct {
	Kind Kind
	// Name is the common module name, "<Объект>.<Форма>" for a form, or the
	// application module name.
	Name string
	Path string
	Text string
	// Managed is set for the managed application module and managed forms.
	Managed bool
}

func (m *Module) String() string {
	return m.Kind.String() + "." + m.Name
}

// Source supplies the modules of a configuration.
type Source interface {
	Modules(ctx context.Context) ([]*Module, error)
}

// Modules is a Source held in memory.
type Modules []*Module

// Modules implements Source.
func (m Modules) Modules(ctx context.Context) ([]*Module, error) {
	return m, ctx.Err()
}

// Options control how a Dir classifies and filters files.
type Options struct {
	// OrdinaryForms are glob patterns over form names ("<Объект>.<Форма>")
	// selecting the forms of the ordinary application.  Other forms are
	// managed.
	OrdinaryForms []string
	// Exclude are glob patterns over paths relative to the root.  A file is
	// skipped when a pattern matches its relative path or any component of
	// it.
	Exclude []string
}

// Dir is a Source reading a dump directory.
type Dir struct {
	root     string
	ordinary []glob.Glob
	exclude  []glob.Glob
}

// Open returns a Dir reading modules below root.
func Open(root string, opts *Options) (*Dir, error) {
	if opts == nil {
		opts = &Options{}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	d := &Dir{root: root}
	if d.ordinary, err = compileGlobs("ordinary form", opts.OrdinaryForms); err != nil {
		return nil, err
	}
	if d.exclude, err = compileGlobs("exclude", opts.Exclude); err != nil {
		return nil, err
	}
	return d, nil
}

func compileGlobs(what string, patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", what, p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchesAny(s string, globs []glob.Glob) bool {
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}

// excluded reports whether an exclude pattern matches path, relative to the
// root, or one of its components.
func (d *Dir) excluded(path string) bool {
	rel, err := filepath.Rel(d.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	if matchesAny(rel, d.exclude) {
		return true
	}
	for _, c := range strings.Split(rel, "/") {
		if c != "" && c != "." && matchesAny(c, d.exclude) {
			return true
		}
	}
	return false
}

// Root returns the directory d reads.
func (d *Dir) Root() string {
	return d.root
}

// Modules implements Source.  Modules are returned sorted by path.
func (d *Dir) Modules(ctx context.Context) ([]*Module, error) {
	var mods []*Module
	seen := make(map[string]string)
	err := filepath.WalkDir(d.root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			if path != d.root && hidden(e.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.excluded(path) {
			return nil
		}
		m, ok := d.classify(e.Name())
		if !ok {
			return nil
		}
		key := token.Fold(m.String())
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("duplicate module %v: %s and %s", m, prev, path)
		}
		seen[key] = path
		buf, err := os.ReadFile(path) //#nosec G304
		if err != nil {
			return err
		}
		m.Path = path
		m.Text = strings.TrimPrefix(string(buf), "\ufeff")
		mods = append(mods, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Path < mods[j].Path })
	return mods, nil
}

// classify returns the module named by the file base name.
func (d *Dir) classify(base string) (*Module, bool) {
	m, ok := Classify(base)
	if ok && m.Kind == FormManaged && matchesAny(m.Name, d.ordinary) {
		m.Kind = FormOrdinary
		m.Managed = false
	}
	return m, ok
}

// Classify returns the module named by a dump file base name.  Forms are
// classified as managed.
func Classify(base string) (*Module, bool) {
	ext := filepath.Ext(base)
	if !strings.EqualFold(ext, ".txt") {
		return nil, false
	}
	parts := strings.Split(strings.TrimSuffix(base, ext), ".")
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}
	is := func(i int, words ...string) bool {
		for _, w := range words {
			if token.EqualFold(parts[i], w) {
				return true
			}
		}
		return false
	}
	switch {
	case len(parts) == 2 && is(0, "Конфигурация", "Configuration") &&
		is(1, "МодульУправляемогоПриложения", "ManagedApplicationModule"):
		return &Module{Kind: ApplicationModule, Name: parts[1], Managed: true}, true
	case len(parts) == 2 && is(0, "Конфигурация", "Configuration") &&
		is(1, "МодульОбычногоПриложения", "OrdinaryApplicationModule"):
		return &Module{Kind: ApplicationModule, Name: parts[1]}, true
	case len(parts) == 3 && is(0, "ОбщийМодуль", "CommonModule") && is(2, "Модуль", "Module"):
		return &Module{Kind: CommonModule, Name: parts[1]}, true
	case len(parts) == 4 && is(0, "ОбщаяФорма", "CommonForm") && is(2, "Форма", "Form") &&
		is(3, "Модуль", "Module"):
		return &Module{Kind: FormManaged, Name: parts[1], Managed: true}, true
	case len(parts) == 6 && is(2, "Форма", "Form") && is(4, "Форма", "Form") && is(5, "Модуль", "Module"):
		return &Module{Kind: FormManaged, Name: parts[1] + "." + parts[3], Managed: true}, true
	}
	return nil, false
}
