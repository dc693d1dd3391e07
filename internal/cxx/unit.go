// Package cxx is a C and C++ frontend built on tree-sitter.
//
// A Unit parses one translation unit and the project headers it includes,
// reports preprocessor events and diagnostics as it goes, and lowers the
// syntax trees into the declaration model the indexer walks. Name lookup is
// lexical with class inheritance and using-directives; overloads are chosen by
// argument count. There is no macro expansion and no template instantiation.
package cxx

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/dxrindex/internal/lang"
	"github.com/phobologic/dxrindex/internal/model"
	"github.com/phobologic/dxrindex/internal/parse"
)

// Options configure a Unit.
type Options struct {
	// IncludeDirs are searched, in order, for #include "..." after the
	// including file's directory, and for #include <...>.
	IncludeDirs []string
	// Language overrides the language chosen from the file extension.
	Language *lang.Language
	Log      *slog.Logger
}

// Unit is one translation unit. It is not safe for concurrent use.
type Unit struct {
	path string
	opts Options
	log  *slog.Logger

	sm      *SourceManager
	macros  *macroTable
	diags   *model.DiagnosticsEngine
	parsers *parse.Parsers
	byPath  map[string]*srcFile
}

// NewUnit prepares the translation unit rooted at path. Nothing is read until
// Parse.
func NewUnit(path string, opts Options) *Unit {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	u := &Unit{
		path:    path,
		opts:    opts,
		log:     log,
		sm:      &SourceManager{},
		parsers: parse.NewParsers(),
		byPath:  make(map[string]*srcFile),
	}
	u.diags = model.NewDiagnosticsEngine(logDiagnostics{sm: u.sm, log: log})
	u.macros = newMacroTable(u.language(path))
	return u
}

// SourceManager resolves the unit's locations.
func (u *Unit) SourceManager() model.SourceManager { return u.sm }

// Macros is the macro table as of the preprocessor's current position.
func (u *Unit) Macros() model.MacroTable { return u.macros }

// Diagnostics is the engine diagnostics are reported to. Its initial client
// logs them at debug level.
func (u *Unit) Diagnostics() *model.DiagnosticsEngine { return u.diags }

// Parse reads and parses the unit, delivering preprocessor events to pp in
// source order, and returns the translation unit declaration. Only a failure
// to read or parse the main file is an error; problems in headers become
// diagnostics.
func (u *Unit) Parse(ctx context.Context, pp model.PPCallbacks) (*model.Decl, error) {
	abs, err := filepath.Abs(u.path)
	if err != nil {
		return nil, errors.Errorf("resolving %s: %w", u.path, err)
	}
	main, err := u.load(ctx, abs, u.language(abs))
	if err != nil {
		return nil, err
	}

	p := &preprocessor{u: u, pp: pp, visited: map[*srcFile]bool{main: true}}
	p.file(ctx, main)

	l := newLowerer(u, main)
	l.file(main)
	return l.tu, nil
}

// Close releases the parse trees and parsers.
func (u *Unit) Close() {
	for _, f := range u.sm.files {
		if f.tree != nil {
			f.tree.Close()
			f.tree = nil
		}
	}
	u.parsers.Close()
}

func (u *Unit) language(path string) *lang.Language {
	if u.opts.Language != nil {
		return u.opts.Language
	}
	if l := lang.ForPath(path); l != nil {
		return l
	}
	return lang.Languages["cpp"]
}

// load reads and parses a file once per unit.
func (u *Unit) load(ctx context.Context, path string, l *lang.Language) (*srcFile, error) {
	if f, ok := u.byPath[path]; ok {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", path, err)
	}
	tree, err := u.parsers.Parse(ctx, l, data)
	if err != nil {
		return nil, errors.Errorf("%s: %w", path, err)
	}
	f := u.sm.add(path, data, l)
	f.tree = tree
	u.byPath[path] = f

	for _, se := range parse.SyntaxErrors(tree.RootNode(), data) {
		d := &model.Diagnostic{
			Loc:    f.loc(se.Start),
			Ranges: []model.Range{{Begin: f.loc(se.Start), End: f.loc(se.Start)}},
		}
		if se.Missing {
			d.Message = "expected '" + se.Text + "'"
		} else {
			d.Message = "unexpected '" + se.Text + "'"
		}
		u.diags.Report(model.LevelError, d)
	}
	return f, nil
}

// findInclude resolves an #include name. Quoted names are tried next to the
// including file first.
func (u *Unit) findInclude(from *srcFile, name string, quoted bool) (string, bool) {
	var dirs []string
	if quoted {
		dirs = append(dirs, filepath.Dir(from.name))
	}
	dirs = append(dirs, u.opts.IncludeDirs...)
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			abs, err := filepath.Abs(path)
			if err != nil {
				continue
			}
			return abs, true
		}
	}
	return "", false
}

// logDiagnostics is the sink diagnostics reach when nothing else is
// installed.
type logDiagnostics struct {
	sm  *SourceManager
	log *slog.Logger
}

func (c logDiagnostics) HandleDiagnostic(level model.Level, d *model.Diagnostic) {
	p := c.sm.Presumed(d.Loc)
	attrs := []any{
		"level", level.String(),
		"file", p.Filename,
		"line", p.Line,
		"col", p.Column,
		"msg", d.Message,
	}
	if d.Option != "" {
		attrs = append(attrs, "opt", "-W"+d.Option)
	}
	c.log.Debug("cxx.diagnostic", attrs...)
}
