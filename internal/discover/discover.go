// Package discover finds the translation units of a source tree.
//
// Headers are never returned; they are indexed through the units that
// include them.
package discover

import (
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/dxrindex/internal/lang"
)

// Unit is a translation unit found under the source root.
type Unit struct {
	Path     string // relative to the source root
	Language string
}

// Options narrows discovery.
type Options struct {
	// Languages restricts units to these language names. Empty means all.
	Languages []string
	// Skip lists absolute directories that are not descended into, typically
	// an output root nested in the source tree.
	Skip []string
}

// Build-system and VCS directories that never hold project sources.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	"CMakeFiles":   {},
	".deps":        {},
	".libs":        {},
}

const gitTimeout = 10 * time.Second

// Units walks root and returns its translation units sorted by path.
// Hidden files and directories and symlinked files are skipped.
func Units(ctx context.Context, root string, opts Options) ([]Unit, error) {
	want := make(map[string]struct{}, len(opts.Languages))
	for _, l := range opts.Languages {
		want[l] = struct{}{}
	}
	skip := make(map[string]struct{}, len(opts.Skip))
	for _, dir := range opts.Skip {
		skip[filepath.Clean(dir)] = struct{}{}
	}
	vis := newVisibility(ctx, root)

	var units []Unit
	walk := func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Unreadable entries are not units.
			return nil
		}
		if path == root {
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if _, ok := skipDirs[name]; ok {
				return filepath.SkipDir
			}
			if _, ok := skip[filepath.Clean(path)]; ok {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		language := lang.ForExtension(filepath.Ext(name))
		if language == "" {
			return nil
		}
		if _, ok := want[language]; len(want) > 0 && !ok {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || !vis.visible(rel) {
			return nil
		}
		units = append(units, Unit{Path: rel, Language: language})
		return nil
	}
	if err := filepath.WalkDir(root, walk); err != nil {
		return nil, errors.Errorf("walking %s: %w", root, err)
	}

	sort.Slice(units, func(i, j int) bool {
		return units[i].Path < units[j].Path
	})
	return units, nil
}

// visibility decides which files belong to the project: the files git knows
// about when root is a work tree, otherwise those the root .gitignore does
// not exclude.
type visibility struct {
	tracked map[string]struct{}
	ignored *ignore.GitIgnore
}

func newVisibility(ctx context.Context, root string) visibility {
	if tracked := gitLsFiles(ctx, root); tracked != nil {
		return visibility{tracked: tracked}
	}
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return visibility{}
	}
	return visibility{ignored: gi}
}

func (v visibility) visible(rel string) bool {
	if v.tracked != nil {
		_, ok := v.tracked[filepath.ToSlash(rel)]
		return ok
	}
	return v.ignored == nil || !v.ignored.MatchesPath(rel)
}

// gitLsFiles returns the tracked and untracked-but-not-ignored files of the
// work tree at root, or nil when root is not one.
func gitLsFiles(ctx context.Context, root string) map[string]struct{} {
	if info, err := os.Stat(filepath.Join(root, ".git")); err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(string(out), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}
