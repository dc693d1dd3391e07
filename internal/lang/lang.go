// Package lang provides a language registry mapping file extensions to
// tree-sitter grammars.
package lang

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name string
	// Extensions are translation units: files compiled on their own.
	Extensions []string
	// Headers are only indexed through the translation units that include
	// them, unless named explicitly.
	Headers []string
	lang    *sitter.Language
	// CPlusPlus enables classes, namespaces and overloading.
	CPlusPlus bool
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var (
	extensionMap  map[string]string
	headerMap     map[string]string
	extensionOnce sync.Once
)

func buildExtensionMaps() {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		headerMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
			for _, ext := range l.Headers {
				headerMap[ext] = l.Name
			}
		}
	})
}

// ForExtension returns the language name for a translation unit extension,
// or "" if unsupported.
func ForExtension(ext string) string {
	buildExtensionMaps()
	return extensionMap[ext]
}

// ForHeader returns the language a header extension is parsed as, or "".
func ForHeader(ext string) string {
	buildExtensionMaps()
	return headerMap[ext]
}

// ForPath returns the language for a translation unit or header path.
func ForPath(path string) *Language {
	ext := filepath.Ext(path)
	name := ForExtension(ext)
	if name == "" {
		name = ForHeader(ext)
	}
	return Languages[name]
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
