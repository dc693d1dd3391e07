package lang

import (
	"github.com/smacker/go-tree-sitter/cpp"
)

func init() {
	Languages["cpp"] = &Language{
		Name:       "cpp",
		Extensions: []string{".cc", ".cpp", ".cxx", ".c++", ".C"},
		// Plain .h headers are shared by C and C++; the C++ grammar accepts
		// nearly all C declarations, so it is used when no includer decides.
		Headers:   []string{".h", ".hh", ".hpp", ".hxx", ".h++", ".inl"},
		lang:      cpp.GetLanguage(),
		CPlusPlus: true,
	}
}
