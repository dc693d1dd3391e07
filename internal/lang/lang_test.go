package lang

import (
	"testing"
)

func TestForExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".c", "c"},
		{".cpp", "cpp"},
		{".cc", "cpp"},
		{".C", "cpp"},
		{".h", ""},
		{".py", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			got := ForExtension(tt.ext)
			if got != tt.want {
				t.Errorf("ForExtension(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestForPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"src/main.c", "c"},
		{"src/widget.cpp", "cpp"},
		{"include/widget.h", "cpp"},
		{"include/widget.hpp", "cpp"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			l := ForPath(tt.path)
			if l == nil {
				t.Fatalf("ForPath(%q) = nil", tt.path)
			}
			if l.Name != tt.want {
				t.Errorf("ForPath(%q) = %q, want %q", tt.path, l.Name, tt.want)
			}
		})
	}

	if l := ForPath("README.md"); l != nil {
		t.Errorf("ForPath(README.md) = %q, want nil", l.Name)
	}
}

func TestLanguagesRegistered(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"c", "cpp"} {
		l, ok := Languages[name]
		if !ok {
			t.Fatalf("%s language not registered", name)
		}
		if l.GetLanguage() == nil {
			t.Errorf("%s language is nil", name)
		}
	}
	if Languages["c"].CPlusPlus {
		t.Error("c should not be C++")
	}
	if !Languages["cpp"].CPlusPlus {
		t.Error("cpp should be C++")
	}
}

func TestNewParser(t *testing.T) {
	t.Parallel()

	p := Languages["cpp"].NewParser()
	if p == nil {
		t.Fatal("NewParser returned nil")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	t.Parallel()

	if got := CollapseWhitespace("  const\n\tchar  * "); got != "const char *" {
		t.Errorf("CollapseWhitespace = %q", got)
	}
}
