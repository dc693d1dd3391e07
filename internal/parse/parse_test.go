package parse

import (
	"context"
	"testing"

	"github.com/phobologic/dxrindex/internal/lang"
)

func parseString(t *testing.T, langName, source string) []SyntaxError {
	t.Helper()
	l, ok := lang.Languages[langName]
	if !ok {
		t.Fatalf("%s language not registered", langName)
	}
	p := NewParsers()
	defer p.Close()

	src := []byte(source)
	tree, err := p.Parse(context.Background(), l, src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer tree.Close()
	return SyntaxErrors(tree.RootNode(), src)
}

func TestSyntaxErrorsClean(t *testing.T) {
	t.Parallel()

	errs := parseString(t, "cpp", "int add(int a, int b) { return a + b; }\n")
	if len(errs) != 0 {
		t.Errorf("expected no syntax errors, got %+v", errs)
	}
}

func TestSyntaxErrorsReported(t *testing.T) {
	t.Parallel()

	errs := parseString(t, "c", "int main(void) { return 0 }\n")
	if len(errs) == 0 {
		t.Fatal("expected a syntax error for the missing semicolon")
	}
	if errs[0].Start == 0 {
		t.Errorf("error should not start at the beginning of the file: %+v", errs[0])
	}
}

func TestParsersReuse(t *testing.T) {
	t.Parallel()

	p := NewParsers()
	defer p.Close()
	l := lang.Languages["c"]
	for range 2 {
		tree, err := p.Parse(context.Background(), l, []byte("int x;\n"))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		tree.Close()
	}
	if len(p.byLang) != 1 {
		t.Errorf("expected one cached parser, got %d", len(p.byLang))
	}
}
