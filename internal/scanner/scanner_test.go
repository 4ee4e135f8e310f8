package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/codeprism-dev/codeprism/internal/langparser"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanClassifiesAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "class Foo: pass")
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), "module.exports = {}")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "ref: refs/heads/main")

	result, err := Scan(root, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Files) != 1 {
		t.Fatalf("expected 1 discovered file, got %d: %+v", len(result.Files), result.Files)
	}
	if result.Files[0].Language != langparser.LanguagePython {
		t.Fatalf("expected python classification, got %v", result.Files[0].Language)
	}
	if result.SkippedDirs < 2 {
		t.Fatalf("expected node_modules and .git to be skipped, got %d skipped dirs", result.SkippedDirs)
	}
}

func TestScanIncludeExtensionFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "x = 1")
	writeFile(t, filepath.Join(root, "b.go"), "package main")

	result, err := Scan(root, Options{IncludeExtensions: []string{".go"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Files) != 1 || result.Files[0].Language != langparser.LanguageGo {
		t.Fatalf("expected only b.go to survive the include filter, got %+v", result.Files)
	}
}

func TestScanDependencyModes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "vendor", "pkg", "lib.go"), "package lib")

	excluded, err := Scan(root, Options{DependencyMode: DependencyExclude})
	if err != nil {
		t.Fatal(err)
	}
	if len(excluded.Files) != 0 {
		t.Fatalf("expected vendor dir excluded by default, got %+v", excluded.Files)
	}

	included, err := Scan(root, Options{DependencyMode: DependencyIncludeAll})
	if err != nil {
		t.Fatal(err)
	}
	if len(included.Files) != 1 {
		t.Fatalf("expected vendor dir included with IncludeAll, got %+v", included.Files)
	}
}

func TestScanUnknownExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "README.md"), "# hi")

	result, err := Scan(root, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Files) != 1 || result.Files[0].Language != langparser.LanguageUnknown {
		t.Fatalf("expected unknown language classification for README.md, got %+v", result.Files)
	}
}
