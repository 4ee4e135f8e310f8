// Package scanner walks a repository, classifies files, and applies
// exclude/include/dependency policy (spec.md §4.1).
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/codeprism-dev/codeprism/internal/langparser"
)

// DependencyMode controls how dependency/vendor directories are
// treated (spec.md §4.1 policy c).
type DependencyMode int

const (
	// DependencyExclude drops dependency directories entirely.
	DependencyExclude DependencyMode = iota
	// DependencySmart includes dependency directories only when the
	// repository itself is a library of the same ecosystem.
	DependencySmart
	// DependencyIncludeAll always includes dependency directories.
	DependencyIncludeAll
)

// defaultExcludeDirs are dropped unconditionally (spec.md §4.1 policy a).
var defaultExcludeDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
	"dist": true, "build": true, "target": true,
	"__pycache__": true, ".idea": true, ".vscode": true,
}

// dependencyDirNames are recognized as dependency/vendor trees for
// policy (c).
var dependencyDirNames = map[string]bool{
	"vendor": true, "node_modules": true, "site-packages": true,
	".venv": true, "venv": true, "Pods": true,
}

// languageByExt classifies a file extension into a Language.
var languageByExt = map[string]langparser.Language{
	".go":   langparser.LanguageGo,
	".py":   langparser.LanguagePython,
	".js":   langparser.LanguageJavaScript,
	".jsx":  langparser.LanguageJavaScript,
	".mjs":  langparser.LanguageJavaScript,
	".ts":   langparser.LanguageTypeScript,
	".tsx":  langparser.LanguageTypeScript,
	".java": langparser.LanguageJava,
	".cs":   langparser.LanguageCSharp,
	".cpp":  langparser.LanguageCPP,
	".cc":   langparser.LanguageCPP,
	".cxx":  langparser.LanguageCPP,
	".hpp":  langparser.LanguageCPP,
	".h":    langparser.LanguageCPP,
	".php":  langparser.LanguagePHP,
	".rs":   langparser.LanguageRust,
	".zig":  langparser.LanguageZig,
}

// ClassifyExtension returns the Language a file extension maps to, or
// LanguageUnknown if none is recognized.
func ClassifyExtension(path string) langparser.Language {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return langparser.LanguageUnknown
}

// DiscoveredFile is one file the scanner found and classified.
type DiscoveredFile struct {
	Path     string
	Language langparser.Language
	Size     int64
}

// ScanResult is the scanner's output: discovered files plus aggregate
// statistics.
type ScanResult struct {
	Files          []DiscoveredFile
	TotalSizeBytes int64
	SkippedDirs    int
	SkippedFiles   int
}

// Options configures a Scan call.
type Options struct {
	// ExcludeDirs adds directory names to drop, beyond the defaults.
	ExcludeDirs []string
	// IncludeExtensions, if non-empty, restricts discovery to files
	// whose extension is in this set (spec.md §4.1 policy b).
	IncludeExtensions []string
	// IncludeGlobs, if non-empty, restricts discovery to files whose
	// repo-relative path matches at least one doublestar glob.
	IncludeGlobs []string
	// DependencyMode controls vendor/dependency directory inclusion.
	DependencyMode DependencyMode
	// IsLibraryEcosystem reports whether the scanned repo is itself a
	// library of the named ecosystem, consulted only under
	// DependencySmart (spec.md §4.1 policy c).
	IsLibraryEcosystem func(ecosystem string) bool
}

func (o Options) excludeSet() map[string]bool {
	set := make(map[string]bool, len(defaultExcludeDirs)+len(o.ExcludeDirs))
	for d := range defaultExcludeDirs {
		set[d] = true
	}
	for _, d := range o.ExcludeDirs {
		set[d] = true
	}
	return set
}

func (o Options) includeExtSet() map[string]bool {
	if len(o.IncludeExtensions) == 0 {
		return nil
	}
	set := make(map[string]bool, len(o.IncludeExtensions))
	for _, e := range o.IncludeExtensions {
		set[strings.ToLower(e)] = true
	}
	return set
}

// Scan walks root and returns every regular file that survives the
// exclude/include/dependency policies. Symlinks are not followed when
// they would exit root (spec.md §4.1).
func Scan(root string, opts Options) (ScanResult, error) {
	excludeDirs := opts.excludeSet()
	includeExt := opts.includeExtSet()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return ScanResult{}, err
	}

	var result ScanResult

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable path: skip it, keep walking (fail soft)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			name := d.Name()
			if excludeDirs[name] {
				result.SkippedDirs++
				return fs.SkipDir
			}
			if dependencyDirNames[name] && !allowDependency(opts, name) {
				result.SkippedDirs++
				return fs.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if exitsRoot(absRoot, path) {
				result.SkippedFiles++
				return nil
			}
		}

		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		if includeExt != nil {
			ext := strings.ToLower(filepath.Ext(path))
			if !includeExt[ext] {
				result.SkippedFiles++
				return nil
			}
		}

		if len(opts.IncludeGlobs) > 0 && !matchesAnyGlob(opts.IncludeGlobs, filepath.ToSlash(rel)) {
			result.SkippedFiles++
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			result.SkippedFiles++
			return nil
		}

		lang := ClassifyExtension(path)
		result.Files = append(result.Files, DiscoveredFile{
			Path:     filepath.ToSlash(rel),
			Language: lang,
			Size:     info.Size(),
		})
		result.TotalSizeBytes += info.Size()
		return nil
	})
	if walkErr != nil {
		return result, walkErr
	}
	return result, nil
}

func allowDependency(opts Options, dirName string) bool {
	switch opts.DependencyMode {
	case DependencyIncludeAll:
		return true
	case DependencySmart:
		if opts.IsLibraryEcosystem == nil {
			return false
		}
		return opts.IsLibraryEcosystem(ecosystemForDir(dirName))
	default:
		return false
	}
}

func ecosystemForDir(dirName string) string {
	switch dirName {
	case "node_modules":
		return "node"
	case "site-packages", ".venv", "venv":
		return "python"
	case "vendor":
		return "go"
	case "Pods":
		return "cocoapods"
	default:
		return ""
	}
}

func matchesAnyGlob(globs []string, relPath string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, relPath); ok {
			return true
		}
	}
	return false
}

func exitsRoot(root, path string) bool {
	target, err := os.Readlink(path)
	if err != nil {
		return true
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		return true
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return true
	}
	return strings.HasPrefix(rel, "..")
}
