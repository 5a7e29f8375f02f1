// Package scanner discovers indexable source files in a project
// directory, honoring include/exclude globs, .gitignore rules, and
// sensitive-file patterns.
package scanner

import "time"

// FileInfo holds metadata about a discovered file.
type FileInfo struct {
	Path        string    // relative to project root
	AbsPath     string    // absolute path
	Size        int64     // bytes
	ModTime     time.Time // last modification time
	Language    string    // go, typescript, python, ...
	IsGenerated bool      // carries a generated-code marker
}

// ScanOptions configures a scan.
type ScanOptions struct {
	// RootDir is the project root to scan. Defaults to ".".
	RootDir string

	// IncludePatterns are doublestar globs; empty means all files.
	IncludePatterns []string

	// ExcludePatterns are doublestar globs applied on top of the
	// built-in exclusions.
	ExcludePatterns []string

	// RespectGitignore enables .gitignore parsing, including nested
	// files.
	RespectGitignore bool

	// MaxFileSize caps indexable file size in bytes (0 = 5MB default).
	MaxFileSize int64

	// FollowSymlinks enables following symbolic links.
	FollowSymlinks bool
}

// ScanResult is one item from the scanner channel.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// DefaultMaxFileSize is the default maximum file size (5MB). Larger
// files are almost always generated bundles or data, and they dominate
// index build time for no retrieval benefit.
const DefaultMaxFileSize = 5 * 1024 * 1024

// languageMap maps file extensions (and a few exact filenames) to
// language names understood by the chunker.
var languageMap = map[string]string{
	".go": "go",

	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".ts":  "typescript",
	".tsx": "tsx",

	".py":  "python",
	".pyi": "python",

	".rb":    "ruby",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cc":    "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".php":   "php",
	".scala": "scala",
	".ex":    "elixir",
	".exs":   "elixir",
	".lua":   "lua",
	".sql":   "sql",

	".sh":   "shell",
	".bash": "shell",
	".zsh":  "shell",

	".html": "html",
	".css":  "css",
	".scss": "scss",

	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".xml":  "xml",

	".md":       "markdown",
	".markdown": "markdown",
	".rst":      "rst",
	".txt":      "text",

	".proto":   "protobuf",
	".graphql": "graphql",

	"Dockerfile": "dockerfile",
	"Makefile":   "makefile",
	"makefile":   "makefile",
}

// DetectLanguage detects the language from a file path. Exact filename
// matches (Dockerfile, Makefile) win over extensions. Unknown files
// return "".
func DetectLanguage(path string) string {
	base := baseName(path)
	if lang, ok := languageMap[base]; ok {
		return lang
	}
	if lang, ok := languageMap[extension(path)]; ok {
		return lang
	}
	return ""
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

func extension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}
