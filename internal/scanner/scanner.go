package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	ignore "github.com/sabhiram/go-gitignore"

	apperrors "github.com/patchrag/patchrag/internal/errors"
)

// gitignoreCacheSize bounds the number of parsed .gitignore matchers
// kept in memory across scans of large trees.
const gitignoreCacheSize = 1000

// Scanner discovers indexable files in a project directory.
type Scanner struct {
	gitignoreCache *lru.Cache[string, *ignore.GitIgnore]
	logger         *slog.Logger
}

// New creates a Scanner.
func New(logger *slog.Logger) (*Scanner, error) {
	cache, err := lru.New[string, *ignore.GitIgnore](gitignoreCacheSize)
	if err != nil {
		return nil, apperrors.InternalError("create gitignore cache", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{gitignoreCache: cache, logger: logger}, nil
}

// Scan streams indexable files under opts.RootDir. The channel closes
// when the walk completes; a walk-level failure arrives as the final
// ScanResult with Error set.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCodeInvalidPath, err, "resolve root %s", rootDir)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCodeFileNotFound, err, "stat root %s", absRoot)
	}
	if !info.IsDir() {
		return nil, apperrors.New(apperrors.ErrCodeInvalidPath, "root path is not a directory: "+absRoot, nil)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	results := make(chan ScanResult, 64)
	go func() {
		defer close(results)
		s.walk(ctx, absRoot, opts, maxFileSize, results)
	}()
	return results, nil
}

func (s *Scanner) walk(ctx context.Context, absRoot string, opts *ScanOptions, maxFileSize int64, results chan<- ScanResult) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if s.shouldExcludeDir(relPath, opts) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if s.shouldExcludeFile(relPath, absRoot, opts) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxFileSize {
			s.logger.Debug("skipping large file",
				slog.String("path", relPath),
				slog.Int64("size", info.Size()))
			tooLarge := apperrors.New(apperrors.ErrCodeFileTooLarge,
				fmt.Sprintf("%s is %d bytes (limit %d)", relPath, info.Size(), maxFileSize), nil)
			select {
			case results <- ScanResult{File: &FileInfo{Path: relPath, AbsPath: path}, Error: tooLarge}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}
		if isBinaryFile(path) {
			return nil
		}
		if len(opts.IncludePatterns) > 0 && !matchesAny(relPath, opts.IncludePatterns) {
			return nil
		}

		fileInfo := &FileInfo{
			Path:        relPath,
			AbsPath:     path,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Language:    DetectLanguage(relPath),
			IsGenerated: isGeneratedFile(path),
		}

		select {
		case results <- ScanResult{File: fileInfo}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- ScanResult{Error: err}:
		default:
		}
	}
}

func (s *Scanner) shouldExcludeDir(relPath string, opts *ScanOptions) bool {
	for _, pattern := range defaultExcludeDirs {
		if matchGlob(relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchGlob(relPath, pattern) {
			return true
		}
	}
	return false
}

func (s *Scanner) shouldExcludeFile(relPath, absRoot string, opts *ScanOptions) bool {
	baseName := filepath.Base(relPath)
	for _, pattern := range sensitiveFilePatterns {
		if matchGlob(baseName, pattern) {
			return true
		}
	}
	for _, pattern := range defaultExcludeFiles {
		if matchGlob(relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchGlob(relPath, pattern) {
			return true
		}
	}
	if opts.RespectGitignore && s.isGitignored(relPath, absRoot) {
		return true
	}
	return false
}

// matchGlob matches a slash-separated relative path against a
// doublestar pattern. A bare directory name like "vendor" also matches
// the directory itself and everything under it.
func matchGlob(relPath, pattern string) bool {
	if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
		return true
	}
	if !strings.ContainsAny(pattern, "/*?[{") {
		if relPath == pattern || strings.HasPrefix(relPath, pattern+"/") {
			return true
		}
		for _, part := range strings.Split(relPath, "/") {
			if part == pattern {
				return true
			}
		}
	}
	return false
}

func matchesAny(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchGlob(relPath, pattern) {
			return true
		}
		if ok, err := doublestar.Match(pattern, filepath.Base(relPath)); err == nil && ok {
			return true
		}
	}
	return false
}

// isGitignored walks from the root down to the file's directory,
// consulting each .gitignore along the way. Paths are matched relative
// to the directory that owns the .gitignore, per git semantics.
func (s *Scanner) isGitignored(relPath, absRoot string) bool {
	if matcher := s.gitignoreFor(absRoot); matcher != nil && matcher.MatchesPath(relPath) {
		return true
	}

	dir := filepath.Dir(relPath)
	if dir == "." {
		return false
	}
	parts := strings.Split(filepath.ToSlash(dir), "/")
	currentDir := absRoot
	consumed := 0
	for _, part := range parts {
		currentDir = filepath.Join(currentDir, part)
		consumed += len(part) + 1
		matcher := s.gitignoreFor(currentDir)
		if matcher != nil && matcher.MatchesPath(relPath[consumed:]) {
			return true
		}
	}
	return false
}

func (s *Scanner) gitignoreFor(dir string) *ignore.GitIgnore {
	if matcher, ok := s.gitignoreCache.Get(dir); ok {
		return matcher
	}
	gitignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(gitignorePath); err != nil {
		return nil
	}
	matcher, err := ignore.CompileIgnoreFile(gitignorePath)
	if err != nil {
		s.logger.Warn("failed to parse gitignore",
			slog.String("path", gitignorePath),
			slog.String("error", err.Error()))
		return nil
	}
	s.gitignoreCache.Add(dir, matcher)
	return matcher
}

// InvalidateGitignoreCache drops all cached matchers. Call after
// .gitignore files change.
func (s *Scanner) InvalidateGitignoreCache() {
	s.gitignoreCache.Purge()
}

// isBinaryFile sniffs the first 512 bytes for a null byte.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	return bytes.Contains(buf[:n], []byte{0})
}

// isGeneratedFile looks for generated-code markers in the first 1KB.
func isGeneratedFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	content := string(buf[:n])

	markers := []string{
		"// Code generated",
		"// DO NOT EDIT",
		"/* DO NOT EDIT",
		"# Generated by",
		"<!-- AUTO-GENERATED -->",
		"// Generated by",
	}
	for _, marker := range markers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

// Default directories pruned from every scan.
var defaultExcludeDirs = []string{
	"node_modules",
	".git",
	"vendor",
	"__pycache__",
	"dist",
	"build",
	"target",
	".ssh",
}

// Default file exclusions: minified bundles and lockfiles.
var defaultExcludeFiles = []string{
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// Files never indexed regardless of configuration.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secrets*",
	".netrc",
	".npmrc",
	"id_rsa",
	"id_ed25519",
}
