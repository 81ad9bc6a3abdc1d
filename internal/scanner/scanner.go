// Package scanner finds the C# source files to analyze under a directory.
// It respects .gsfignore files with gitignore-style patterns and skips build
// output directories.
package scanner

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileInfo represents information about a discovered file.
type FileInfo struct {
	Path     string // Relative path from root
	FullPath string // Absolute path
	Size     int64  // File size in bytes
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	FollowSymlinks  bool     // Follow symlinks (within root only)
	DefaultExcludes []string // Directory names never entered
	IgnoreFileName  string   // Name of the ignore file (default: .gsfignore)
	Extensions      []string // Source extensions to keep (default: .cs)
	// SkipGenerated drops designer and generated sources such as
	// Form1.Designer.cs or Foo.g.cs.
	SkipGenerated bool
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		FollowSymlinks: false,
		IgnoreFileName: ".gsfignore",
		Extensions:     []string{".cs"},
		SkipGenerated:  true,
		DefaultExcludes: []string{
			".git",
			".vs",
			".idea",
			".vscode",
			"bin",
			"obj",
			"packages",
			"node_modules",
			"TestResults",
			"artifacts",
		},
	}
}

// generatedSuffixes mark sources produced by tools.
var generatedSuffixes = []string{".designer.cs", ".generated.cs", ".g.cs", ".g.i.cs", ".assemblyinfo.cs"}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = ".gsfignore"
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".cs"}
	}
	return &Scanner{opts: opts}
}

// Scan returns the source files under root in lexical order. A root naming a
// single file yields that file when it is a source file.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}
	if !info.IsDir() {
		if !s.isSource(info.Name()) {
			return nil, nil
		}
		return []FileInfo{{Path: filepath.Base(absRoot), FullPath: absRoot, Size: info.Size()}}, nil
	}

	ignore, err := s.loadIgnorePatterns(absRoot, "")
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	var files []FileInfo
	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Unreadable entries are skipped.
			return nil
		}
		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}
		rel := filepath.ToSlash(relPath)

		if s.opts.SkipHidden && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if s.isDefaultExcluded(info.Name()) || ignore.matches(rel, true) {
				return filepath.SkipDir
			}
			nested, err := s.loadIgnorePatterns(path, rel)
			if err == nil {
				ignore = append(ignore, nested...)
			}
			return nil
		}

		if !s.isSource(info.Name()) || ignore.matches(rel, false) {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, ok := s.resolveSymlink(absRoot, path)
			if !ok {
				return nil
			}
			info = target
		}

		files = append(files, FileInfo{
			Path:     rel,
			FullPath: path,
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return files, nil
}

// resolveSymlink follows a file symlink that stays within root.
func (s *Scanner) resolveSymlink(root, path string) (os.FileInfo, bool) {
	if !s.opts.FollowSymlinks {
		return nil, false
	}
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, false
	}
	if r, err := filepath.EvalSymlinks(root); err == nil {
		root = r
	}
	real, err = filepath.Abs(real)
	if err != nil || !strings.HasPrefix(real, root+string(filepath.Separator)) {
		return nil, false
	}
	info, err := os.Stat(real)
	if err != nil || info.IsDir() {
		return nil, false
	}
	return info, true
}

func (s *Scanner) isSource(name string) bool {
	lower := strings.ToLower(name)
	if s.opts.SkipGenerated {
		for _, suffix := range generatedSuffixes {
			if strings.HasSuffix(lower, suffix) {
				return false
			}
		}
	}
	ext := filepath.Ext(lower)
	for _, want := range s.opts.Extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// isDefaultExcluded checks if the name matches default exclusion patterns.
func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// loadIgnorePatterns reads the ignore file in dir. Patterns of a nested file
// are anchored at base, the directory's path relative to the root.
func (s *Scanner) loadIgnorePatterns(dir, base string) (patternList, error) {
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var patterns patternList
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p := ParseIgnorePattern(line)
		p.base = base
		patterns = append(patterns, p)
	}
	return patterns, sc.Err()
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
