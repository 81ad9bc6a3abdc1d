package scanner

import (
	"path"
	"strings"
)

// IgnorePattern represents a single gitignore-style pattern.
type IgnorePattern struct {
	raw      string
	negation bool // starts with !
	dirOnly  bool // ends with /
	anchored bool // starts with /, matches from the ignore file's directory only
	segments []string
	// base is the directory of the ignore file, relative to the scan root.
	base string
}

// ParseIgnorePattern parses a gitignore-style pattern string.
func ParseIgnorePattern(pattern string) IgnorePattern {
	p := IgnorePattern{raw: pattern}
	if strings.HasPrefix(pattern, "!") {
		p.negation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		p.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		p.anchored = true
		pattern = pattern[1:]
	}
	p.segments = strings.Split(pattern, "/")
	return p
}

// String returns the pattern as written.
func (p IgnorePattern) String() string { return p.raw }

// IsNegation returns true if this pattern is a negation pattern.
func (p IgnorePattern) IsNegation() bool { return p.negation }

// Match reports whether the slash-separated path rel (relative to the scan
// root) is matched. Directory-only patterns match a directory and
// everything below it.
func (p IgnorePattern) Match(rel string, isDir bool) bool {
	if p.base != "" {
		if !strings.HasPrefix(rel, p.base+"/") {
			return false
		}
		rel = strings.TrimPrefix(rel, p.base+"/")
	}
	parts := strings.Split(rel, "/")
	if !p.dirOnly {
		return p.matchParts(parts)
	}
	dirs := len(parts) - 1
	if isDir {
		dirs++
	}
	for n := 1; n <= dirs; n++ {
		if p.matchParts(parts[:n]) {
			return true
		}
	}
	return false
}

func (p IgnorePattern) matchParts(parts []string) bool {
	if p.anchored {
		return matchSegments(p.segments, parts)
	}
	for start := range parts {
		if matchSegments(p.segments, parts[start:]) {
			return true
		}
	}
	return false
}

// matchSegments matches pattern segments against every path segment; "**"
// spans any number of segments.
func matchSegments(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegments(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := path.Match(strings.ToLower(pattern[0]), strings.ToLower(parts[0]))
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], parts[1:])
}

type patternList []IgnorePattern

// matches applies gitignore semantics: the last matching pattern decides,
// so a later negation re-includes a path.
func (l patternList) matches(rel string, isDir bool) bool {
	ignored := false
	for _, p := range l {
		if p.Match(rel, isDir) {
			ignored = !p.negation
		}
	}
	return ignored
}
