package walk

import (
	"path"
	"path/filepath"
	"strings"
)

// GitignoreMatcher evaluates gitignore-style rules against absolute paths.
// Rules are checked in order and the last matching rule wins, so a later
// negation re-includes an earlier match.
type GitignoreMatcher struct {
	rules []gitignoreRule
}

type gitignoreRule struct {
	negate   bool
	dirOnly  bool
	anchored bool     // pattern contains a slash, so it matches relative to base
	base     string   // slash-separated directory the rule file lives in
	segments []string // pattern split on "/", globs in path.Match syntax
}

// NewGitignoreMatcher creates an empty matcher.
func NewGitignoreMatcher() *GitignoreMatcher {
	return &GitignoreMatcher{}
}

// Clone returns a copy that can be extended without touching the original.
func (gm *GitignoreMatcher) Clone() *GitignoreMatcher {
	clone := NewGitignoreMatcher()
	if gm != nil && len(gm.rules) > 0 {
		clone.rules = make([]gitignoreRule, len(gm.rules))
		copy(clone.rules, gm.rules)
	}
	return clone
}

// Len reports the number of parsed rules.
func (gm *GitignoreMatcher) Len() int {
	if gm == nil {
		return 0
	}
	return len(gm.rules)
}

// AddPatterns parses the content of an ignore file located in basePath.
func (gm *GitignoreMatcher) AddPatterns(content string, basePath string) {
	base := strings.TrimSuffix(path.Clean(filepath.ToSlash(basePath)), "/")
	for _, line := range strings.Split(content, "\n") {
		if rule, ok := parseGitignoreRule(line, base); ok {
			gm.rules = append(gm.rules, rule)
		}
	}
}

func parseGitignoreRule(line, base string) (gitignoreRule, bool) {
	line = strings.TrimSuffix(line, "\r")
	line = trimUnescapedTrailingSpaces(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return gitignoreRule{}, false
	}

	rule := gitignoreRule{base: base}
	switch {
	case strings.HasPrefix(line, "!"):
		rule.negate = true
		line = line[1:]
	case strings.HasPrefix(line, `\!`), strings.HasPrefix(line, `\#`):
		line = line[1:]
	}

	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		rule.anchored = true
		line = strings.TrimLeft(line, "/")
	}
	if strings.Contains(line, "/") {
		rule.anchored = true
	}
	if line == "" {
		return gitignoreRule{}, false
	}

	segments := strings.Split(line, "/")
	for i, seg := range segments {
		segments[i] = toMatchSyntax(seg)
	}
	rule.segments = segments
	return rule, true
}

// toMatchSyntax rewrites gitignore's negated class "[!...]" into "[^...]".
func toMatchSyntax(seg string) string {
	if !strings.Contains(seg, "[!") {
		return seg
	}
	return strings.ReplaceAll(seg, "[!", "[^")
}

func trimUnescapedTrailingSpaces(line string) string {
	i := len(line) - 1
	for i >= 0 && line[i] == ' ' {
		backslashes := 0
		for j := i - 1; j >= 0 && line[j] == '\\'; j-- {
			backslashes++
		}
		if backslashes%2 == 1 {
			break
		}
		i--
	}
	return line[:i+1]
}

// Match checks a file path.
func (gm *GitignoreMatcher) Match(p string) bool {
	return gm.MatchWithType(p, false)
}

// MatchWithType checks whether path should be ignored given its type.
func (gm *GitignoreMatcher) MatchWithType(p string, isDir bool) bool {
	if gm == nil || len(gm.rules) == 0 {
		return false
	}
	p = path.Clean(filepath.ToSlash(p))

	ignored := false
	for i := range gm.rules {
		if gm.rules[i].matches(p, isDir) {
			ignored = !gm.rules[i].negate
		}
	}
	return ignored
}

func (r *gitignoreRule) matches(p string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}

	rel := p
	if r.base != "" && r.base != "." {
		if !strings.HasPrefix(p, r.base+"/") {
			return false
		}
		rel = p[len(r.base)+1:]
	}
	if rel == "" {
		return false
	}

	parts := strings.Split(rel, "/")
	if !r.anchored {
		ok, err := path.Match(r.segments[0], parts[len(parts)-1])
		return err == nil && ok
	}
	return matchSegments(r.segments, parts)
}

func matchSegments(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == "**" {
		if len(pattern) == 1 {
			return len(parts) > 0
		}
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
	ok, err := path.Match(pattern[0], parts[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], parts[1:])
}
