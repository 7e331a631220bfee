package walk

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// ignoreFileNames are read in every directory, lowest priority first so later
// files can override with negations.
var ignoreFileNames = []string{".gitignore", ".ignore", ".rfindignore"}

// ignoreProvider builds and caches one matcher per directory. A directory's
// matcher is its parent's matcher extended with the directory's own files.
type ignoreProvider struct {
	root  string
	cache sync.Map // map[string]*GitignoreMatcher keyed by slash-separated rel dir
}

func newIgnoreProvider(root string) *ignoreProvider {
	p := &ignoreProvider{root: root}

	base := NewGitignoreMatcher()
	p.addGlobalExcludes(base)
	p.addFile(base, filepath.Join(root, ".git", "info", "exclude"), root)
	p.addDirectoryFiles(base, root)
	p.cache.Store(".", base)

	return p
}

// MatcherFor returns the matcher that applies to entries inside relDir.
func (p *ignoreProvider) MatcherFor(relDir string) *GitignoreMatcher {
	key := normalizeDirKey(relDir)
	if m, ok := p.cache.Load(key); ok {
		return m.(*GitignoreMatcher)
	}

	child := p.MatcherFor(parentDirKey(key)).Clone()
	p.addDirectoryFiles(child, filepath.Join(p.root, filepath.FromSlash(key)))

	actual, _ := p.cache.LoadOrStore(key, child)
	return actual.(*GitignoreMatcher)
}

func (p *ignoreProvider) addDirectoryFiles(m *GitignoreMatcher, dir string) {
	for _, name := range ignoreFileNames {
		p.addFile(m, filepath.Join(dir, name), dir)
	}
}

func (p *ignoreProvider) addGlobalExcludes(m *GitignoreMatcher) {
	candidates := []string{p.coreExcludesFile()}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		candidates = append(candidates,
			filepath.Join(home, ".gitignore_global"),
			filepath.Join(home, ".config", "git", "ignore"),
		)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "git", "ignore"))
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		p.addFile(m, candidate, p.root)
	}
}

func (p *ignoreProvider) addFile(m *GitignoreMatcher, filePath, base string) bool {
	data, err := os.ReadFile(filePath)
	if err != nil || len(data) == 0 {
		return false
	}
	m.AddPatterns(string(data), base)
	return true
}

// coreExcludesFile reads core.excludesFile from the repository config at root.
func (p *ignoreProvider) coreExcludesFile() string {
	file, err := os.Open(filepath.Join(p.root, ".git", "config"))
	if err != nil {
		return ""
	}
	defer func() {
		_ = file.Close()
	}()

	inCore := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "", strings.HasPrefix(line, "#"), strings.HasPrefix(line, ";"):
			continue
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			inCore = strings.HasPrefix(strings.ToLower(line), "[core")
			continue
		}
		if !inCore || !strings.HasPrefix(strings.ToLower(line), "excludesfile") {
			continue
		}

		value := expandUserPath(configValue(line))
		if value == "" {
			continue
		}
		if !filepath.IsAbs(value) {
			value = filepath.Join(p.root, value)
		}
		return value
	}
	return ""
}

func configValue(line string) string {
	if idx := strings.Index(line, "="); idx >= 0 {
		return strings.TrimSpace(line[idx+1:])
	}
	fields := strings.Fields(line)
	if len(fields) <= 1 {
		return ""
	}
	return strings.Join(fields[1:], " ")
}

func expandUserPath(value string) string {
	value = strings.TrimSpace(value)
	if value != "~" && !strings.HasPrefix(value, "~/") {
		return value
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return value
	}
	if value == "~" {
		return home
	}
	return filepath.Join(home, value[2:])
}

func normalizeDirKey(relDir string) string {
	if relDir == "" {
		return "."
	}
	cleaned := filepath.ToSlash(filepath.Clean(relDir))
	cleaned = strings.TrimPrefix(cleaned, "./")
	if cleaned == "" || cleaned == "/" {
		return "."
	}
	return cleaned
}

func parentDirKey(key string) string {
	if key == "." {
		return "."
	}
	parent := path.Dir(key)
	if parent == "/" {
		return "."
	}
	return parent
}
