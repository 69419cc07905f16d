package pathutil

import (
	"regexp"
	"strings"
)

// ConfigDir is the vault-local configuration directory. It is excluded from
// sync unless the sync-configuration option is enabled.
const ConfigDir = ".obsidian"

// StateDirName is the directory holding sync metadata when it lives inside
// the vault. It is always excluded.
const StateDirName = ".vaultsync"

// Matcher matches vault-relative paths against a set of glob patterns.
//
// Glob semantics: '*' matches any run of characters except '/', '?' matches
// a single character except '/', and '**' matches any run of characters
// including '/'. All other regexp metacharacters are literal.
type Matcher struct {
	patterns []string
	res      []*regexp.Regexp
}

// NewMatcher compiles the given patterns. Invalid patterns cannot occur
// because every metacharacter is escaped during translation.
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{}
	seen := make(map[string]bool)
	for _, p := range patterns {
		p = Normalize(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		m.patterns = append(m.patterns, p)
		m.res = append(m.res, regexp.MustCompile("^"+translateGlob(p)+"$"))
	}
	return m
}

// Patterns returns the deduplicated, normalized pattern list.
func (m *Matcher) Patterns() []string {
	return m.patterns
}

// Matches reports whether the path matches any configured pattern. Matching
// is independent of separator style and of leading/trailing separators.
func (m *Matcher) Matches(p string) bool {
	p = Normalize(p)
	for _, re := range m.res {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// EffectivePatterns returns the user-configured patterns plus the implicit
// exclusions: the sync state directory (always) and the vault configuration
// directory (unless syncConfig is enabled).
func EffectivePatterns(user []string, syncConfig bool) []string {
	patterns := make([]string, 0, len(user)+2)
	patterns = append(patterns, user...)
	patterns = append(patterns, StateDirName+"/**", StateDirName)
	if !syncConfig {
		patterns = append(patterns, ConfigDir+"/**", ConfigDir)
	}
	return patterns
}

// translateGlob converts a glob pattern into an anchored regexp body.
func translateGlob(pattern string) string {
	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		}
	}
	return b.String()
}
