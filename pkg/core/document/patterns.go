package document

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

//go:embed patterns.yaml
var defaultPatternsYAML []byte

// Pattern is one filer naming convention for primary documents. The regex may
// contain the token {form}, replaced at match time with a tolerant pattern
// for the requested form code.
type Pattern struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
}

// PatternTable holds the filer-specific naming conventions consulted by the
// resolver cascade. The observed conventions are a pattern class (ticker
// prefix plus form or date), not an exhaustive list, so the table is
// extensible without code changes. Safe for concurrent use: one table is
// shared by every resolution running through a Resolver.
type PatternTable struct {
	mu            sync.RWMutex
	patterns      []Pattern
	compiledCache map[string][]*regexp.Regexp // form -> compiled patterns
}

type patternFile struct {
	Patterns []Pattern `yaml:"patterns"`
}

// DefaultPatternTable loads the embedded convention table.
func DefaultPatternTable() *PatternTable {
	table, err := LoadPatternTable(defaultPatternsYAML)
	if err != nil {
		// The embedded table is validated by tests; a parse failure here is
		// a build defect, not a runtime condition.
		panic(fmt.Sprintf("document: embedded pattern table invalid: %v", err))
	}
	return table
}

// LoadPatternTable parses a YAML convention table.
func LoadPatternTable(raw []byte) (*PatternTable, error) {
	var file patternFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse pattern table: %w", err)
	}
	t := &PatternTable{compiledCache: make(map[string][]*regexp.Regexp)}
	for _, p := range file.Patterns {
		if err := t.Add(p); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add appends one convention to the table, validating the regex with a
// placeholder form substituted in.
func (t *PatternTable) Add(p Pattern) error {
	probe := strings.ReplaceAll(p.Regex, "{form}", "10-?k")
	if _, err := regexp.Compile(probe); err != nil {
		return fmt.Errorf("pattern %q: %w", p.Name, err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.patterns = append(t.patterns, p)
	t.compiledCache = make(map[string][]*regexp.Regexp) // invalidate compiled cache
	return nil
}

// Matches reports whether fileName (lowercased by the caller) follows any
// known filer convention for the given form code.
func (t *PatternTable) Matches(fileName, form string) bool {
	for _, re := range t.compiled(form) {
		if re.MatchString(fileName) {
			return true
		}
	}
	return false
}

func (t *PatternTable) compiled(form string) []*regexp.Regexp {
	key := strings.ToLower(form)

	t.mu.RLock()
	res, ok := t.compiledCache[key]
	t.mu.RUnlock()
	if ok {
		return res
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if res, ok := t.compiledCache[key]; ok {
		return res
	}
	formPat := formPattern(form)
	res = make([]*regexp.Regexp, 0, len(t.patterns))
	for _, p := range t.patterns {
		re, err := regexp.Compile(strings.ReplaceAll(p.Regex, "{form}", formPat))
		if err != nil {
			continue
		}
		res = append(res, re)
	}
	t.compiledCache[key] = res
	return res
}

// formPattern builds a regex fragment matching a form code with optional
// separators, so "10-K" also matches "10k" and "10_k".
func formPattern(form string) string {
	form = strings.ToLower(strings.TrimSpace(form))
	if form == "" {
		return `[a-z0-9-]+`
	}
	var sb strings.Builder
	for _, r := range form {
		if r == '-' || r == '_' || r == '/' {
			sb.WriteString(`[-_]?`)
			continue
		}
		sb.WriteString(regexp.QuoteMeta(string(r)))
	}
	return sb.String()
}
