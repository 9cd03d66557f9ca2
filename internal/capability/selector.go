package capability

import (
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/dshills/lspcomplete/internal/lsp"
)

// DocumentContext identifies the document a capability question is about.
type DocumentContext struct {
	URI        lsp.DocumentURI
	LanguageID string
}

// Filter is one entry of an LSP document selector.
type Filter struct {
	Language string
	Scheme   string
	Pattern  string

	glob *ignore.GitIgnore
}

// NewFilter compiles a document filter. Brace alternatives in the pattern
// such as "**/*.{ts,js}" are expanded before compilation.
func NewFilter(language, scheme, pattern string) Filter {
	f := Filter{Language: language, Scheme: scheme, Pattern: pattern}
	if pattern != "" {
		f.glob = ignore.CompileIgnoreLines(expandBraces(pattern)...)
	}
	return f
}

// Matches reports whether doc satisfies the filter. A filter matches when
// any of its set fields matches the document. A language filter with an
// unknown document language matches only when it is the sole field.
func (f Filter) Matches(doc DocumentContext) bool {
	hasLanguage := f.Language != ""
	hasScheme := f.Scheme != ""
	hasPattern := f.Pattern != ""

	if hasLanguage {
		if doc.LanguageID == "" && !hasScheme && !hasPattern {
			return true
		}
		if f.Language == doc.LanguageID {
			return true
		}
	}
	if hasScheme && f.Scheme == lsp.URIScheme(doc.URI) {
		return true
	}
	if hasPattern && f.glob != nil {
		path := strings.TrimPrefix(lsp.URIToFilePath(doc.URI), "/")
		return f.glob.MatchesPath(path)
	}
	return false
}

// Selector is a document selector; an empty selector matches every document.
type Selector []Filter

// Matches reports whether any filter matches doc.
func (s Selector) Matches(doc DocumentContext) bool {
	if len(s) == 0 {
		return true
	}
	for _, f := range s {
		if f.Matches(doc) {
			return true
		}
	}
	return false
}

// expandBraces expands the first {a,b} group recursively. Patterns without
// braces, or with unbalanced ones, come back unchanged.
func expandBraces(pattern string) []string {
	open := strings.IndexByte(pattern, '{')
	if open < 0 {
		return []string{strings.TrimPrefix(pattern, "./")}
	}
	depth := 0
	for i := open; i < len(pattern); i++ {
		switch pattern[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				var out []string
				for _, alt := range splitTopLevel(pattern[open+1 : i]) {
					out = append(out, expandBraces(pattern[:open]+alt+pattern[i+1:])...)
				}
				return out
			}
		}
	}
	return []string{pattern}
}

// splitTopLevel splits s on commas that are not nested inside braces.
func splitTopLevel(s string) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}
