package completion

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/dshills/lspcomplete/internal/lsp"
)

// Comparator orders completion items for display. Items matching the word
// under the caret come first, then items matching the typed prefix, then the
// server's sortText and finally the label.
//
// A Comparator is not safe for concurrent use.
type Comparator struct {
	prefix        string
	currentWord   string
	caseSensitive bool
	fold          cases.Caser
}

// NewComparator returns a comparator for the given typed prefix and current
// word. Either may be empty.
func NewComparator(prefix, currentWord string, caseSensitive bool) *Comparator {
	return &Comparator{
		prefix:        prefix,
		currentWord:   currentWord,
		caseSensitive: caseSensitive,
		fold:          cases.Fold(),
	}
}

// Compare returns a negative number when a sorts before b.
func (c *Comparator) Compare(a, b lsp.CompletionItem) int {
	if n := c.againstCurrentWord(a.Label, b.Label); n != 0 {
		return n
	}
	if n := c.againstPrefix(a.Label, b.Label); n != 0 {
		return n
	}
	if n := c.compare(a.SortText, b.SortText); n != 0 {
		return n
	}
	return c.compare(a.Label, b.Label)
}

func (c *Comparator) norm(s string) string {
	if c.caseSensitive {
		return s
	}
	return c.fold.String(s)
}

func (c *Comparator) compare(a, b string) int {
	return strings.Compare(c.norm(a), c.norm(b))
}

func (c *Comparator) hasPrefix(s, prefix string) bool {
	return strings.HasPrefix(c.norm(s), c.norm(prefix))
}

func isQuoted(s string) bool {
	return len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0]
}

func (c *Comparator) againstCurrentWord(a, b string) int {
	if c.currentWord == "" || isQuoted(a) || isQuoted(b) {
		return 0
	}
	exactA, exactB := c.compare(c.currentWord, a) == 0, c.compare(c.currentWord, b) == 0
	switch {
	case exactA && !exactB:
		return -1
	case exactB && !exactA:
		return 1
	}
	startsA := c.hasPrefix(c.currentWord, a) || c.hasPrefix(a, c.currentWord)
	startsB := c.hasPrefix(c.currentWord, b) || c.hasPrefix(b, c.currentWord)
	switch {
	case startsA && !startsB:
		return -1
	case startsB && !startsA:
		return 1
	}
	return 0
}

func (c *Comparator) againstPrefix(a, b string) int {
	if c.prefix == "" || isQuoted(a) || isQuoted(b) {
		return 0
	}
	startsA, startsB := c.hasPrefix(a, c.prefix), c.hasPrefix(b, c.prefix)
	switch {
	case startsA && !startsB:
		return -1
	case startsB && !startsA:
		return 1
	case startsA && startsB:
		return 0
	}
	humpA, humpB := c.humpMatch(a), c.humpMatch(b)
	switch {
	case humpA && !humpB:
		return -1
	case humpB && !humpA:
		return 1
	}
	return 0
}

// humpMatch reports whether prefix matches the start of label when each
// prefix rune may also jump to the next word start, so "tUC" matches
// "toUpperCase".
func (c *Comparator) humpMatch(label string) bool {
	p, l := []rune(c.prefix), []rune(label)
	if len(p) == 0 || len(l) == 0 || !c.runeEq(p[0], l[0]) {
		return false
	}
	i := 1
	for _, r := range p[1:] {
		if i < len(l) && c.runeEq(r, l[i]) {
			i++
			continue
		}
		k := i
		for k < len(l) && !(isWordStart(l, k) && c.runeEq(r, l[k])) {
			k++
		}
		if k >= len(l) {
			return false
		}
		i = k + 1
	}
	return true
}

func isWordStart(l []rune, i int) bool {
	return i > 0 && (unicode.IsUpper(l[i]) || l[i-1] == '_' || l[i-1] == '.')
}

func (c *Comparator) runeEq(a, b rune) bool {
	if c.caseSensitive {
		return a == b
	}
	return a == b || c.norm(string(a)) == c.norm(string(b))
}
