package snippet

import (
	"strings"
)

// Resolver returns the value of a snippet variable such as TM_FILENAME.
// ok is false for names it does not know.
type Resolver func(name string) (value string, ok bool)

// IndentOptions adapt snippet whitespace to the target document.
type IndentOptions struct {
	TabSize      int
	InsertSpaces bool

	// LineIndent is written after every newline of the snippet so that
	// continuation lines line up with the line the snippet is inserted on.
	LineIndent string
}

// Options control how a snippet is turned into a Template.
type Options struct {
	Resolve Resolver
	Indent  IndentOptions

	// SimplifyInvocation collapses a snippet that is a single call whose
	// arguments hold every placeholder into name($0).
	SimplifyInvocation bool
}

type segmentKind int

const (
	segText segmentKind = iota
	segStop
)

// segment is the parse tree: text runs and tab stops, with placeholder
// content as children.
type segment struct {
	kind     segmentKind
	text     string
	index    int
	children []segment
	choices  []string
}

func (s segment) isBareFinal() bool {
	return s.kind == segStop && s.index == 0 && len(s.children) == 0 && len(s.choices) == 0
}

// Parse turns snippet source into a Template.
func Parse(src string, opts Options) *Template {
	p := &parser{src: src, opts: opts}
	segs := p.sequence(false)

	if opts.SimplifyInvocation {
		if simplified, ok := simplifyInvocation(segs); ok {
			segs = simplified
		}
	}
	return render(segs)
}

// Literal returns the snippet text with all syntax removed.
func Literal(src string) string {
	return Parse(src, Options{}).Text
}

type parser struct {
	src  string
	pos  int
	opts Options
}

// sequence parses until the end of input or, when nested, an unescaped '}'
// which is left for the caller.
func (p *parser) sequence(nested bool) []segment {
	var segs []segment
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			segs = append(segs, segment{kind: segText, text: p.format(text.String())})
			text.Reset()
		}
	}

	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '\\':
			if p.pos+1 < len(p.src) && strings.IndexByte(`$}\`, p.src[p.pos+1]) >= 0 {
				text.WriteByte(p.src[p.pos+1])
				p.pos += 2
			} else {
				text.WriteByte(c)
				p.pos++
			}
		case c == '}' && nested:
			flush()
			return segs
		case c == '$':
			start := p.pos
			if parsed, ok := p.dollar(); ok {
				flush()
				segs = append(segs, parsed...)
			} else {
				p.pos = start + 1
				text.WriteByte(c)
			}
		default:
			text.WriteByte(c)
			p.pos++
		}
	}
	flush()
	return segs
}

// dollar parses the construct starting at '$'. On failure the position is
// unspecified and the caller rewinds.
func (p *parser) dollar() ([]segment, bool) {
	p.pos++ // '$'
	if p.pos >= len(p.src) {
		return nil, false
	}

	c := p.src[p.pos]
	switch {
	case isDigit(c):
		return []segment{{kind: segStop, index: p.number()}}, true
	case isVarStart(c):
		return p.variable(p.name(), nil), true
	case c != '{':
		return nil, false
	}

	p.pos++ // '{'
	if p.pos >= len(p.src) {
		return nil, false
	}
	c = p.src[p.pos]
	switch {
	case isDigit(c):
		return p.braceStop(p.number())
	case isVarStart(c):
		return p.braceVariable(p.name())
	}
	return nil, false
}

func (p *parser) braceStop(index int) ([]segment, bool) {
	if p.pos >= len(p.src) {
		return nil, false
	}
	switch p.src[p.pos] {
	case '}':
		p.pos++
		return []segment{{kind: segStop, index: index}}, true
	case ':':
		p.pos++
		children := p.sequence(true)
		if !p.consume('}') {
			return nil, false
		}
		return []segment{{kind: segStop, index: index, children: children}}, true
	case '|':
		p.pos++
		choices, ok := p.choices()
		if !ok {
			return nil, false
		}
		return []segment{{kind: segStop, index: index, choices: choices}}, true
	case '/':
		// Transforms on tab stops apply to typed text; the stop itself is kept.
		if _, ok := p.transform(); !ok {
			return nil, false
		}
		return []segment{{kind: segStop, index: index}}, true
	}
	return nil, false
}

func (p *parser) braceVariable(name string) ([]segment, bool) {
	if p.pos >= len(p.src) {
		return nil, false
	}
	switch p.src[p.pos] {
	case '}':
		p.pos++
		return p.variable(name, nil), true
	case ':':
		p.pos++
		children := p.sequence(true)
		if !p.consume('}') {
			return nil, false
		}
		return p.variable(name, children), true
	case '/':
		t, ok := p.transform()
		if !ok {
			return nil, false
		}
		value, known := p.resolve(name)
		if !known {
			return nil, true
		}
		return []segment{{kind: segText, text: t.apply(value)}}, true
	}
	return nil, false
}

// variable expands a resolved variable to its value and an unknown one to
// its default content, or to nothing.
func (p *parser) variable(name string, fallback []segment) []segment {
	if value, ok := p.resolve(name); ok {
		if value == "" {
			return nil
		}
		return []segment{{kind: segText, text: value}}
	}
	return fallback
}

func (p *parser) resolve(name string) (string, bool) {
	if p.opts.Resolve == nil {
		return "", false
	}
	return p.opts.Resolve(name)
}

// choices parses "a,b,c|}" after the opening "|".
func (p *parser) choices() ([]string, bool) {
	var out []string
	var cur strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '\\':
			if p.pos+1 < len(p.src) && strings.IndexByte(`,|$}\`, p.src[p.pos+1]) >= 0 {
				cur.WriteByte(p.src[p.pos+1])
				p.pos += 2
				continue
			}
			cur.WriteByte(c)
			p.pos++
		case ',':
			out = append(out, cur.String())
			cur.Reset()
			p.pos++
		case '|':
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == '}' {
				p.pos += 2
				return append(out, cur.String()), true
			}
			return nil, false
		default:
			cur.WriteByte(c)
			p.pos++
		}
	}
	return nil, false
}

// transform parses "/regex/format/flags}" starting at the first '/'.
func (p *parser) transform() (transform, bool) {
	p.pos++ // '/'
	regex, ok := p.until('/', false)
	if !ok {
		return transform{}, false
	}
	format, ok := p.until('/', true)
	if !ok {
		return transform{}, false
	}
	flags, ok := p.until('}', false)
	if !ok {
		return transform{}, false
	}
	return transform{regex: regex, format: format, flags: flags}, true
}

// until reads up to an unescaped terminator and consumes it. Escapes of the
// terminator are unescaped; other backslashes are kept for the regex and
// format parsers. With braces set, terminators inside ${...} groups of a
// format string do not count.
func (p *parser) until(term byte, braces bool) (string, bool) {
	var b strings.Builder
	depth := 0
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '\\' && p.pos+1 < len(p.src) {
			if p.src[p.pos+1] == term {
				b.WriteByte(term)
			} else {
				b.WriteByte(c)
				b.WriteByte(p.src[p.pos+1])
			}
			p.pos += 2
			continue
		}
		if braces {
			switch {
			case c == '$' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '{':
				depth++
			case c == '}' && depth > 0:
				depth--
			}
		}
		if c == term && depth == 0 {
			p.pos++
			return b.String(), true
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", false
}

func (p *parser) consume(c byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) number() int {
	n := 0
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		n = n*10 + int(p.src[p.pos]-'0')
		p.pos++
	}
	return n
}

func (p *parser) name() string {
	start := p.pos
	for p.pos < len(p.src) && (isVarStart(p.src[p.pos]) || isDigit(p.src[p.pos])) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// format applies the indent options to a literal text run.
func (p *parser) format(text string) string {
	ind := p.opts.Indent
	if ind.InsertSpaces && ind.TabSize > 0 {
		text = strings.ReplaceAll(text, "\t", strings.Repeat(" ", ind.TabSize))
	}
	if ind.LineIndent != "" {
		text = strings.ReplaceAll(text, "\n", "\n"+ind.LineIndent)
	}
	return text
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isVarStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
