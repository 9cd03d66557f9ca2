package snippet

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// transform is a ${VAR/regex/format/flags} rewrite of a variable value.
type transform struct {
	regex  string
	format string
	flags  string
}

// apply rewrites value; an invalid regex leaves it unchanged.
func (t transform) apply(value string) string {
	expr := t.regex
	if strings.Contains(t.flags, "i") {
		expr = "(?i)" + expr
	}
	if strings.Contains(t.flags, "m") {
		expr = "(?m)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return value
	}

	replace := func(match []int) string {
		groups := make([]string, len(match)/2)
		for i := range groups {
			if match[2*i] >= 0 {
				groups[i] = value[match[2*i]:match[2*i+1]]
			}
		}
		return expandFormat(t.format, groups)
	}

	if !strings.Contains(t.flags, "g") {
		m := re.FindStringSubmatchIndex(value)
		if m == nil {
			return value
		}
		return value[:m[0]] + replace(m) + value[m[1]:]
	}

	var b strings.Builder
	last := 0
	for _, m := range re.FindAllStringSubmatchIndex(value, -1) {
		b.WriteString(value[last:m[0]])
		b.WriteString(replace(m))
		last = m[1]
	}
	b.WriteString(value[last:])
	return b.String()
}

var (
	upper = cases.Upper(language.Und)
	lower = cases.Lower(language.Und)
)

// expandFormat renders a transform format string against capture groups:
// $n, ${n}, ${n:/upcase}, ${n:/downcase}, ${n:/capitalize},
// ${n:+if}, ${n:-else}, ${n:else} and ${n:?if:else}.
func expandFormat(format string, groups []string) string {
	group := func(n int) string {
		if n >= 0 && n < len(groups) {
			return groups[n]
		}
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(format); {
		c := format[i]
		if c == '\\' && i+1 < len(format) {
			switch format[i+1] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(format[i+1])
			}
			i += 2
			continue
		}
		if c != '$' || i+1 >= len(format) {
			b.WriteByte(c)
			i++
			continue
		}

		j := i + 1
		if isDigit(format[j]) {
			k := j
			for k < len(format) && isDigit(format[k]) {
				k++
			}
			n, _ := strconv.Atoi(format[j:k])
			b.WriteString(group(n))
			i = k
			continue
		}
		if format[j] != '{' {
			b.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(format[j:], '}')
		if end < 0 {
			b.WriteString(format[i:])
			break
		}
		body := format[j+1 : j+end]
		i = j + end + 1

		numEnd := 0
		for numEnd < len(body) && isDigit(body[numEnd]) {
			numEnd++
		}
		n, err := strconv.Atoi(body[:numEnd])
		if err != nil {
			b.WriteString("${" + body + "}")
			continue
		}
		v := group(n)
		rest := body[numEnd:]
		switch {
		case rest == "":
			b.WriteString(v)
		case rest == ":/upcase":
			b.WriteString(upper.String(v))
		case rest == ":/downcase":
			b.WriteString(lower.String(v))
		case rest == ":/capitalize":
			if v != "" {
				_, size := utf8.DecodeRuneInString(v)
				b.WriteString(upper.String(v[:size]) + v[size:])
			}
		case strings.HasPrefix(rest, ":+"):
			if v != "" {
				b.WriteString(rest[2:])
			}
		case strings.HasPrefix(rest, ":?"):
			ifText, elseText, _ := strings.Cut(rest[2:], ":")
			if v != "" {
				b.WriteString(ifText)
			} else {
				b.WriteString(elseText)
			}
		case strings.HasPrefix(rest, ":-"):
			if v != "" {
				b.WriteString(v)
			} else {
				b.WriteString(rest[2:])
			}
		case strings.HasPrefix(rest, ":"):
			if v != "" {
				b.WriteString(v)
			} else {
				b.WriteString(rest[1:])
			}
		default:
			b.WriteString(v)
		}
	}
	return b.String()
}
