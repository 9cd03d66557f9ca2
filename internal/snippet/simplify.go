package snippet

import "strings"

const (
	invocationStart = '('
	invocationEnd   = ')'
)

// simplifyInvocation reduces "name(${1:a}, ${2:b})$0" to "name($0)". It
// applies only when the snippet holds exactly one balanced top-level
// invocation and no placeholder lives outside it; nested calls inside the
// argument list are dropped with the arguments.
func simplifyInvocation(segs []segment) ([]segment, bool) {
	topLevel, depth := 0, 0
	out := make([]segment, 0, len(segs))

	for _, s := range segs {
		if s.kind == segStop {
			if depth == 0 && !s.isBareFinal() {
				return nil, false
			}
			continue
		}

		text := s.text
		switch {
		case strings.HasSuffix(strings.TrimRight(text, " \t\r\n"), string(invocationStart)):
			depth += strings.Count(text, string(invocationStart))
			if depth == 1 {
				topLevel++
				i := strings.IndexByte(text, invocationStart)
				out = append(out,
					segment{kind: segText, text: text[:i+1]},
					segment{kind: segStop, index: 0})
			}
		case depth > 0:
			if strings.HasPrefix(strings.TrimLeft(text, " \t\r\n"), string(invocationEnd)) {
				depth -= strings.Count(text, string(invocationEnd))
				if depth == 0 {
					out = append(out, segment{kind: segText, text: text[strings.LastIndexByte(text, invocationEnd):]})
				}
			}
		case depth == 0:
			out = append(out, s)
		}
	}

	if topLevel != 1 || depth != 0 {
		return nil, false
	}
	return out, true
}
