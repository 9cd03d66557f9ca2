package snippet

import "sort"

// Stop is one tab stop occurrence in a Template. Offset and Length are byte
// positions within Template.Text.
type Stop struct {
	Index   int
	Offset  int
	Length  int
	Default string
	Choices []string

	// Mirror marks a repeated index; it follows the primary occurrence.
	Mirror bool
}

// IsFinal reports whether s is the $0 stop.
func (s Stop) IsFinal() bool {
	return s.Index == 0
}

// Template is a parsed snippet.
type Template struct {
	Text  string
	Stops []Stop
}

// HasStops reports whether the template has any tab stop.
func (t *Template) HasStops() bool {
	return t != nil && len(t.Stops) > 0
}

// Variables returns the primary occurrence of every non-final stop, ordered
// by index.
func (t *Template) Variables() []Stop {
	if t == nil {
		return nil
	}
	var out []Stop
	for _, s := range t.Stops {
		if !s.Mirror && !s.IsFinal() {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Final returns the primary $0 stop.
func (t *Template) Final() (Stop, bool) {
	if t == nil {
		return Stop{}, false
	}
	for _, s := range t.Stops {
		if s.IsFinal() && !s.Mirror {
			return s, true
		}
	}
	return Stop{}, false
}

// Mirrors returns every occurrence of index, primary first.
func (t *Template) Mirrors(index int) []Stop {
	if t == nil {
		return nil
	}
	var primary []Stop
	var rest []Stop
	for _, s := range t.Stops {
		if s.Index != index {
			continue
		}
		if s.Mirror {
			rest = append(rest, s)
		} else {
			primary = append(primary, s)
		}
	}
	return append(primary, rest...)
}

// SingleEmptyStop reports the caret target of a trivial template: a single
// variable with no default, or only a final stop. Such templates need no
// interactive session.
func (t *Template) SingleEmptyStop() (Stop, bool) {
	vars := t.Variables()
	switch len(vars) {
	case 0:
		return t.Final()
	case 1:
		if vars[0].Default == "" && len(vars[0].Choices) == 0 {
			return vars[0], true
		}
	}
	return Stop{}, false
}
