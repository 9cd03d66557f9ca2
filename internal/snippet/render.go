package snippet

import "strings"

// render flattens segments into a Template. The first occurrence of an index
// that carries content (a default or choices) is the primary one; every
// other occurrence mirrors it and shows the same text.
func render(segs []segment) *Template {
	r := &renderer{primary: make(map[int]*segment)}
	r.collect(segs)
	r.write(segs)
	return &Template{Text: r.b.String(), Stops: r.stops}
}

type renderer struct {
	b       strings.Builder
	stops   []Stop
	primary map[int]*segment
}

func (r *renderer) collect(segs []segment) {
	for i := range segs {
		s := &segs[i]
		if s.kind != segStop {
			continue
		}
		if p, ok := r.primary[s.index]; !ok || (!hasContent(*p) && hasContent(*s)) {
			r.primary[s.index] = s
		}
		r.collect(s.children)
	}
}

func hasContent(s segment) bool {
	return len(s.children) > 0 || len(s.choices) > 0
}

func (r *renderer) write(segs []segment) {
	for i := range segs {
		s := &segs[i]
		if s.kind == segText {
			r.b.WriteString(s.text)
			continue
		}

		primary := r.primary[s.index]
		mirror := primary != s

		offset := r.b.Len()
		stopAt := len(r.stops)
		r.stops = append(r.stops, Stop{Index: s.index, Offset: offset, Mirror: mirror})

		var def string
		switch {
		case mirror:
			def = plain(*primary)
			r.b.WriteString(def)
		case len(s.choices) > 0:
			def = s.choices[0]
			r.b.WriteString(def)
		default:
			r.write(s.children)
			def = r.b.String()[offset:]
		}

		st := &r.stops[stopAt]
		st.Length = r.b.Len() - offset
		st.Default = def
		if !mirror && len(s.choices) > 0 {
			st.Choices = append([]string(nil), s.choices...)
		}
	}
}

// plain is the text a segment renders to, without stops.
func plain(s segment) string {
	if len(s.choices) > 0 {
		return s.choices[0]
	}
	var b strings.Builder
	for _, c := range s.children {
		if c.kind == segText {
			b.WriteString(c.text)
		} else {
			b.WriteString(plain(c))
		}
	}
	return b.String()
}
