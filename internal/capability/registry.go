package capability

import (
	"sync"

	"github.com/tidwall/gjson"
)

// dynamicEntry is one client/registerCapability registration.
type dynamicEntry[T any] struct {
	id       string
	selector Selector
	value    *T
}

// registry holds the static snapshot of one text document feature together
// with its dynamic registrations. Readers never lock; writers serialize on mu
// and publish copies.
type registry[T any] struct {
	mu      sync.Mutex
	static  Store[T]
	dynamic Store[[]dynamicEntry[T]]
}

// setStatic publishes a new static snapshot. Dynamic registrations belong to
// the previous server state and are dropped.
func (r *registry[T]) setStatic(v *T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static.Replace(v)
	r.dynamic.Replace(nil)
}

func (r *registry[T]) add(id string, sel Selector, v *T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var next []dynamicEntry[T]
	if cur := r.dynamic.Load(); cur != nil {
		for _, e := range *cur {
			if e.id != id {
				next = append(next, e)
			}
		}
	}
	next = append(next, dynamicEntry[T]{id: id, selector: sel, value: v})
	r.dynamic.Replace(&next)
}

func (r *registry[T]) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.dynamic.Load()
	if cur == nil {
		return false
	}
	next := make([]dynamicEntry[T], 0, len(*cur))
	for _, e := range *cur {
		if e.id != id {
			next = append(next, e)
		}
	}
	if len(next) == len(*cur) {
		return false
	}
	r.dynamic.Replace(&next)
	return true
}

// supported consults the static snapshot first, then every dynamic
// registration whose selector matches doc. A nil dynamicPred accepts any
// matching registration.
func (r *registry[T]) supported(doc DocumentContext, staticPred, dynamicPred func(*T) bool) bool {
	if s := r.static.Load(); s != nil && staticPred(s) {
		return true
	}
	entries := r.dynamic.Load()
	if entries == nil {
		return false
	}
	for _, e := range *entries {
		if !e.selector.Matches(doc) {
			continue
		}
		if dynamicPred == nil || dynamicPred(e.value) {
			return true
		}
	}
	return false
}

func (r *registry[T]) dynamicCount() int {
	if entries := r.dynamic.Load(); entries != nil {
		return len(*entries)
	}
	return 0
}

// parseSelector reads the documentSelector of registration options.
func parseSelector(opts gjson.Result) Selector {
	raw := opts.Get("documentSelector")
	if !raw.IsArray() {
		return nil
	}
	var sel Selector
	raw.ForEach(func(_, f gjson.Result) bool {
		sel = append(sel, NewFilter(f.Get("language").String(), f.Get("scheme").String(), f.Get("pattern").String()))
		return true
	})
	return sel
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func stringList(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	var out []string
	r.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.String())
		return true
	})
	return out
}
