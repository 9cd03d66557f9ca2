package document

// step is one undoable batch plus the caret before it.
type step struct {
	changes []Change
	caret   int
}

// history is a bounded undo stack.
type history struct {
	steps []step
	limit int
}

func newHistory(limit int) *history {
	return &history{limit: limit}
}

func (h *history) push(s step) {
	h.steps = append(h.steps, s)
	if h.limit > 0 && len(h.steps) > h.limit {
		h.steps = h.steps[len(h.steps)-h.limit:]
	}
}

func (h *history) pop() (step, bool) {
	if len(h.steps) == 0 {
		return step{}, false
	}
	s := h.steps[len(h.steps)-1]
	h.steps = h.steps[:len(h.steps)-1]
	return s, true
}

func (h *history) len() int { return len(h.steps) }
