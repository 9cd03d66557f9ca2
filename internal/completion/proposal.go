package completion

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/dshills/lspcomplete/internal/lazy"
	"github.com/dshills/lspcomplete/internal/lsp"
)

// itemState is the item a proposal currently presents. Once resolved the
// server's full item replaces the original wholesale. An abandoned proposal
// gave up waiting for its resolve and keeps the original for good.
type itemState struct {
	item      lsp.CompletionItem
	resolved  bool
	abandoned bool
}

// Proposal is one completion item offered to the user.
type Proposal struct {
	session          *Session
	completionOffset int
	prefixStart      int

	mu    sync.Mutex
	state itemState

	resolveOnce   sync.Once
	resolved      *lazy.Future[lsp.CompletionItem]
	cancelResolve context.CancelFunc
}

func newProposal(s *Session, item lsp.CompletionItem) *Proposal {
	return &Proposal{
		session:          s,
		completionOffset: s.Offset,
		prefixStart:      prefixStartOffset(s.doc, item, s.Offset),
		state:            itemState{item: item},
	}
}

// Item returns the current item, resolved or not.
func (p *Proposal) Item() lsp.CompletionItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.item
}

// IsResolved reports whether the item was replaced by its resolved form.
func (p *Proposal) IsResolved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.resolved
}

// CompletionOffset is the offset the completion was requested at.
func (p *Proposal) CompletionOffset() int { return p.completionOffset }

// PrefixStartOffset is where the text the user already typed begins.
func (p *Proposal) PrefixStartOffset() int { return p.prefixStart }

// future returns the memoized resolve request, starting it on first use.
func (p *Proposal) future() *lazy.Future[lsp.CompletionItem] {
	p.resolveOnce.Do(func() {
		item := p.Item()
		resolver := p.session.resolver
		ctx, cancel := context.WithCancel(p.session.ctx)
		p.cancelResolve = cancel
		p.resolved = lazy.NewFuture(ctx, func(ctx context.Context) (lsp.CompletionItem, error) {
			defer cancel()
			if resolver == nil {
				return lsp.CompletionItem{}, errors.Wrap(lsp.ErrNotSupported, "no completion resolver")
			}
			return resolver.ResolveCompletionItem(ctx, item)
		})
		p.resolved.Start()
	})
	return p.resolved
}

func (p *Proposal) isAbandoned() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.abandoned
}

// abandon cancels the pending request and pins the current item.
func (p *Proposal) abandon() {
	p.mu.Lock()
	p.state.abandoned = true
	p.mu.Unlock()
	p.cancelResolve()
}

// adopt replaces the item with its resolved form unless the proposal was
// abandoned meanwhile.
func (p *Proposal) adopt(item lsp.CompletionItem) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.abandoned {
		return false
	}
	p.state = itemState{item: item, resolved: true}
	return true
}

// resolvedItem waits for the memoized resolve, bounded by ctx and the
// session's resolve timeout. Failures are logged and reported as false; the
// proposal keeps its current item. A wait cut short by ctx abandons the
// resolve.
func (p *Proposal) resolvedItem(ctx context.Context) (lsp.CompletionItem, bool) {
	if d := p.session.resolveTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	f := p.future()
	if p.isAbandoned() {
		return lsp.CompletionItem{}, false
	}
	item, err := f.Wait(ctx)
	if err == nil {
		return item, true
	}
	if ctx.Err() != nil {
		p.abandon()
	}
	log := p.session.logger.With("label", p.Item().Label)
	var rpcErr *lsp.RPCError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Debugw("completion resolve cancelled", "error", err)
	case errors.As(err, &rpcErr) && rpcErr.IsCancelled():
		log.Debugw("completion resolve cancelled by server", "error", err)
	default:
		log.Errorw("completion resolve failed", "error", err)
	}
	return lsp.CompletionItem{}, false
}

// Resolve returns the item to insert. Without server support, or when the
// policy declines, that is the original item. Otherwise the item is resolved
// once, later calls reuse the same request, and the proposal moves to the
// resolved item. Once a wait is cancelled the proposal stays unresolved.
func (p *Proposal) Resolve(ctx context.Context) (lsp.CompletionItem, bool) {
	item := p.Item()
	if !p.session.IsResolveSupported() || !p.session.policy.ShouldResolveOnApply(item) {
		return item, true
	}
	resolved, ok := p.resolvedItem(ctx)
	if !ok || !p.adopt(resolved) {
		return lsp.CompletionItem{}, false
	}
	return resolved, true
}

// NeedsDetailResolve reports whether Detail has to ask the server.
func (p *Proposal) NeedsDetailResolve() bool {
	return p.Item().Detail == "" && p.session.IsResolveSupported()
}

// Detail returns the item detail, resolving the item when it has none.
func (p *Proposal) Detail(ctx context.Context) string {
	if d := p.Item().Detail; d != "" || !p.session.IsResolveSupported() {
		return d
	}
	resolved, ok := p.resolvedItem(ctx)
	if !ok {
		return ""
	}
	return resolved.Detail
}

// Documentation returns the item documentation, resolving the item when it
// has none.
func (p *Proposal) Documentation(ctx context.Context) (lsp.MarkupContent, bool) {
	item := p.Item()
	if item.Documentation != nil {
		return lsp.ParseDocumentation(item.Documentation)
	}
	if !p.session.IsResolveSupported() {
		return lsp.MarkupContent{}, false
	}
	resolved, ok := p.resolvedItem(ctx)
	if !ok {
		return lsp.MarkupContent{}, false
	}
	return lsp.ParseDocumentation(resolved.Documentation)
}

// DocumentationAsync computes Documentation on its own goroutine and passes
// the result to fn.
func (p *Proposal) DocumentationAsync(ctx context.Context, fn func(lsp.MarkupContent, bool)) {
	go func() {
		fn(p.Documentation(ctx))
	}()
}

// Label is the text shown in the completion list.
func (p *Proposal) Label() string { return p.Item().Label }

// FilterText is what typed text is matched against.
func (p *Proposal) FilterText() string {
	item := p.Item()
	if item.FilterText != "" {
		return item.FilterText
	}
	return item.Label
}

// LookupStrings are all strings the proposal can be matched by.
func (p *Proposal) LookupStrings() []string {
	item := p.Item()
	if strings.TrimSpace(item.FilterText) == "" || item.FilterText == item.Label {
		return []string{item.Label}
	}
	return []string{item.FilterText, item.Label}
}

// SortText falls back to the label.
func (p *Proposal) SortText() string {
	item := p.Item()
	if item.SortText != "" {
		return item.SortText
	}
	return item.Label
}

// IsDeprecated reports the deprecated flag or tag.
func (p *Proposal) IsDeprecated() bool {
	item := p.Item()
	return item.Deprecated || item.HasTag(lsp.CompletionItemTagDeprecated)
}

// IsKeyword reports whether the item is a language keyword.
func (p *Proposal) IsKeyword() bool {
	return p.Item().Kind == lsp.CompletionItemKindKeyword
}

// TypeText is shown right aligned, usually a type or package.
func (p *Proposal) TypeText() string {
	item := p.Item()
	if item.LabelDetails != nil {
		return item.LabelDetails.Description
	}
	return item.Detail
}

// TailText is shown right after the label, usually a signature.
func (p *Proposal) TailText() string {
	item := p.Item()
	if item.LabelDetails != nil {
		return item.LabelDetails.Detail
	}
	return ""
}

// EditRange is the range of the server edit, the insert range for an
// insert/replace edit.
func (p *Proposal) EditRange() (lsp.Range, bool) {
	item := p.Item()
	if item.TextEdit == nil {
		return lsp.Range{}, false
	}
	return item.TextEdit.Range(), true
}
