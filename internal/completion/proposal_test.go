package completion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lspcomplete/internal/lsp"
)

func withDetail(detail string) func(context.Context, lsp.CompletionItem) (lsp.CompletionItem, error) {
	return func(_ context.Context, item lsp.CompletionItem) (lsp.CompletionItem, error) {
		item.Detail = detail
		item.Documentation = lsp.MarkupContent{Kind: lsp.MarkupKindMarkdown, Value: "resolved docs"}
		return item, nil
	}
}

func TestProposal_ResolveMemoized(t *testing.T) {
	r := &fakeResolver{resolve: withDetail("func()")}
	s, _ := newSession(t, "fo", 2, newFeatures(t, true, false), WithResolver(r))
	p := proposal(s, lsp.CompletionItem{Label: "foo"})

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item, ok := p.Resolve(context.Background())
			assert.True(t, ok)
			assert.Equal(t, "func()", item.Detail)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.Calls())
	assert.True(t, p.IsResolved())
	assert.Equal(t, "func()", p.Item().Detail)
	assert.Equal(t, "func()", p.Detail(context.Background()))
	assert.Equal(t, 1, r.Calls())
}

func TestProposal_ResolveUnsupported(t *testing.T) {
	r := &fakeResolver{resolve: withDetail("func()")}
	s, _ := newSession(t, "fo", 2, newFeatures(t, false, false), WithResolver(r))
	p := proposal(s, lsp.CompletionItem{Label: "foo"})

	item, ok := p.Resolve(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "foo", item.Label)
	assert.Empty(t, item.Detail)
	assert.False(t, p.NeedsDetailResolve())
	assert.Empty(t, p.Detail(context.Background()))
	assert.Zero(t, r.Calls())
}

func TestProposal_ResolveDeclinedByPolicy(t *testing.T) {
	r := &fakeResolver{resolve: withDetail("func()")}
	s, _ := newSession(t, "fo", 2, newFeatures(t, true, false),
		WithResolver(r), WithPolicy(DefaultPolicy{DisableResolveOnApply: true}))
	p := proposal(s, lsp.CompletionItem{Label: "foo"})

	item, ok := p.Resolve(context.Background())
	assert.True(t, ok)
	assert.Empty(t, item.Detail)
	assert.Zero(t, r.Calls())
}

func TestProposal_ResolveCancelledWait(t *testing.T) {
	stopped := make(chan error, 1)
	r := &fakeResolver{resolve: func(ctx context.Context, item lsp.CompletionItem) (lsp.CompletionItem, error) {
		<-ctx.Done()
		stopped <- ctx.Err()
		return lsp.CompletionItem{}, ctx.Err()
	}}
	s, _ := newSession(t, "fo", 2, newFeatures(t, true, false), WithResolver(r))
	p := proposal(s, lsp.CompletionItem{Label: "foo"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := p.Resolve(ctx)
	assert.False(t, ok)

	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, context.Canceled, "pending request cancelled")
	case <-time.After(2 * time.Second):
		t.Fatal("resolve request still running after the wait was cancelled")
	}

	_, ok = p.Resolve(context.Background())
	assert.False(t, ok, "cancelled resolve is not retried")
	assert.False(t, p.IsResolved())
	assert.Equal(t, "foo", p.Item().Label)
	assert.Empty(t, p.Detail(context.Background()))
	assert.Equal(t, 1, r.Calls())
}

func TestProposal_ResolveCancelledAfterSlowServerAnswers(t *testing.T) {
	release := make(chan struct{})
	r := &fakeResolver{resolve: func(ctx context.Context, item lsp.CompletionItem) (lsp.CompletionItem, error) {
		<-release
		item.Detail = "late"
		return item, nil
	}}
	s, _ := newSession(t, "fo", 2, newFeatures(t, true, false), WithResolver(r))
	p := proposal(s, lsp.CompletionItem{Label: "foo"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := p.Resolve(ctx)
	require.False(t, ok)

	close(release)
	require.Eventually(t, p.future().Done, 2*time.Second, 5*time.Millisecond)
	_, ok = p.Resolve(context.Background())
	assert.False(t, ok)
	assert.False(t, p.IsResolved())
	assert.Empty(t, p.Item().Detail)
}

func TestProposal_ResolveTimeout(t *testing.T) {
	r := &fakeResolver{resolve: func(ctx context.Context, item lsp.CompletionItem) (lsp.CompletionItem, error) {
		<-ctx.Done()
		return lsp.CompletionItem{}, ctx.Err()
	}}
	s, _ := newSession(t, "fo", 2, newFeatures(t, true, false),
		WithResolver(r), WithResolveTimeout(20*time.Millisecond))
	p := proposal(s, lsp.CompletionItem{Label: "foo"})

	start := time.Now()
	_, ok := p.Resolve(context.Background())
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, p.IsResolved())
}

func TestProposal_SessionCloseStopsResolve(t *testing.T) {
	r := &fakeResolver{resolve: func(ctx context.Context, item lsp.CompletionItem) (lsp.CompletionItem, error) {
		<-ctx.Done()
		return lsp.CompletionItem{}, ctx.Err()
	}}
	s, _ := newSession(t, "fo", 2, newFeatures(t, true, false), WithResolver(r))
	p := proposal(s, lsp.CompletionItem{Label: "foo"})

	done := make(chan bool, 1)
	go func() {
		_, ok := p.Resolve(context.Background())
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	s.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("resolve did not stop after Close")
	}
	assert.ErrorIs(t, s.Context().Err(), context.Canceled)
}

func TestProposal_ResolveErrorNoRetry(t *testing.T) {
	r := &fakeResolver{resolve: func(context.Context, lsp.CompletionItem) (lsp.CompletionItem, error) {
		return lsp.CompletionItem{}, &lsp.RPCError{Code: lsp.CodeInternalError, Message: "boom"}
	}}
	s, _ := newSession(t, "fo", 2, newFeatures(t, true, false), WithResolver(r))
	p := proposal(s, lsp.CompletionItem{Label: "foo"})

	_, ok := p.Resolve(context.Background())
	assert.False(t, ok)
	_, ok = p.Resolve(context.Background())
	assert.False(t, ok)
	assert.Equal(t, 1, r.Calls())
}

func TestProposal_ResolveWithoutResolver(t *testing.T) {
	s, _ := newSession(t, "fo", 2, newFeatures(t, true, false))
	p := proposal(s, lsp.CompletionItem{Label: "foo"})

	_, ok := p.Resolve(context.Background())
	assert.False(t, ok)
}

func TestProposal_Documentation(t *testing.T) {
	r := &fakeResolver{resolve: withDetail("func()")}
	s, _ := newSession(t, "fo", 2, newFeatures(t, true, false), WithResolver(r))

	inline := proposal(s, lsp.CompletionItem{Label: "foo", Documentation: "plain docs"})
	doc, ok := inline.Documentation(context.Background())
	require.True(t, ok)
	assert.Equal(t, "plain docs", doc.Value)
	assert.Zero(t, r.Calls())

	lazyDoc := proposal(s, lsp.CompletionItem{Label: "bar"})
	got := make(chan lsp.MarkupContent, 1)
	lazyDoc.DocumentationAsync(context.Background(), func(doc lsp.MarkupContent, ok bool) {
		assert.True(t, ok)
		got <- doc
	})
	select {
	case doc := <-got:
		assert.Equal(t, lsp.MarkupKindMarkdown, doc.Kind)
		assert.Equal(t, "resolved docs", doc.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("documentation callback not called")
	}
}

func TestProposal_Detail(t *testing.T) {
	r := &fakeResolver{resolve: withDetail("resolved")}
	s, _ := newSession(t, "fo", 2, newFeatures(t, true, false), WithResolver(r))

	known := proposal(s, lsp.CompletionItem{Label: "foo", Detail: "string"})
	assert.False(t, known.NeedsDetailResolve())
	assert.Equal(t, "string", known.Detail(context.Background()))

	missing := proposal(s, lsp.CompletionItem{Label: "foo"})
	assert.True(t, missing.NeedsDetailResolve())
	assert.Equal(t, "resolved", missing.Detail(context.Background()))
	assert.False(t, missing.IsResolved(), "presentation reads do not swap the item")
}

func TestProposal_Presentation(t *testing.T) {
	s, _ := newSession(t, "x", 1, newFeatures(t, false, false))

	p := proposal(s, lsp.CompletionItem{
		Label:        "Println",
		FilterText:   "println",
		Detail:       "func(a ...any)",
		LabelDetails: &lsp.CompletionItemLabelDetails{Detail: "(a ...any)", Description: "fmt"},
		Tags:         []lsp.CompletionItemTag{lsp.CompletionItemTagDeprecated},
		TextEdit:     lsp.NewTextEditValue(rng(0, 0, 0, 1), "Println"),
	})
	assert.Equal(t, "Println", p.Label())
	assert.Equal(t, "println", p.FilterText())
	assert.Equal(t, []string{"println", "Println"}, p.LookupStrings())
	assert.Equal(t, "fmt", p.TypeText())
	assert.Equal(t, "(a ...any)", p.TailText())
	assert.Equal(t, "Println", p.SortText())
	assert.True(t, p.IsDeprecated())
	assert.False(t, p.IsKeyword())
	r, ok := p.EditRange()
	assert.True(t, ok)
	assert.Equal(t, rng(0, 0, 0, 1), r)

	kw := proposal(s, lsp.CompletionItem{Label: "func", Detail: "keyword", Kind: lsp.CompletionItemKindKeyword, SortText: "0"})
	assert.True(t, kw.IsKeyword())
	assert.Equal(t, "keyword", kw.TypeText())
	assert.Empty(t, kw.TailText())
	assert.Equal(t, []string{"func"}, kw.LookupStrings())
	assert.Equal(t, "0", kw.SortText())
	_, ok = kw.EditRange()
	assert.False(t, ok)
}

func TestProposal_ResolveErrorIsLoggedNotReturned(t *testing.T) {
	r := &fakeResolver{resolve: func(context.Context, lsp.CompletionItem) (lsp.CompletionItem, error) {
		return lsp.CompletionItem{}, errors.New("connection reset")
	}}
	s, _ := newSession(t, "fo", 2, newFeatures(t, true, false), WithResolver(r))
	p := proposal(s, lsp.CompletionItem{Label: "foo", Detail: "kept"})

	assert.Equal(t, "kept", p.Detail(context.Background()))
	_, ok := p.Documentation(context.Background())
	assert.False(t, ok)
}
