package capability

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"

	"github.com/dshills/lspcomplete/internal/lsp"
)

// MethodCompletion is the LSP method, and the feature id, of completion.
const MethodCompletion = "textDocument/completion"

// CompletionCapability is an immutable snapshot of a server's completion
// support.
type CompletionCapability struct {
	Supported           bool
	ResolveSupported    bool
	TriggerCharacters   map[string]struct{}
	AllCommitCharacters []string
}

// NewCompletionCapability builds a snapshot from the completionProvider
// server capability. A nil provider means completion is unsupported.
func NewCompletionCapability(opts *lsp.CompletionOptions) *CompletionCapability {
	if opts == nil {
		return &CompletionCapability{TriggerCharacters: map[string]struct{}{}}
	}
	return &CompletionCapability{
		Supported:           true,
		ResolveSupported:    opts.ResolveProvider,
		TriggerCharacters:   stringSet(opts.TriggerCharacters),
		AllCommitCharacters: append([]string(nil), opts.AllCommitCharacters...),
	}
}

// IsTriggerCharacter reports whether ch is one of the trigger characters.
func (c *CompletionCapability) IsTriggerCharacter(ch string) bool {
	_, ok := c.TriggerCharacters[ch]
	return ok
}

// CompletionFeature answers completion gating questions.
type CompletionFeature struct {
	reg registry[CompletionCapability]
}

// NewCompletionFeature returns a feature with no capabilities yet.
func NewCompletionFeature() *CompletionFeature {
	return &CompletionFeature{}
}

// ID implements Feature.
func (f *CompletionFeature) ID() string { return MethodCompletion }

// OnCapabilitiesChanged implements Feature.
func (f *CompletionFeature) OnCapabilitiesChanged(caps *lsp.ServerCapabilities) {
	if caps == nil {
		f.reg.setStatic(nil)
		return
	}
	f.reg.setStatic(NewCompletionCapability(caps.CompletionProvider))
}

// Dispose implements Feature.
func (f *CompletionFeature) Dispose() {
	f.reg.setStatic(nil)
}

// Snapshot returns the static capability snapshot, or nil.
func (f *CompletionFeature) Snapshot() *CompletionCapability {
	return f.reg.static.Load()
}

// IsSupported reports whether the server offers completion for doc.
func (f *CompletionFeature) IsSupported(doc DocumentContext) bool {
	return f.reg.supported(doc, func(c *CompletionCapability) bool { return c.Supported }, nil)
}

// IsResolveSupported reports whether completionItem/resolve may be sent.
func (f *CompletionFeature) IsResolveSupported(doc DocumentContext) bool {
	return f.reg.supported(doc,
		func(c *CompletionCapability) bool { return c.ResolveSupported },
		func(c *CompletionCapability) bool { return c.ResolveSupported })
}

// IsTriggerCharacter reports whether typing ch should open completion.
func (f *CompletionFeature) IsTriggerCharacter(doc DocumentContext, ch string) bool {
	match := func(c *CompletionCapability) bool { return c.IsTriggerCharacter(ch) }
	return f.reg.supported(doc, match, match)
}

// Register adds a dynamic completion registration.
func (f *CompletionFeature) Register(id string, options json.RawMessage) error {
	if len(options) > 0 && !gjson.ValidBytes(options) {
		return errors.Wrapf(lsp.ErrInvalidResponse, "completion registration %s", id)
	}
	opts := gjson.ParseBytes(options)
	c := &CompletionCapability{
		Supported:           true,
		ResolveSupported:    opts.Get("resolveProvider").Bool(),
		TriggerCharacters:   stringSet(stringList(opts.Get("triggerCharacters"))),
		AllCommitCharacters: stringList(opts.Get("allCommitCharacters")),
	}
	f.reg.add(id, parseSelector(opts), c)
	return nil
}

// Unregister removes a dynamic registration; it reports whether id existed.
func (f *CompletionFeature) Unregister(id string) bool {
	return f.reg.remove(id)
}
