package capability

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"

	"github.com/dshills/lspcomplete/internal/lsp"
)

// MethodSignatureHelp is the LSP method, and the feature id, of signature help.
const MethodSignatureHelp = "textDocument/signatureHelp"

// SignatureHelpCapability is an immutable snapshot of signature help support.
type SignatureHelpCapability struct {
	Supported           bool
	TriggerCharacters   map[string]struct{}
	RetriggerCharacters map[string]struct{}
}

// SignatureHelpFeature answers whether parameter hints are available.
type SignatureHelpFeature struct {
	reg registry[SignatureHelpCapability]
}

// NewSignatureHelpFeature returns a feature with no capabilities yet.
func NewSignatureHelpFeature() *SignatureHelpFeature {
	return &SignatureHelpFeature{}
}

// ID implements Feature.
func (f *SignatureHelpFeature) ID() string { return MethodSignatureHelp }

// OnCapabilitiesChanged implements Feature.
func (f *SignatureHelpFeature) OnCapabilitiesChanged(caps *lsp.ServerCapabilities) {
	if caps == nil {
		f.reg.setStatic(nil)
		return
	}
	c := &SignatureHelpCapability{}
	if p := caps.SignatureHelpProvider; p != nil {
		c.Supported = true
		c.TriggerCharacters = stringSet(p.TriggerCharacters)
		c.RetriggerCharacters = stringSet(p.RetriggerCharacters)
	}
	f.reg.setStatic(c)
}

// Dispose implements Feature.
func (f *SignatureHelpFeature) Dispose() {
	f.reg.setStatic(nil)
}

// IsSupported reports whether the server offers signature help for doc.
func (f *SignatureHelpFeature) IsSupported(doc DocumentContext) bool {
	return f.reg.supported(doc, func(c *SignatureHelpCapability) bool { return c.Supported }, nil)
}

// IsTriggerCharacter reports whether typing ch should request signature help.
func (f *SignatureHelpFeature) IsTriggerCharacter(doc DocumentContext, ch string) bool {
	match := func(c *SignatureHelpCapability) bool {
		_, ok := c.TriggerCharacters[ch]
		return ok
	}
	return f.reg.supported(doc, match, match)
}

// Register adds a dynamic signature help registration.
func (f *SignatureHelpFeature) Register(id string, options json.RawMessage) error {
	if len(options) > 0 && !gjson.ValidBytes(options) {
		return errors.Wrapf(lsp.ErrInvalidResponse, "signature help registration %s", id)
	}
	opts := gjson.ParseBytes(options)
	c := &SignatureHelpCapability{
		Supported:           true,
		TriggerCharacters:   stringSet(stringList(opts.Get("triggerCharacters"))),
		RetriggerCharacters: stringSet(stringList(opts.Get("retriggerCharacters"))),
	}
	f.reg.add(id, parseSelector(opts), c)
	return nil
}

// Unregister removes a dynamic registration; it reports whether id existed.
func (f *SignatureHelpFeature) Unregister(id string) bool {
	return f.reg.remove(id)
}
