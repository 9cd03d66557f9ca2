package capability

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/dshills/lspcomplete/internal/lsp"
)

// Feature is a client-side feature that tracks server capabilities.
type Feature interface {
	ID() string
	OnCapabilitiesChanged(caps *lsp.ServerCapabilities)
	Dispose()
}

// Registrar is implemented by features that accept dynamic registration.
type Registrar interface {
	Register(id string, options json.RawMessage) error
	Unregister(id string) bool
}

// Features is the per-server feature registry.
type Features struct {
	mu       sync.RWMutex
	features map[string]Feature
	logger   *zap.SugaredLogger

	completion    *CompletionFeature
	signatureHelp *SignatureHelpFeature
}

// NewFeatures returns a registry holding the completion and signature help
// features.
func NewFeatures(logger *zap.SugaredLogger) *Features {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	fs := &Features{
		features:      make(map[string]Feature),
		logger:        logger,
		completion:    NewCompletionFeature(),
		signatureHelp: NewSignatureHelpFeature(),
	}
	fs.features[fs.completion.ID()] = fs.completion
	fs.features[fs.signatureHelp.ID()] = fs.signatureHelp
	return fs
}

// Completion returns the completion feature.
func (fs *Features) Completion() *CompletionFeature { return fs.completion }

// SignatureHelp returns the signature help feature.
func (fs *Features) SignatureHelp() *SignatureHelpFeature { return fs.signatureHelp }

// Add registers an additional feature, replacing any with the same id.
func (fs *Features) Add(f Feature) {
	fs.mu.Lock()
	fs.features[f.ID()] = f
	fs.mu.Unlock()
}

// Get returns the feature registered under id.
func (fs *Features) Get(id string) (Feature, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	f, ok := fs.features[id]
	return f, ok
}

// snapshot returns the registered features in id order.
func (fs *Features) snapshot() []Feature {
	fs.mu.RLock()
	out := make([]Feature, 0, len(fs.features))
	for _, f := range fs.features {
		out = append(out, f)
	}
	fs.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// SetServerCapabilities notifies every feature once of new capabilities.
func (fs *Features) SetServerCapabilities(caps *lsp.ServerCapabilities) {
	for _, f := range fs.snapshot() {
		f.OnCapabilitiesChanged(caps)
	}
	fs.logger.Debugw("server capabilities updated",
		"completion", fs.completion.IsSupported(DocumentContext{}),
		"signatureHelp", fs.signatureHelp.IsSupported(DocumentContext{}))
}

// Dispose disposes every feature once.
func (fs *Features) Dispose() {
	for _, f := range fs.snapshot() {
		f.Dispose()
	}
}

// Register applies a client/registerCapability entry. Methods this client
// does not track are ignored.
func (fs *Features) Register(reg lsp.Registration) error {
	f, ok := fs.Get(reg.Method)
	if !ok {
		fs.logger.Debugw("ignoring registration", "method", reg.Method, "id", reg.ID)
		return nil
	}
	r, ok := f.(Registrar)
	if !ok {
		return errors.Wrapf(lsp.ErrNotSupported, "dynamic registration of %s", reg.Method)
	}
	if err := r.Register(reg.ID, reg.RegisterOptions); err != nil {
		return err
	}
	fs.logger.Debugw("capability registered", "method", reg.Method, "id", reg.ID)
	return nil
}

// Unregister applies a client/unregisterCapability entry.
func (fs *Features) Unregister(u lsp.Unregistration) {
	f, ok := fs.Get(u.Method)
	if !ok {
		return
	}
	if r, ok := f.(Registrar); ok && r.Unregister(u.ID) {
		fs.logger.Debugw("capability unregistered", "method", u.Method, "id", u.ID)
	}
}
