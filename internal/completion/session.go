package completion

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/lspcomplete/internal/capability"
	"github.com/dshills/lspcomplete/internal/lazy"
	"github.com/dshills/lspcomplete/internal/lsp"
)

// Session is a single completion invocation at Offset in a document.
type Session struct {
	ID         string
	Path       string
	URI        lsp.DocumentURI
	LanguageID string
	Offset     int

	doc       Document
	editor    Editor
	resolver  Resolver
	commands  CommandExecutor
	templates TemplateEngine
	hints     SignatureHelpTrigger
	features  *capability.Features
	policy    Policy
	logger    *zap.SugaredLogger

	resolveTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	signatureHelp *lazy.Value[bool]
	resolve       *lazy.Value[bool]
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithResolver sets the client used for completionItem/resolve.
func WithResolver(r Resolver) SessionOption {
	return func(s *Session) { s.resolver = r }
}

// WithCommandExecutor sets who runs item commands.
func WithCommandExecutor(c CommandExecutor) SessionOption {
	return func(s *Session) { s.commands = c }
}

// WithTemplateEngine sets the engine snippets are handed to.
func WithTemplateEngine(t TemplateEngine) SessionOption {
	return func(s *Session) { s.templates = t }
}

// WithSignatureHelpTrigger sets who opens parameter hints after insertion.
func WithSignatureHelpTrigger(h SignatureHelpTrigger) SessionOption {
	return func(s *Session) { s.hints = h }
}

// WithPolicy overrides DefaultPolicy.
func WithPolicy(p Policy) SessionOption {
	return func(s *Session) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithResolveTimeout bounds each wait for completionItem/resolve. Zero means
// no bound.
func WithResolveTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.resolveTimeout = d }
}

// WithLogger sets the logger. The session id is added as a field.
func WithLogger(logger *zap.SugaredLogger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLanguageID overrides the language detected from the path.
func WithLanguageID(id string) SessionOption {
	return func(s *Session) { s.LanguageID = id }
}

// WithSessionID overrides the generated id.
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.ID = id }
}

// NewSession starts a completion invocation at offset. The returned session
// must be closed once its proposals are no longer needed.
func NewSession(ctx context.Context, path string, offset int, doc Document, editor Editor, features *capability.Features, opts ...SessionOption) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		Path:       path,
		URI:        lsp.FilePathToURI(path),
		LanguageID: lsp.DetectLanguageID(path),
		Offset:     offset,
		doc:        doc,
		editor:     editor,
		features:   features,
		policy:     DefaultPolicy{},
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.ID)
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.signatureHelp = lazy.NewValue(func() bool {
		return s.features != nil && s.features.SignatureHelp().IsSupported(s.documentContext())
	})
	s.resolve = lazy.NewValue(func() bool {
		return s.features != nil && s.features.Completion().IsResolveSupported(s.documentContext())
	})
	return s
}

func (s *Session) documentContext() capability.DocumentContext {
	return capability.DocumentContext{URI: s.URI, LanguageID: s.LanguageID}
}

// IsSignatureHelpSupported reports whether the server offered signature help
// for this document when the session first asked.
func (s *Session) IsSignatureHelpSupported() bool {
	return s.signatureHelp.Get()
}

// IsResolveSupported reports whether the server offered completionItem/resolve
// for this document when the session first asked.
func (s *Session) IsResolveSupported() bool {
	return s.resolve.Get()
}

// Context is cancelled by Close.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close cancels resolve requests still in flight.
func (s *Session) Close() {
	s.cancel()
}

// Policy returns the session policy.
func (s *Session) Policy() Policy {
	return s.policy
}

// Proposals wraps items for presentation and insertion. Items with a blank
// label are dropped.
func (s *Session) Proposals(items []lsp.CompletionItem) []*Proposal {
	out := make([]*Proposal, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Label) == "" {
			continue
		}
		out = append(out, newProposal(s, item))
	}
	if s.policy.UseContextAwareSorting() && len(out) > 1 {
		cmp := NewComparator(s.typedPrefix(), s.currentWord(), s.policy.CaseSensitive())
		sort.SliceStable(out, func(i, j int) bool {
			return cmp.Compare(out[i].Item(), out[j].Item()) < 0
		})
	}
	return out
}

// typedPrefix is the identifier run ending at the trigger offset.
func (s *Session) typedPrefix() string {
	text := s.doc.Text()
	offset := clamp(s.Offset, 0, len(text))
	start, ok := WordStart(text, offset)
	if !ok {
		return ""
	}
	return text[start:offset]
}

// currentWord is the whole identifier the trigger offset sits in.
func (s *Session) currentWord() string {
	text := s.doc.Text()
	offset := clamp(s.Offset, 0, len(text))
	start, _ := WordStart(text, offset)
	return text[start:WordEnd(text, offset)]
}
