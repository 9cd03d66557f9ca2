package langserver

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/dshills/lspcomplete/internal/capability"
	"github.com/dshills/lspcomplete/internal/lsp"
)

// Status is the lifecycle state of a Server.
type Status int32

const (
	StatusStopped Status = iota
	StatusStarting
	StatusInitializing
	StatusReady
	StatusShuttingDown
	StatusError
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusInitializing:
		return "initializing"
	case StatusReady:
		return "ready"
	case StatusShuttingDown:
		return "shutting down"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Config defines how to start and talk to a language server.
type Config struct {
	Command string
	Args    []string
	Env     map[string]string

	// RootDir is the workspace root and the process working directory.
	RootDir string

	InitializationOptions any

	InitializeTimeout time.Duration
	RequestTimeout    time.Duration
}

// ClientCommand runs a command the server does not execute itself.
type ClientCommand func(ctx context.Context, cmd lsp.Command) error

// Server is a connection to a single language server.
type Server struct {
	mu sync.Mutex

	config   Config
	logger   *zap.SugaredLogger
	features *capability.Features

	cmd       *exec.Cmd
	transport *lsp.Transport

	status       atomic.Int32
	capabilities atomic.Pointer[lsp.ServerCapabilities]
	serverInfo   *lsp.InitializeServerInfo

	commandsMu     sync.RWMutex
	clientCommands map[string]ClientCommand

	ctx    context.Context
	cancel context.CancelFunc
	exitCh chan error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFeatures records capabilities into fs instead of a private set.
func WithFeatures(fs *capability.Features) Option {
	return func(s *Server) {
		if fs != nil {
			s.features = fs
		}
	}
}

// New creates a server that is not yet started.
func New(config Config, opts ...Option) *Server {
	if config.InitializeTimeout <= 0 {
		config.InitializeTimeout = 30 * time.Second
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	s := &Server{
		config:         config,
		logger:         zap.NewNop().Sugar(),
		clientCommands: make(map[string]ClientCommand),
		exitCh:         make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.features == nil {
		s.features = capability.NewFeatures(s.logger)
	}
	s.logger = s.logger.With("server", config.Command)
	return s
}

// Features returns the capabilities the server announced.
func (s *Server) Features() *capability.Features { return s.features }

// Status returns the current server status.
func (s *Server) Status() Status { return Status(s.status.Load()) }

// Capabilities returns the static capabilities from initialize, or nil.
func (s *Server) Capabilities() *lsp.ServerCapabilities { return s.capabilities.Load() }

// ServerInfo returns the name and version the server reported.
func (s *Server) ServerInfo() *lsp.InitializeServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

// Exited receives the process exit status.
func (s *Server) Exited() <-chan error { return s.exitCh }

// OnClientCommand registers a handler for commands the server does not list
// in executeCommandProvider.
func (s *Server) OnClientCommand(name string, fn ClientCommand) {
	s.commandsMu.Lock()
	defer s.commandsMu.Unlock()
	s.clientCommands[name] = fn
}

// Start launches the server process and performs the initialize handshake.
func (s *Server) Start(ctx context.Context) error {
	if s.Status() != StatusStopped {
		return errors.New("server already started")
	}
	if s.config.Command == "" {
		return errors.Wrap(lsp.ErrNotStarted, "no server command configured")
	}
	s.status.Store(int32(StatusStarting))

	cmd := exec.CommandContext(ctx, s.config.Command, s.config.Args...)
	cmd.Env = os.Environ()
	for k, v := range s.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Dir = s.config.RootDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return s.fail(errors.Wrap(err, "stdin pipe"))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return s.fail(errors.Wrap(err, "stdout pipe"))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return s.fail(errors.Wrap(err, "stderr pipe"))
	}
	if err := cmd.Start(); err != nil {
		return s.fail(errors.Wrapf(err, "start %s", s.config.Command))
	}
	s.cmd = cmd

	go s.drainStderr(stderr)
	go func() {
		err := cmd.Wait()
		select {
		case s.exitCh <- err:
		default:
		}
	}()

	return s.attach(ctx, stdout, stdin, stdin)
}

// Attach runs the initialize handshake over an existing connection.
func (s *Server) Attach(ctx context.Context, r io.Reader, w io.Writer, c io.Closer) error {
	if s.Status() != StatusStopped {
		return errors.New("server already started")
	}
	s.status.Store(int32(StatusStarting))
	return s.attach(ctx, r, w, c)
}

func (s *Server) attach(ctx context.Context, r io.Reader, w io.Writer, c io.Closer) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.transport = lsp.NewTransport(r, w, c, lsp.WithTransportLogger(s.logger))
	s.registerHandlers()
	s.transport.Start(s.ctx)

	s.status.Store(int32(StatusInitializing))
	if err := s.initialize(s.ctx); err != nil {
		s.stop()
		return s.fail(errors.Wrap(err, "initialize"))
	}
	s.status.Store(int32(StatusReady))
	return nil
}

func (s *Server) fail(err error) error {
	s.status.Store(int32(StatusError))
	return &lsp.ServerError{LanguageID: s.config.Command, Err: err}
}

func (s *Server) drainStderr(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.logger.Debugw("server stderr", "output", string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) initialize(ctx context.Context) error {
	params := lsp.InitializeParams{
		ProcessID:             os.Getpid(),
		Capabilities:          lsp.DefaultClientCapabilities(),
		InitializationOptions: s.config.InitializationOptions,
	}
	if s.config.RootDir != "" {
		params.RootURI = lsp.FilePathToURI(s.config.RootDir)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.InitializeTimeout)
	defer cancel()

	var result lsp.InitializeResult
	if err := s.transport.Call(ctx, "initialize", params, &result); err != nil {
		return errors.Wrap(err, "initialize request")
	}

	s.capabilities.Store(&result.Capabilities)
	s.mu.Lock()
	s.serverInfo = result.ServerInfo
	s.mu.Unlock()
	s.features.SetServerCapabilities(&result.Capabilities)

	if result.ServerInfo != nil {
		s.logger.Infow("language server initialized", "name", result.ServerInfo.Name, "version", result.ServerInfo.Version)
	}
	return s.transport.Notify(ctx, "initialized", lsp.InitializedParams{})
}

func (s *Server) registerHandlers() {
	s.transport.OnRequest("client/registerCapability", func(_ context.Context, params json.RawMessage) (any, error) {
		var p lsp.RegistrationParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &lsp.RPCError{Code: lsp.CodeInvalidParams, Message: err.Error()}
		}
		for _, reg := range p.Registrations {
			if err := s.features.Register(reg); err != nil {
				s.logger.Warnw("dynamic registration rejected", "method", reg.Method, "id", reg.ID, "error", err)
			}
		}
		return nil, nil
	})

	s.transport.OnRequest("client/unregisterCapability", func(_ context.Context, params json.RawMessage) (any, error) {
		var p lsp.UnregistrationParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &lsp.RPCError{Code: lsp.CodeInvalidParams, Message: err.Error()}
		}
		for _, u := range p.Unregistrations {
			s.features.Unregister(u)
		}
		return nil, nil
	})

	s.transport.OnRequest("window/workDoneProgress/create", func(context.Context, json.RawMessage) (any, error) {
		return nil, nil
	})

	s.transport.OnNotification("window/logMessage", func(_ string, params json.RawMessage) {
		var msg struct {
			Type    int    `json:"type"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(params, &msg); err == nil {
			s.logger.Debugw("server log", "type", msg.Type, "message", msg.Message)
		}
	})
}

func (s *Server) ready() error {
	if s.Status() != StatusReady {
		return lsp.ErrNotStarted
	}
	return nil
}

// DidOpen sends textDocument/didOpen.
func (s *Server) DidOpen(ctx context.Context, item lsp.TextDocumentItem) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.transport.Notify(ctx, "textDocument/didOpen", lsp.DidOpenTextDocumentParams{TextDocument: item})
}

// DidChange sends the full text of item as textDocument/didChange.
func (s *Server) DidChange(ctx context.Context, item lsp.TextDocumentItem) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.transport.Notify(ctx, "textDocument/didChange", lsp.DidChangeTextDocumentParams{
		TextDocument:   lsp.VersionedTextDocumentIdentifier{URI: item.URI, Version: item.Version},
		ContentChanges: []lsp.TextDocumentContentChangeEvent{{Text: item.Text}},
	})
}

// Completion requests completion items at pos. A non-empty trigger is sent
// as the trigger character when the server registered it.
func (s *Server) Completion(ctx context.Context, doc capability.DocumentContext, pos lsp.Position, trigger string) (*lsp.CompletionList, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !s.features.Completion().IsSupported(doc) {
		return nil, errors.Wrapf(lsp.ErrNotSupported, "completion for %s", doc.URI)
	}

	cc := &lsp.CompletionContext{TriggerKind: lsp.CompletionTriggerKindInvoked}
	if trigger != "" && s.features.Completion().IsTriggerCharacter(doc, trigger) {
		cc = &lsp.CompletionContext{TriggerKind: lsp.CompletionTriggerKindTriggerCharacter, TriggerCharacter: trigger}
	}
	params := lsp.CompletionParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: doc.URI},
			Position:     pos,
		},
		Context: cc,
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	var raw json.RawMessage
	if err := s.transport.Call(ctx, "textDocument/completion", params, &raw); err != nil {
		return nil, err
	}
	return lsp.ParseCompletionResult(raw)
}

// ResolveCompletionItem sends completionItem/resolve.
func (s *Server) ResolveCompletionItem(ctx context.Context, item lsp.CompletionItem) (lsp.CompletionItem, error) {
	if err := s.ready(); err != nil {
		return lsp.CompletionItem{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	var resolved lsp.CompletionItem
	if err := s.transport.Call(ctx, "completionItem/resolve", item, &resolved); err != nil {
		return lsp.CompletionItem{}, err
	}
	return resolved, nil
}

// ExecuteCommand runs cmd on the server when it advertises the command, and
// otherwise through a registered client command.
func (s *Server) ExecuteCommand(ctx context.Context, cmd lsp.Command) error {
	if caps := s.Capabilities(); caps != nil && caps.ExecuteCommandProvider != nil &&
		slices.Contains(caps.ExecuteCommandProvider.Commands, cmd.Command) {
		if err := s.ready(); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
		params := lsp.ExecuteCommandParams{Command: cmd.Command, Arguments: cmd.Arguments}
		return s.transport.Call(ctx, "workspace/executeCommand", params, nil)
	}

	s.commandsMu.RLock()
	fn, ok := s.clientCommands[cmd.Command]
	s.commandsMu.RUnlock()
	if !ok {
		return errors.Wrapf(lsp.ErrNotSupported, "command %q", cmd.Command)
	}
	return fn(ctx, cmd)
}

// Shutdown sends shutdown and exit, then stops the connection.
func (s *Server) Shutdown(ctx context.Context) error {
	switch s.Status() {
	case StatusStopped, StatusShuttingDown:
		return nil
	}
	s.status.Store(int32(StatusShuttingDown))

	var err error
	if s.transport != nil && !s.transport.IsClosed() {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err = s.transport.Call(ctx, "shutdown", nil, nil)
		if nerr := s.transport.Notify(ctx, "exit", nil); err == nil && !errors.Is(nerr, lsp.ErrShutdown) {
			err = nerr
		}
	}
	s.stop()
	s.features.Dispose()
	s.status.Store(int32(StatusStopped))
	return err
}

func (s *Server) stop() {
	if s.transport != nil {
		_ = s.transport.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}
