package langserver

import (
	"context"
	"encoding/json"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/lspcomplete/internal/capability"
	"github.com/dshills/lspcomplete/internal/lsp"
)

// fakeServer is a language server built from the far end of a Transport.
type fakeServer struct {
	tr          *lsp.Transport
	initialized chan struct{}
	opened      chan lsp.DidOpenTextDocumentParams
	changed     chan lsp.DidChangeTextDocumentParams
	completions chan lsp.CompletionParams
	executed    chan lsp.ExecuteCommandParams
	resolves    atomic.Int32
}

const goURI = lsp.DocumentURI("file:///src/main.go")

var goDoc = capability.DocumentContext{URI: goURI, LanguageID: "go"}

func startPair(t *testing.T, caps lsp.ServerCapabilities) (*Server, *fakeServer) {
	t.Helper()
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()
	logger := zaptest.NewLogger(t).Sugar()

	fs := &fakeServer{
		tr:          lsp.NewTransport(serverR, serverW, serverW, lsp.WithTransportLogger(logger.Named("fake"))),
		initialized: make(chan struct{}),
		opened:      make(chan lsp.DidOpenTextDocumentParams, 1),
		changed:     make(chan lsp.DidChangeTextDocumentParams, 1),
		completions: make(chan lsp.CompletionParams, 1),
		executed:    make(chan lsp.ExecuteCommandParams, 1),
	}
	fs.tr.OnRequest("initialize", func(context.Context, json.RawMessage) (any, error) {
		return lsp.InitializeResult{
			Capabilities: caps,
			ServerInfo:   &lsp.InitializeServerInfo{Name: "fake", Version: "0.1"},
		}, nil
	})
	fs.tr.OnNotification("initialized", func(string, json.RawMessage) { close(fs.initialized) })
	fs.tr.OnNotification("textDocument/didOpen", func(_ string, params json.RawMessage) {
		var p lsp.DidOpenTextDocumentParams
		_ = json.Unmarshal(params, &p)
		fs.opened <- p
	})
	fs.tr.OnNotification("textDocument/didChange", func(_ string, params json.RawMessage) {
		var p lsp.DidChangeTextDocumentParams
		_ = json.Unmarshal(params, &p)
		fs.changed <- p
	})
	fs.tr.OnRequest("textDocument/completion", func(_ context.Context, params json.RawMessage) (any, error) {
		var p lsp.CompletionParams
		_ = json.Unmarshal(params, &p)
		fs.completions <- p
		return json.RawMessage(`[{"label":"Println","insertText":"Println"},{"label":"Printf"}]`), nil
	})
	fs.tr.OnRequest("completionItem/resolve", func(_ context.Context, params json.RawMessage) (any, error) {
		fs.resolves.Add(1)
		var item lsp.CompletionItem
		if err := json.Unmarshal(params, &item); err != nil {
			return nil, err
		}
		item.Detail = "func(a ...any)"
		return item, nil
	})
	fs.tr.OnRequest("workspace/executeCommand", func(_ context.Context, params json.RawMessage) (any, error) {
		var p lsp.ExecuteCommandParams
		_ = json.Unmarshal(params, &p)
		fs.executed <- p
		return nil, nil
	})
	fs.tr.OnRequest("shutdown", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	fs.tr.Start(context.Background())

	s := New(Config{Command: "fake", RootDir: "/src", RequestTimeout: 2 * time.Second}, WithLogger(logger))
	require.NoError(t, s.Attach(context.Background(), clientR, clientW, clientW))
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		_ = fs.tr.Close()
		_ = serverR.Close()
		_ = clientR.Close()
	})
	return s, fs
}

func wait[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	var zero T
	return zero
}

func completionCaps() lsp.ServerCapabilities {
	return lsp.ServerCapabilities{
		CompletionProvider: &lsp.CompletionOptions{ResolveProvider: true, TriggerCharacters: []string{"."}},
	}
}

func TestServer_Initialize(t *testing.T) {
	s, fs := startPair(t, completionCaps())

	wait(t, fs.initialized)
	assert.Equal(t, StatusReady, s.Status())
	assert.Equal(t, "fake", s.ServerInfo().Name)
	assert.True(t, s.Features().Completion().IsSupported(goDoc))
	assert.True(t, s.Features().Completion().IsResolveSupported(goDoc))
	assert.False(t, s.Features().SignatureHelp().IsSupported(goDoc))
}

func TestServer_AttachTwice(t *testing.T) {
	s, _ := startPair(t, completionCaps())
	r, w := io.Pipe()
	defer r.Close()
	assert.Error(t, s.Attach(context.Background(), r, w, w))
}

func TestServer_DynamicRegistration(t *testing.T) {
	s, fs := startPair(t, lsp.ServerCapabilities{})
	require.False(t, s.Features().Completion().IsSupported(goDoc))

	err := fs.tr.Call(context.Background(), "client/registerCapability", lsp.RegistrationParams{
		Registrations: []lsp.Registration{{
			ID:              "c1",
			Method:          capability.MethodCompletion,
			RegisterOptions: json.RawMessage(`{"documentSelector":[{"language":"go"}],"resolveProvider":true}`),
		}},
	}, nil)
	require.NoError(t, err)

	assert.True(t, s.Features().Completion().IsSupported(goDoc))
	assert.True(t, s.Features().Completion().IsResolveSupported(goDoc))
	assert.False(t, s.Features().Completion().IsSupported(capability.DocumentContext{URI: "file:///a.py", LanguageID: "python"}))

	err = fs.tr.Call(context.Background(), "client/unregisterCapability", lsp.UnregistrationParams{
		Unregistrations: []lsp.Unregistration{{ID: "c1", Method: capability.MethodCompletion}},
	}, nil)
	require.NoError(t, err)
	assert.False(t, s.Features().Completion().IsSupported(goDoc))
}

func TestServer_RegistrationIgnoresUnknownMethods(t *testing.T) {
	_, fs := startPair(t, lsp.ServerCapabilities{})

	err := fs.tr.Call(context.Background(), "client/registerCapability", lsp.RegistrationParams{
		Registrations: []lsp.Registration{{ID: "w1", Method: "workspace/didChangeWatchedFiles"}},
	}, nil)
	assert.NoError(t, err)
}

func TestServer_DidOpenAndCompletion(t *testing.T) {
	s, fs := startPair(t, completionCaps())

	require.NoError(t, s.DidOpen(context.Background(), lsp.TextDocumentItem{URI: goURI, LanguageID: "go", Version: 1, Text: "fmt."}))
	opened := wait(t, fs.opened)
	assert.Equal(t, goURI, opened.TextDocument.URI)

	list, err := s.Completion(context.Background(), goDoc, lsp.Position{Line: 0, Character: 4}, ".")
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "Println", list.Items[0].Label)

	params := wait(t, fs.completions)
	require.NotNil(t, params.Context)
	assert.Equal(t, lsp.CompletionTriggerKindTriggerCharacter, params.Context.TriggerKind)
	assert.Equal(t, ".", params.Context.TriggerCharacter)
	assert.Equal(t, 4, params.Position.Character)
}

func TestServer_DidChangeSendsFullText(t *testing.T) {
	s, fs := startPair(t, completionCaps())

	require.NoError(t, s.DidChange(context.Background(), lsp.TextDocumentItem{URI: goURI, Version: 3, Text: "fmt.P"}))
	got := wait(t, fs.changed)
	assert.Equal(t, 3, got.TextDocument.Version)
	require.Len(t, got.ContentChanges, 1)
	assert.Equal(t, "fmt.P", got.ContentChanges[0].Text)
}

func TestServer_CompletionInvokedForNonTrigger(t *testing.T) {
	s, fs := startPair(t, completionCaps())

	_, err := s.Completion(context.Background(), goDoc, lsp.Position{}, "x")
	require.NoError(t, err)
	params := wait(t, fs.completions)
	assert.Equal(t, lsp.CompletionTriggerKindInvoked, params.Context.TriggerKind)
	assert.Empty(t, params.Context.TriggerCharacter)
}

func TestServer_CompletionUnsupported(t *testing.T) {
	s, _ := startPair(t, lsp.ServerCapabilities{})

	_, err := s.Completion(context.Background(), goDoc, lsp.Position{}, "")
	assert.ErrorIs(t, err, lsp.ErrNotSupported)
}

func TestServer_ResolveCompletionItem(t *testing.T) {
	s, fs := startPair(t, completionCaps())

	item, err := s.ResolveCompletionItem(context.Background(), lsp.CompletionItem{Label: "Println"})
	require.NoError(t, err)
	assert.Equal(t, "Println", item.Label)
	assert.Equal(t, "func(a ...any)", item.Detail)
	assert.EqualValues(t, 1, fs.resolves.Load())
}

func TestServer_ExecuteCommand(t *testing.T) {
	caps := completionCaps()
	caps.ExecuteCommandProvider = &lsp.ExecuteCommandOptions{Commands: []string{"gopls.add_import"}}
	s, fs := startPair(t, caps)

	require.NoError(t, s.ExecuteCommand(context.Background(), lsp.Command{Command: "gopls.add_import", Arguments: []any{"fmt"}}))
	got := wait(t, fs.executed)
	assert.Equal(t, "gopls.add_import", got.Command)
	assert.Equal(t, []any{"fmt"}, got.Arguments)
}

func TestServer_ExecuteClientCommand(t *testing.T) {
	s, _ := startPair(t, completionCaps())

	var ran lsp.Command
	s.OnClientCommand("editor.action.triggerParameterHints", func(_ context.Context, cmd lsp.Command) error {
		ran = cmd
		return nil
	})

	require.NoError(t, s.ExecuteCommand(context.Background(), lsp.Command{Command: "editor.action.triggerParameterHints"}))
	assert.Equal(t, "editor.action.triggerParameterHints", ran.Command)

	err := s.ExecuteCommand(context.Background(), lsp.Command{Command: "unknown.command"})
	assert.ErrorIs(t, err, lsp.ErrNotSupported)
}

func TestServer_Shutdown(t *testing.T) {
	s, _ := startPair(t, completionCaps())

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, StatusStopped, s.Status())
	assert.False(t, s.Features().Completion().IsSupported(goDoc))

	_, err := s.ResolveCompletionItem(context.Background(), lsp.CompletionItem{Label: "x"})
	assert.ErrorIs(t, err, lsp.ErrNotStarted)
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestServer_StartRequiresCommand(t *testing.T) {
	s := New(Config{}, WithLogger(zaptest.NewLogger(t).Sugar()))
	err := s.Start(context.Background())
	assert.ErrorIs(t, err, lsp.ErrNotStarted)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "ready", StatusReady.String())
	assert.Equal(t, "unknown", Status(42).String())
}
