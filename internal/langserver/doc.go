// Package langserver connects to a language server over JSON-RPC and exposes
// the requests completion needs: initialize, dynamic capability
// registration, textDocument/completion, completionItem/resolve and
// workspace/executeCommand.
//
// Capabilities announced by the server, statically or through
// client/registerCapability, are recorded in a capability.Features.
package langserver
