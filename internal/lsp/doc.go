// Package lsp holds the Language Server Protocol types and wire plumbing
// used by the completion client.
//
// The package is organized around these pieces:
//
//   - Protocol types for initialize, dynamic registration, completion,
//     resolve and executeCommand
//   - Transport, a JSON-RPC 2.0 connection with Content-Length framing that
//     also answers requests initiated by the server
//   - PositionConverter, translating UTF-16 LSP positions to byte offsets
//   - CompletionTextEdit, the TextEdit or InsertReplaceEdit union of an item
//
// Positions on the wire use UTF-16 code units; everything else in the module
// works in UTF-8 byte offsets:
//
//	pc := lsp.NewPositionConverter(content)
//	offset := pc.PositionToByteOffset(lsp.Position{Line: 3, Character: 7})
package lsp
