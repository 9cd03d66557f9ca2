// Package completion turns the items a language server returns for a
// textDocument/completion request into edits on a document.
//
// A Session captures one completion invocation: the document, the trigger
// offset and the capabilities the server advertised at that moment. Each item
// of the response is wrapped in a Proposal. A Proposal resolves its item
// lazily, works out which part of the document the user already typed and
// finally applies the item as a primary edit plus any additional edits, hands
// snippets to a template engine and runs the item's command.
//
// Offsets are UTF-8 byte offsets into the document text. Conversion to LSP
// positions goes through the Document.
package completion
