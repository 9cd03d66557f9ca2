// Package snippet parses LSP snippet syntax into a Template: the literal text
// to write into the document plus the tab stops an interactive template
// session walks through.
//
// Supported syntax:
//
//	$1  ${1}  ${1:default}  ${1|one,two|}  $0
//	$VAR  ${VAR}  ${VAR:default}  ${VAR/regex/format/flags}
//
// Placeholders nest. Within text, \$ \} and \\ are escapes; within choices
// \, and \| are too. Syntax that does not parse is kept as literal text.
package snippet
