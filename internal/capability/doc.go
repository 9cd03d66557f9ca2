// Package capability tracks what a language server can do for completion.
//
// Static capabilities arrive with the initialize result; dynamic ones arrive
// later through client/registerCapability. Both are published as immutable
// snapshots behind atomic pointers, so gating calls never lock and never
// observe a half-updated value. A feature with no snapshot yet reports
// itself as unsupported.
//
// Features is the per-server registry that fans capability changes out to
// every registered Feature exactly once.
package capability
