// Package lazy provides memoized values: Value computes once on first read,
// Future starts an asynchronous computation once and lets any number of
// callers wait on it with their own context.
package lazy
