// Package session keeps per-client calculation histories in memory and in
// plain-text files, one file per session.
//
// Invariants:
// - Session ids are validated and path-safe.
// - Operations for the same session are serialized; distinct sessions do not
//   contend on file I/O.
// - After a successful Append or Clear, the session file matches the
//   in-memory history exactly.
// - History is stored oldest-first and returned newest-first.
//
// Usage:
//
//	files := session.NewFiles("/var/lib/pointlog/sessions", log.Logger)
//	_ = files.Bootstrap()
//	store := session.NewStore(files, log.Logger)
//	_ = store.Append(ctx, "abc", session.Record{X: 1, Y: 1, R: 2, InRegion: true})
//	history := store.History(ctx, "abc")
//	_ = history
package session
