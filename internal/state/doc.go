// Package state persists membank's durable settings: which vault backs each
// workspace, the default vault, per-project run counters and the audit
// frequency.
//
// The state document is a small JSON file. A Store is opened once per
// invocation and closed on exit. Every mutation reloads the document from
// disk, applies the change and writes it back through a temp file and
// rename, so the on-disk file is never partially written. Concurrent
// processes get last-writer-wins semantics.
//
// Vault resolution walks the workspace and its ancestors and returns the
// first binding found, so the deepest binding wins:
//
//	/a   -> V1
//	/a/b -> V2
//
//	ResolveVault("/a/b/c") == V2
//	ResolveVault("/a/x")   == V1
package state
