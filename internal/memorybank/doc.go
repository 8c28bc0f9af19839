// Package memorybank maintains the per-project memory bank inside a vault.
//
// A memory bank is a fixed graph of notes under <project root>/<slug>/:
// a Home hub, a MOC, a Run Log, a Decisions register and an Open Questions
// log, plus one immutable note per recorded run under Runs/. The Service
// resolves which vault backs a workspace, creates missing seed notes,
// records runs, appends index lines and periodically audits the graph.
//
// # Failure Semantics
//
// An unresolved vault aborts before any note I/O. A failure while creating
// seed notes or the run note aborts the workflow. Index appends made after
// the run note exists are best-effort: failures are logged and reported in
// RunResult but never undo the run note. Auto-audit failures are logged.
//
// # Auto-Audit
//
// Every recorded run bumps a counter per (workspace, project). When the
// counter is a multiple of the audit frequency an audit runs. A frequency
// of zero disables auto-audit.
package memorybank
