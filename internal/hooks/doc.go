// Package hooks turns event payloads from AI coding assistants into run
// records for the memory bank.
//
// Each assistant speaks its own JSON schema. An Extractor per source reads
// the event kind, prompt, summary, workspace and turn id from its schema
// using ordered fallback chains, since none of the payloads carry a stable
// contract. The Handler drives one event end to end: parse, unwrap, verify
// the signature for webhook-delivered sources, filter irrelevant events,
// build the canonical Record and hand it to the memory bank.
//
// Hook-side failures never propagate to the calling assistant: Handle
// reports them in its Result and the CLI always exits zero.
//
// Supported sources: codex, claude, cursor and antigravity.
package hooks
