// Package secrets redacts credentials from captured agent text before it is
// written to the vault.
//
// Prompts and assistant summaries routinely quote environment files, shell
// history and HTTP headers. The scrubber applies a fixed rule set of
// regular expressions and replaces every match with a redaction marker.
// Findings never carry the matched value.
package secrets
