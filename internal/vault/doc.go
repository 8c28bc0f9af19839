// Package vault drives the external note program (the obsidian CLI) that
// owns a vault.
//
// Every operation is a single process invocation of the form
//
//	<program> <command> key=value ...
//
// run with the vault directory as working directory. The Executor adds the
// guarantees callers rely on: note paths stay inside the vault, EnsureNote
// never overwrites an existing note, and textual failure output is turned
// into an error even when the program exits zero.
//
// Process execution sits behind the Runner interface. Tests use the
// filesystem-backed fake in package vaulttest.
package vault
