// Package logging provides structured logging for membank.
//
// # Overview
//
// Logging wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Output to stderr (stdout carries command results)
//   - Automatic context field injection (trace_id, workspace, project, hook source, turn)
//   - Encoder-level secret redaction
//
// # Usage
//
//	cfg, err := logging.FromConfig(appCfg.Logging)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx = logging.WithWorkspace(ctx, "/home/me/proj")
//	ctx = logging.WithHookSource(ctx, "codex")
//	logger.Info(ctx, "run recorded", zap.String("note", notePath))
//
// Output includes the correlation fields:
//
//	{"level":"info","ts":"2025-11-24T10:15:30Z","msg":"run recorded",
//	 "workspace":"/home/me/proj","hook.source":"codex","note":"Project Memory/proj/Runs/..."}
//
// # Secret Redaction
//
// Secrets are redacted at two layers:
//  1. Domain primitives (config.Secret, logging.Secret field helper)
//  2. Encoder-level field name and value pattern filtering
//
// Note bodies are scrubbed separately by the secrets package before they reach the vault.
package logging
