package hooks

import "errors"

var (
	// ErrMalformedPayload indicates invalid JSON or a non-object root.
	ErrMalformedPayload = errors.New("malformed hook payload")

	// ErrSignatureRejected indicates a missing or mismatched webhook signature.
	ErrSignatureRejected = errors.New("webhook signature rejected")

	// ErrIrrelevantEvent indicates an event kind the source does not log.
	ErrIrrelevantEvent = errors.New("irrelevant hook event")

	// ErrUnknownSource indicates a source with no registered extractor.
	ErrUnknownSource = errors.New("unknown hook source")
)
