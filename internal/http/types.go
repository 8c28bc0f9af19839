package http

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// HookResponse is the response body for POST /api/v1/hooks/:source.
type HookResponse struct {
	// Status is recorded, skipped or failed.
	Status string `json:"status"`

	// Reason says why an event was skipped or failed.
	Reason string `json:"reason,omitempty"`

	// NotePath is the vault-relative path of the recorded run note.
	NotePath string `json:"note_path,omitempty"`
	TurnID   string `json:"turn_id,omitempty"`
}
