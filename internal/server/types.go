package server

import "time"

// RouteRequest is the POST /route body.
type RouteRequest struct {
	// Router names a router workflow. Empty selects the server default.
	Router  string `json:"router,omitempty"`
	Request string `json:"request"`
}

type RouteResponse struct {
	Label    string `json:"label"`
	Fallback bool   `json:"fallback"`
	Output   string `json:"output"`
}

// LedgerRequest is the POST /ledger body.
type LedgerRequest struct {
	Request string `json:"request"`
}

type LedgerResponse struct {
	Output string `json:"output"`
}

// SubmitRunRequest is the POST /runs body.
type SubmitRunRequest struct {
	// Pipeline names a pipeline workflow. Empty selects the server default.
	Pipeline string `json:"pipeline,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Input    string `json:"input"`
}

// RunStatus is returned by GET /runs/{id}.
type RunStatus struct {
	RunID         string     `json:"run_id"`
	Pipeline      string     `json:"pipeline"`
	UserID        string     `json:"user_id,omitempty"`
	State         string     `json:"state"`
	LastAuthor    string     `json:"last_author,omitempty"`
	LastEventAt   *time.Time `json:"last_event_at,omitempty"`
	Final         string     `json:"final,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
}

// EventPayload is the JSON form of a pipeline event on the SSE stream.
type EventPayload struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	Author string    `json:"author"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
}

// ErrorResponse is a standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
