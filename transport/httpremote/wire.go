package httpremote

import (
	"encoding/json"

	"github.com/fitlocker/fitlocker/cursor"
	"github.com/fitlocker/fitlocker/record"
)

// Wire types shared by the client and the reference server.

// addResponse carries the cloud-assigned identifier back to the caller.
type addResponse struct {
	ID string `json:"id"`
}

// settingPayload wraps a settings value so null round-trips unambiguously.
type settingPayload struct {
	Value json.RawMessage `json:"value"`
}

// feedEvent is one SSE payload: the full result set matching the
// subscription filter, plus the change-feed position it corresponds to.
type feedEvent struct {
	Records []record.Record `json:"records"`
	Cursor  string          `json:"cursor"`
}

// errorResponse is the JSON error body emitted by the server.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func encodeCursor(c cursor.Cursor) string { return c.String() }
