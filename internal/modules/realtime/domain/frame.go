package domain

import "encoding/json"

const (
	EventRefresh = "refresh"
	TypeRefresh  = "REFRESH"
)

// Frame is the JSON envelope written to websocket clients.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type RefreshPayload struct {
	Type  string `json:"type"`
	Scope string `json:"scope"`
}

// RefreshFrame encodes {"event":"refresh","data":{"type":"REFRESH","scope":scope}}.
func RefreshFrame(scope string) ([]byte, error) {
	return json.Marshal(Frame{
		Event: EventRefresh,
		Data:  RefreshPayload{Type: TypeRefresh, Scope: scope},
	})
}
