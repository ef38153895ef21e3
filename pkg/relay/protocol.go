// Package relay carries APDUs between a reader and an emulated card over
// WebSocket, so a Responder can be driven by a remote terminal or an NFC
// front end.
//
// Frames are JSON text messages on /ws:
//
//	server -> client  {"type":"session","id":"<uuid>"}
//	client -> server  {"type":"apdu","id":"<uuid>","apdu":"00A40400..."}
//	server -> client  {"type":"rapdu","id":"<same>","apdu":"9000"}
//	client -> server  {"type":"deactivate","reason":1}
//	server -> client  {"type":"error","id":"<uuid>","error":"..."}
//
// One connection is one emulation session. Closing the connection without a
// deactivate frame is reported as a link loss.
package relay

// Message types.
const (
	TypeSession    = "session"
	TypeAPDU       = "apdu"
	TypeRAPDU      = "rapdu"
	TypeDeactivate = "deactivate"
	TypeError      = "error"
)

// Path is the WebSocket endpoint served by Server.Handler.
const Path = "/ws"

// Message is a relay frame.
type Message struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	APDU   string `json:"apdu,omitempty"`
	Reason *int   `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}
