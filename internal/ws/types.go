package ws

const (
	// client - server
	MsgCreate      = "create"
	MsgJoin        = "join"
	MsgMarkReady   = "mark_ready"
	MsgClientReady = "client_ready"
	MsgMove        = "move"

	// server - client, besides the room events
	MsgError = "error"
)

// Error codes that come from the transport rather than a room.
const (
	CodeBadRequest  = "bad_request"
	CodeUnknownType = "unknown_message"
	CodeRateLimited = "rate_limited"
)

var knownTypes = map[string]bool{
	MsgCreate:      true,
	MsgJoin:        true,
	MsgMarkReady:   true,
	MsgClientReady: true,
	MsgMove:        true,
}
