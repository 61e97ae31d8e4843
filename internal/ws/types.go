package ws

const (
	// client - server
	MsgSetPage = "set_page"
	MsgSetType = "set_type"
	MsgSetUser = "set_user"
	MsgRefresh = "refresh"
	MsgSearch  = "search"
	MsgSelect  = "select"
	MsgClear   = "clear_target"
	MsgPing    = "ping"

	// server - client
	MsgReady    = "ready"
	MsgHistory  = "history"
	MsgLookup   = "lookup"
	MsgToast    = "toast"
	MsgNavigate = "navigate"
	MsgPong     = "pong"
	MsgError    = "error"
)
