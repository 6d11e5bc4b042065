package middlewares

const (
	CtxRequestID = "request_id"
	// CtxEventID is set by handlers so the request log can be joined with lifecycle logs.
	CtxEventID = "event_id"
)
