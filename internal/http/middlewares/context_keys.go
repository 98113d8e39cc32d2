package middlewares

const (
	CtxRequestID = "request_id"

	ctxUserIDKey  = "auth.userID"
	ctxIsAdminKey = "auth.isAdmin"
)
