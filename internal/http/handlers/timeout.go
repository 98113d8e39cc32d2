package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// opCtx bounds a storage or manager call while keeping the request's
// cancellation and trace context.
func opCtx(ctx *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), d)
}
