// Package middleware provides the gin middleware chain of the RAG HTTP server.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-rag/pkg/utils/id"
	"github.com/kart-io/sentinel-rag/pkg/utils/response"
)

// HeaderXRequestID is the header carrying the request ID.
const HeaderXRequestID = "X-Request-ID"

// maxRequestIDLen 超长的外部请求 ID 会被替换。
const maxRequestIDLen = 128

type requestIDKey struct{}

// RequestID 返回请求 ID 中间件。
// 优先沿用客户端传入的 X-Request-ID, 否则生成 ULID;
// 请求 ID 写入响应头、gin 上下文和请求 context。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = id.NewULID()
		}

		c.Set(response.ContextKeyRequestID, requestID)
		c.Header(HeaderXRequestID, requestID)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// WithRequestID returns a copy of ctx carrying requestID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID returns the request ID stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
