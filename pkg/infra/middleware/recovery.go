package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-rag/pkg/errors"
	"github.com/kart-io/sentinel-rag/pkg/utils/response"
)

// Recovery 捕获 handler 中的 panic, 记录完整堆栈并返回 ErrInternal。
// 堆栈只写日志, 不返回给客户端。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Errorw("panic recovered",
				"panic", fmt.Sprint(r),
				"stack_trace", string(debug.Stack()),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"request_id", c.GetString(response.ContextKeyRequestID),
			)
			response.Abort(c, errors.ErrInternal.WithMessagef("panic: %v", r))
		}()
		c.Next()
	}
}
