package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-rag/pkg/errors"
	"github.com/kart-io/sentinel-rag/pkg/utils/response"
)

// DefaultMaxBodyBytes 未配置时的请求体上限。
const DefaultMaxBodyBytes int64 = 4 << 20

// BodyLimit 限制请求体大小。
// Content-Length 已超限时直接返回 413; 否则用 http.MaxBytesReader 限制实际读取量。
func BodyLimit(maxSize int64) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodyBytes
	}

	return func(c *gin.Context) {
		req := c.Request
		if req.ContentLength > maxSize {
			logger.Warnw("request body too large",
				"path", req.URL.Path,
				"content_length", req.ContentLength,
				"max_size", maxSize,
			)
			response.Abort(c, errors.ErrRequestTooLarge)
			return
		}

		if req.Body != nil {
			req.Body = http.MaxBytesReader(c.Writer, req.Body, maxSize)
		}
		c.Next()
	}
}

// IsBodyTooLarge reports whether err was caused by reading past the body limit.
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
