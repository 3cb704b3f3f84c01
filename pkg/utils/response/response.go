// Package response provides the unified {code, message, data} API envelope.
// Every HTTP endpoint answers with this structure, successful or not.
package response

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-rag/pkg/errors"
)

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// Message is a human-readable message
	Message string `json:"message"`

	// Data contains the response payload (nil for errors)
	Data any `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response timestamp (Unix milliseconds)
	Timestamp int64 `json:"timestamp,omitempty"`

	httpStatus int
}

// Success creates a successful response with data.
func Success(data any) *Response {
	return &Response{
		Code:       0,
		Message:    "success",
		Data:       data,
		httpStatus: http.StatusOK,
	}
}

// Err creates an error response from an Errno in the given language.
func Err(e *errors.Errno, lang string) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:       e.Code,
		Message:    e.Message(lang),
		httpStatus: e.HTTPStatus(),
	}
}

// ErrWithData creates an error response carrying details, e.g. validation errors.
func ErrWithData(e *errors.Errno, lang string, data any) *Response {
	r := Err(e, lang)
	r.Data = data
	return r
}

// WithRequestID adds request ID to the response.
func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Code == 0
}

// HTTPStatus returns the HTTP status code for this response.
func (r *Response) HTTPStatus() int {
	if r.httpStatus != 0 {
		return r.httpStatus
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// Lang returns the preferred language from the lang query parameter or Accept-Language.
func Lang(c *gin.Context) string {
	if lang := c.Query("lang"); lang != "" {
		return lang
	}
	accept := c.GetHeader("Accept-Language")
	if accept == "" {
		return "en"
	}
	// zh-CN,zh;q=0.9,en;q=0.8
	first := strings.TrimSpace(strings.Split(strings.Split(accept, ",")[0], ";")[0])
	if strings.HasPrefix(strings.ToLower(first), "zh") {
		return "zh"
	}
	return "en"
}

// Write sends r as JSON, stamping the request ID and timestamp.
func Write(c *gin.Context, r *Response) {
	if r.RequestID == "" {
		r.RequestID = c.GetString(ContextKeyRequestID)
	}
	r.Timestamp = time.Now().UnixMilli()
	c.JSON(r.HTTPStatus(), r)
}

// OK writes a success envelope.
func OK(c *gin.Context, data any) {
	Write(c, Success(data))
}

// Fail writes an error envelope. Errors without an Errno become ErrInternal.
func Fail(c *gin.Context, err error) {
	Write(c, Err(errors.FromError(err), Lang(c)))
}

// Abort writes an error envelope and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Fail(c, err)
	c.Abort()
}

// ContextKeyRequestID is the gin context key holding the request ID.
const ContextKeyRequestID = "request_id"
