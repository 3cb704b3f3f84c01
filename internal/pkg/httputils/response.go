// Package httputils provides HTTP helpers shared by the RAG handlers.
package httputils

import (
	"bytes"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-rag/pkg/errors"
	"github.com/kart-io/sentinel-rag/pkg/infra/middleware"
	"github.com/kart-io/sentinel-rag/pkg/utils/json"
	"github.com/kart-io/sentinel-rag/pkg/utils/response"
	"github.com/kart-io/sentinel-rag/pkg/validator"
)

// WriteResponse writes the {code, message, data} envelope.
// Validation failures carry the per-field errors as data.
func WriteResponse(c *gin.Context, err error, data any) {
	if err == nil {
		response.OK(c, data)
		return
	}

	lang := response.Lang(c)
	var verr *validator.ValidationErrors
	if errors.As(err, &verr) && verr.HasErrors() {
		resp := response.ErrWithData(errors.ErrRAGInvalidRequest.WithMessage(verr.First()), lang, verr.Errors)
		resp.Message = verr.First()
		response.Write(c, resp)
		return
	}

	resp := response.Err(errors.FromError(err), lang)
	resp.Data = data
	response.Write(c, resp)
}

// BindJSON decodes the request body into obj and validates it,
// translating field errors into the caller's language.
// An empty body decodes to the zero value.
func BindJSON(c *gin.Context, obj any) error {
	if c.Request.Body != nil {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			if middleware.IsBodyTooLarge(err) {
				return errors.ErrRequestTooLarge.WithCause(err)
			}
			return errors.ErrRAGInvalidRequest.WithMessage("read request body failed").WithCause(err)
		}
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, obj); err != nil {
				return errors.ErrRAGInvalidRequest.WithMessage("malformed JSON body").WithCause(err)
			}
		}
	}
	if verr := validator.StructWithLang(obj, response.Lang(c)); verr.HasErrors() {
		return verr
	}
	return nil
}
