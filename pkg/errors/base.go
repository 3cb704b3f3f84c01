package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(New(0, http.StatusOK, codes.OK, "Success", "成功"))

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0),
		http.StatusBadRequest, codes.InvalidArgument, "Bad request", "请求错误"))

	// ErrRequestTooLarge indicates the request body exceeds the configured limit.
	ErrRequestTooLarge = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1),
		http.StatusRequestEntityTooLarge, codes.ResourceExhausted, "Request body too large", "请求体过大"))

	// ErrNotFound indicates the resource is not found.
	ErrNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 0),
		http.StatusNotFound, codes.NotFound, "Resource not found", "资源不存在"))

	// ErrRouteNotFound indicates no route matches the request.
	ErrRouteNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 1),
		http.StatusNotFound, codes.NotFound, "Route not found", "路由不存在"))

	// ErrInternal indicates an internal server error.
	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0),
		http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))

	// ErrServiceUnavailable indicates the service is unavailable.
	ErrServiceUnavailable = Register(New(MakeCode(ServiceCommon, CategoryNetwork, 1),
		http.StatusServiceUnavailable, codes.Unavailable, "Service unavailable", "服务不可用"))
)
