package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// RAG 服务错误码: AA=20
var (
	// 请求参数错误 (类别 01)
	ErrRAGInvalidRequest = Register(New(MakeCode(ServiceRAG, CategoryRequest, 1),
		http.StatusBadRequest, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))

	// 任务不存在 (类别 04)
	ErrRAGJobNotFound = Register(New(MakeCode(ServiceRAG, CategoryResource, 1),
		http.StatusNotFound, codes.NotFound, "Ingestion job not found", "摄取任务不存在"))

	// 防御性检查失败, 例如分块与向量数量不一致 (类别 07)
	ErrRAGInvariantViolation = Register(New(MakeCode(ServiceRAG, CategoryInternal, 1),
		http.StatusInternalServerError, codes.Internal, "Invariant violation", "内部一致性校验失败"))

	// 队列不可用 (类别 07)
	ErrRAGQueueUnavailable = Register(New(MakeCode(ServiceRAG, CategoryInternal, 2),
		http.StatusServiceUnavailable, codes.FailedPrecondition, "Job queue unavailable", "任务队列不可用"))

	// 嵌入或存储后端调用失败 (类别 10)
	ErrRAGProviderCall = Register(New(MakeCode(ServiceRAG, CategoryNetwork, 1),
		http.StatusBadGateway, codes.Unavailable, "Provider call failed", "后端服务调用失败"))

	// 配置错误, 例如缺少凭据或分块参数非法 (类别 12)
	ErrRAGConfiguration = Register(New(MakeCode(ServiceRAG, CategoryConfig, 1),
		http.StatusInternalServerError, codes.FailedPrecondition, "Configuration error", "配置错误"))
)
