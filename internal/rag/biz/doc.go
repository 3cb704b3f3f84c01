// Package biz 提供 RAG 服务的业务逻辑层。
//
// 该包包含两个组件:
//   - Embedder: 按凭据选择嵌入供应商, 为分块或查询生成向量
//   - Pipeline: 编排 分块 -> 嵌入 -> 存储 三个阶段, 并把所有错误转换为结果对象
package biz
