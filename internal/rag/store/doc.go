// Package store 提供 RAG 服务的向量存储层。
//
// 每个文档对应一个独立集合 (doc_<documentID>)。Store 门面负责记录编号、
// 得分换算与集合句柄缓存, 具体持久化由 VectorStore 后端实现:
// Milvus、Qdrant、嵌入式 bbolt 文件以及用于测试的内存实现。
package store
