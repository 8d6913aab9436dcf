// Package server 承载 server 与 cache 两个角色的 TCP 控制面：
// Listener 负责接受连接、解析 "op name" 请求行、限制并发并隔离处理器 panic；
// OriginHandler 与 CacheHandler 分别实现源站和缓存的请求语义。
// 诊断用的只读 Fiber 应用也放在这里，与监听器共享统计信息。
package server
