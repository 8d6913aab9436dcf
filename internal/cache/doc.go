// Package cache 管理角色本地的扁平文件命名空间（server_fl、cache_fl、client_fl）。
// 写入一律经过同目录临时文件再 rename，失败的传输不会在最终文件名下留下残片；
// 条目一经写入即视为永久有效，不做失效与淘汰。
package cache
