package snw

import "errors"

var (
	// ErrTimeout 表示在等待窗口内没有收到对端回复。
	ErrTimeout = errors.New("snw: timed out waiting for peer")
	// ErrProtocolMismatch 表示收到的报文不是当前阶段期望的内容。
	ErrProtocolMismatch = errors.New("snw: unexpected message")
	// ErrHandshakeFailed 表示 LEN 在重试预算内未被确认，未发送任何 DATA。
	ErrHandshakeFailed = errors.New("snw: LEN not acknowledged")
	// ErrNoFIN 表示所有分片已确认但接收方未发送 FIN。
	ErrNoFIN = errors.New("snw: did not receive FIN")
)
