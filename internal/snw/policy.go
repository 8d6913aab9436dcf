package snw

import "time"

const (
	DefaultAttempts   = 3
	DefaultAckTimeout = time.Second
	DefaultRetryDelay = 5 * time.Second
	DefaultChunkSize  = 1000
)

// Policy 描述停等协议的重试与分片参数，零值字段回退到默认值。
type Policy struct {
	// Attempts 是 LEN 握手的最大发送次数。
	Attempts int
	// AckTimeout 是每次等待 ACK/FIN/反馈的时长。
	AckTimeout time.Duration
	// RetryDelay 是 LEN 超时后重发前的停顿。
	RetryDelay time.Duration
	// ChunkSize 是单个 DATA 报文承载的最大字节数。
	ChunkSize int
	// IdleTimeout 是接收方等待 LEN 与每个 DATA 的上限；为 0 时按握手预算推导。
	IdleTimeout time.Duration
}

// DefaultPolicy 返回 3 次尝试、1s 等待、5s 停顿、1000 字节分片的默认策略。
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   DefaultAttempts,
		AckTimeout: DefaultAckTimeout,
		RetryDelay: DefaultRetryDelay,
		ChunkSize:  DefaultChunkSize,
	}
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.AckTimeout <= 0 {
		p.AckTimeout = DefaultAckTimeout
	}
	if p.RetryDelay < 0 {
		p.RetryDelay = 0
	}
	if p.ChunkSize <= 0 || p.ChunkSize > maxDatagram {
		p.ChunkSize = DefaultChunkSize
	}
	if p.IdleTimeout <= 0 {
		p.IdleTimeout = p.handshakeBudget()
	}
	return p
}

// handshakeBudget 覆盖发送方完整的 LEN 重试窗口，再留出一次等待的余量。
func (p Policy) handshakeBudget() time.Duration {
	return time.Duration(p.Attempts)*(p.AckTimeout+p.RetryDelay) + p.AckTimeout
}
