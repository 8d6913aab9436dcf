package snw

import (
	"fmt"
	"strconv"
	"strings"
)

// 线上报文均以数据报边界分隔，控制报文为 UTF-8 文本，DATA 为原始字节。
const (
	lenPrefix = "LEN:"
	tokenACK  = "ACK"
	tokenFIN  = "FIN"

	// maxDatagram 是 UDP 单个报文可承载的最大负载。
	maxDatagram = 65507
)

// Kind 标识一次会话中可能出现的报文种类。
type Kind int

const (
	KindLen Kind = iota + 1
	KindAck
	KindData
	KindFin
	KindFeedback
)

func (k Kind) String() string {
	switch k {
	case KindLen:
		return "LEN"
	case KindAck:
		return "ACK"
	case KindData:
		return "DATA"
	case KindFin:
		return "FIN"
	case KindFeedback:
		return "FEEDBACK"
	default:
		return "UNKNOWN"
	}
}

// Message 是一条待发送的会话报文。
type Message struct {
	Kind    Kind
	Length  int64
	Payload []byte
}

// LenMessage 构造 LEN:<byteCount>。
func LenMessage(n int64) Message {
	return Message{Kind: KindLen, Length: n}
}

// Encode 返回报文在数据报中的字节表示。
func (m Message) Encode() []byte {
	switch m.Kind {
	case KindLen:
		return []byte(lenPrefix + strconv.FormatInt(m.Length, 10))
	case KindAck:
		return []byte(tokenACK)
	case KindFin:
		return []byte(tokenFIN)
	default:
		return m.Payload
	}
}

var (
	ackMessage = Message{Kind: KindAck}
	finMessage = Message{Kind: KindFin}
)

// ParseLen 解析 LEN:<byteCount>，非 LEN 报文或非法长度返回 ErrProtocolMismatch。
func ParseLen(b []byte) (int64, error) {
	raw := string(b)
	if !strings.HasPrefix(raw, lenPrefix) {
		return 0, fmt.Errorf("%w: expected LEN, got %q", ErrProtocolMismatch, truncate(raw))
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw[len(lenPrefix):]), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid length %q", ErrProtocolMismatch, truncate(raw))
	}
	return n, nil
}

func isToken(b []byte, token string) bool {
	return string(b) == token
}

func truncate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}
