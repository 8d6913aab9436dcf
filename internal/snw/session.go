package snw

import (
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Phase 是一次传输会话所处的阶段。
type Phase string

const (
	PhaseHandshake Phase = "handshake"
	PhaseData      Phase = "data"
	PhaseFinish    Phase = "finish"
	PhaseFeedback  Phase = "feedback"
	PhaseDelivered Phase = "delivered"
	PhaseFailed    Phase = "failed"
)

// Direction 区分上传（发送方持有）与下载（接收方持有）会话。
type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// Session 记录一次文件传输尝试，仅由发起一侧持有，不跨端共享。
type Session struct {
	ID          string
	Direction   Direction
	Peer        net.Addr
	FileName    string
	Size        int64
	Transferred int64
	Chunks      int
	Phase       Phase
	Attempts    int
	Feedback    string
	StartedAt   time.Time
	FinishedAt  time.Time
	Err         error
}

func newSession(dir Direction, peer net.Addr, name string, size int64) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Direction: dir,
		Peer:      peer,
		FileName:  name,
		Size:      size,
		Phase:     PhaseHandshake,
		StartedAt: time.Now(),
	}
}

// Done 表示会话已进入终止阶段。
func (s *Session) Done() bool {
	return s.Phase == PhaseDelivered || s.Phase == PhaseFailed
}

// Duration 返回会话耗时，未结束时按当前时间计算。
func (s *Session) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Fields 输出会话的结构化日志字段。
func (s *Session) Fields() logrus.Fields {
	peer := ""
	if s.Peer != nil {
		peer = s.Peer.String()
	}
	return logrus.Fields{
		"session_id":  s.ID,
		"direction":   string(s.Direction),
		"peer":        peer,
		"file":        s.FileName,
		"size":        s.Size,
		"transferred": s.Transferred,
		"chunks":      s.Chunks,
		"phase":       string(s.Phase),
		"attempts":    s.Attempts,
	}
}

func (s *Session) fail(err error) error {
	s.Phase = PhaseFailed
	s.Err = err
	s.FinishedAt = time.Now()
	return err
}

func (s *Session) deliver() {
	s.Phase = PhaseDelivered
	s.FinishedAt = time.Now()
}
