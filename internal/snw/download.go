package snw

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// Download 以接收方身份在 conn 上完成恰好一次文件接收，数据按到达顺序写入 dst。
//
// 首个报文必须是 LEN，否则视为协议错误。收满声明的字节数后发送 FIN，
// 再在 AckTimeout 内等待一条反馈文本；反馈缺失不影响传输结果。
func (t *Transport) Download(ctx context.Context, conn net.PacketConn, dst io.Writer, name string) (*Session, error) {
	sess := newSession(DirectionDownload, nil, name, 0)
	stop := watch(ctx, conn)
	defer stop()

	buf := make([]byte, maxDatagram)

	n, peer, err := t.read(ctx, conn, buf, t.policy.IdleTimeout)
	if err != nil {
		t.logger.WithFields(sess.Fields()).WithError(err).Warn("snw_download_failed")
		return sess, sess.fail(fmt.Errorf("await LEN: %w", err))
	}
	sess.Peer = peer
	sess.Attempts = 1
	size, err := ParseLen(buf[:n])
	if err != nil {
		t.logger.WithFields(sess.Fields()).WithError(err).Warn("snw_download_failed")
		return sess, sess.fail(err)
	}
	sess.Size = size
	if err := t.send(conn, ackMessage, peer); err != nil {
		return sess, sess.fail(fmt.Errorf("send ACK for LEN: %w", err))
	}
	t.logger.WithFields(sess.Fields()).Debug("snw_len_acknowledged")

	sess.Phase = PhaseData
	for sess.Transferred < size {
		n, from, err := t.read(ctx, conn, buf, t.policy.IdleTimeout)
		if err != nil {
			t.logger.WithFields(sess.Fields()).WithError(err).Warn("snw_download_failed")
			return sess, sess.fail(fmt.Errorf("await DATA chunk %d: %w", sess.Chunks+1, err))
		}
		if _, err := dst.Write(buf[:n]); err != nil {
			t.logger.WithFields(sess.Fields()).WithError(err).Error("snw_write_failed")
			return sess, sess.fail(fmt.Errorf("write chunk %d: %w", sess.Chunks+1, err))
		}
		sess.Transferred += int64(n)
		sess.Chunks++
		if err := t.send(conn, ackMessage, from); err != nil {
			return sess, sess.fail(fmt.Errorf("send ACK for chunk %d: %w", sess.Chunks, err))
		}
	}

	sess.Phase = PhaseFinish
	if err := t.send(conn, finMessage, peer); err != nil {
		return sess, sess.fail(fmt.Errorf("send FIN: %w", err))
	}

	sess.Phase = PhaseFeedback
	n, _, err = t.read(ctx, conn, buf, t.policy.AckTimeout)
	switch {
	case err == nil && n > 0:
		sess.Feedback = string(buf[:n])
		t.logger.WithFields(sess.Fields()).WithField("feedback", sess.Feedback).Info("snw_peer_feedback")
	case err == nil, errors.Is(err, ErrTimeout):
		t.logger.WithFields(sess.Fields()).Debug("snw_feedback_missing")
	default:
		// 文件已完整落盘，反馈阶段的失败只记录不回滚。
		t.logger.WithFields(sess.Fields()).WithError(err).Debug("snw_feedback_missing")
	}

	sess.deliver()
	t.logger.WithFields(sess.Fields()).WithField("elapsed", sess.Duration().String()).Info("snw_download_completed")
	return sess, nil
}
