package snw

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// Upload 以发送方身份把 file 推送给 peer，成功收到 FIN 后把 feedback 作为最后一个报文发出。
//
// LEN 握手按 Policy 重试；进入数据阶段后任何超时或非 ACK 回复都立即终止会话。
// 任意时刻最多只有一个未确认单元（LEN 或一个 DATA）在途。
func (t *Transport) Upload(ctx context.Context, conn net.PacketConn, peer net.Addr, file File, feedback string) (*Session, error) {
	sess := newSession(DirectionUpload, peer, file.Name, file.Size)
	stop := watch(ctx, conn)
	defer stop()

	buf := make([]byte, maxDatagram)

	if err := t.handshake(ctx, conn, sess, buf); err != nil {
		t.logger.WithFields(sess.Fields()).WithError(err).Warn("snw_upload_failed")
		return sess, sess.fail(err)
	}

	sess.Phase = PhaseData
	if err := t.sendChunks(ctx, conn, sess, file, buf); err != nil {
		t.logger.WithFields(sess.Fields()).WithError(err).Warn("snw_upload_failed")
		return sess, sess.fail(err)
	}

	sess.Phase = PhaseFinish
	n, _, err := t.read(ctx, conn, buf, t.policy.AckTimeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			err = ErrNoFIN
		}
		t.logger.WithFields(sess.Fields()).WithError(err).Warn("snw_upload_failed")
		return sess, sess.fail(err)
	}
	if !isToken(buf[:n], tokenFIN) {
		err := fmt.Errorf("%w: expected FIN, got %q", ErrProtocolMismatch, truncate(string(buf[:n])))
		t.logger.WithFields(sess.Fields()).WithError(err).Warn("snw_upload_failed")
		return sess, sess.fail(err)
	}

	sess.Phase = PhaseFeedback
	if err := t.send(conn, Message{Kind: KindFeedback, Payload: []byte(feedback)}, peer); err != nil {
		return sess, sess.fail(fmt.Errorf("send feedback: %w", err))
	}
	sess.Feedback = feedback
	sess.deliver()
	t.logger.WithFields(sess.Fields()).WithField("elapsed", sess.Duration().String()).Info("snw_upload_completed")
	return sess, nil
}

func (t *Transport) handshake(ctx context.Context, conn net.PacketConn, sess *Session, buf []byte) error {
	msg := LenMessage(sess.Size)
	for attempt := 1; attempt <= t.policy.Attempts; attempt++ {
		sess.Attempts = attempt
		if err := t.send(conn, msg, sess.Peer); err != nil {
			return fmt.Errorf("send LEN: %w", err)
		}
		t.logger.WithFields(sess.Fields()).Debug("snw_len_sent")

		n, _, err := t.read(ctx, conn, buf, t.policy.AckTimeout)
		switch {
		case err == nil && isToken(buf[:n], tokenACK):
			return nil
		case err == nil:
			t.logger.WithFields(sess.Fields()).
				WithField("reply", truncate(string(buf[:n]))).
				Warn("snw_unexpected_reply")
		case errors.Is(err, ErrTimeout):
			t.logger.WithFields(sess.Fields()).Warn("snw_len_ack_timeout")
			if attempt < t.policy.Attempts {
				if err := t.sleep(ctx, t.policy.RetryDelay); err != nil {
					return err
				}
			}
		default:
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrHandshakeFailed, t.policy.Attempts)
}

func (t *Transport) sendChunks(ctx context.Context, conn net.PacketConn, sess *Session, file File, buf []byte) error {
	if file.Reader == nil {
		if file.Size == 0 {
			return nil
		}
		return errors.New("snw: file reader is nil")
	}
	src := io.LimitReader(file.Reader, file.Size)
	chunk := make([]byte, t.policy.ChunkSize)
	for {
		n, readErr := io.ReadFull(src, chunk)
		if n > 0 {
			if err := t.send(conn, Message{Kind: KindData, Payload: chunk[:n]}, sess.Peer); err != nil {
				return fmt.Errorf("send DATA: %w", err)
			}
			m, _, err := t.read(ctx, conn, buf, t.policy.AckTimeout)
			if err != nil {
				return fmt.Errorf("DATA chunk %d: %w", sess.Chunks+1, err)
			}
			if !isToken(buf[:m], tokenACK) {
				return fmt.Errorf("%w: expected ACK for chunk %d, got %q", ErrProtocolMismatch, sess.Chunks+1, truncate(string(buf[:m])))
			}
			sess.Chunks++
			sess.Transferred += int64(n)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read source: %w", readErr)
		}
	}
	if sess.Transferred != file.Size {
		return fmt.Errorf("source ended after %d of %d bytes: %w", sess.Transferred, file.Size, io.ErrUnexpectedEOF)
	}
	return nil
}
