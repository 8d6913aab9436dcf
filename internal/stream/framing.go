// Package stream 实现可靠字节流（TCP）上的控制行与文件拷贝帧格式。
//
// 字符串帧为 2 字节大端长度加 UTF-8 字节，长度帧为 8 字节大端有符号整数，
// 与原有客户端的 writeUTF/writeLong 线格式保持一致（ASCII 内容下逐字节相同）。
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrStringTooLong 表示字符串超过 2 字节长度前缀可表达的范围。
var ErrStringTooLong = errors.New("stream: string exceeds 65535 bytes")

// WriteString 写出一个带长度前缀的字符串帧。
func WriteString(w io.Writer, s string) error {
	if len(s) > math.MaxUint16 {
		return ErrStringTooLong
	}
	buf := make([]byte, 2+len(s))
	binary.BigEndian.PutUint16(buf, uint16(len(s)))
	copy(buf[2:], s)
	_, err := w.Write(buf)
	return err
}

// ReadString 读取一个字符串帧。
func ReadString(r io.Reader) (string, error) {
	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint16(head[:])
	if n == 0 {
		return "", nil
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", unexpected(err)
	}
	return string(body), nil
}

// WriteLength 写出 8 字节长度帧。
func WriteLength(w io.Writer, n int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	_, err := w.Write(buf[:])
	return err
}

// ReadLength 读取 8 字节长度帧，负数视为损坏。
func ReadLength(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, unexpected(err)
	}
	n := int64(binary.BigEndian.Uint64(buf[:]))
	if n < 0 {
		return 0, fmt.Errorf("stream: negative length %d", n)
	}
	return n, nil
}

// 帧中途断开一律视为意外结束。
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
