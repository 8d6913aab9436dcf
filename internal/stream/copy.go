package stream

import (
	"errors"
	"fmt"
	"io"
)

// 控制通道上的状态文本，客户端按字面值比较。
const (
	StatusFound    = "File found, starting transfer."
	StatusNotFound = "File not found in cache or on server. Please check the file name and try again."
	StatusUploaded = "File successfully uploaded."
	// StatusReady 由停等协议的 put 接收方在数据报端口绑定后发出，发送方收到后再发 LEN。
	StatusReady = "Ready to receive file."
)

// ErrNotFound 表示对端回复了未找到文本。
var ErrNotFound = errors.New("file not found in cache or on server")

// Upload 按 put 帧格式发送文件名、长度与内容，然后读取对端的结果文本。
func Upload(rw io.ReadWriter, name string, size int64, body io.Reader) (string, error) {
	if err := WriteString(rw, name); err != nil {
		return "", fmt.Errorf("write file name: %w", err)
	}
	if err := WriteLength(rw, size); err != nil {
		return "", fmt.Errorf("write file length: %w", err)
	}
	if _, err := copyExact(rw, body, size); err != nil {
		return "", fmt.Errorf("write file body: %w", err)
	}
	resp, err := ReadString(rw)
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	return resp, nil
}

// ReadHeader 读取 put 帧头部（文件名与长度）。
func ReadHeader(r io.Reader) (string, int64, error) {
	name, err := ReadString(r)
	if err != nil {
		return "", 0, fmt.Errorf("read file name: %w", unexpected(err))
	}
	size, err := ReadLength(r)
	if err != nil {
		return "", 0, fmt.Errorf("read file length: %w", err)
	}
	return name, size, nil
}

// ReadBody 从 r 中恰好读取 size 字节写入 dst。
func ReadBody(r io.Reader, dst io.Writer, size int64) (int64, error) {
	return copyExact(dst, r, size)
}

// ServeFile 以 found 状态、长度、内容和 feedback 文本回复一次 get。
func ServeFile(w io.Writer, size int64, body io.Reader, feedback string) error {
	if err := WriteString(w, StatusFound); err != nil {
		return err
	}
	if err := WriteLength(w, size); err != nil {
		return err
	}
	if _, err := copyExact(w, body, size); err != nil {
		return err
	}
	return WriteString(w, feedback)
}

// WriteNotFound 回复未找到文本，不带长度字段。
func WriteNotFound(w io.Writer) error {
	return WriteString(w, StatusNotFound)
}

// Fetch 读取一次 get 回复，把内容写入 dst 并返回末尾的 feedback 文本。
func Fetch(r io.Reader, dst io.Writer) (string, error) {
	status, err := ReadString(r)
	if err != nil {
		return "", fmt.Errorf("read status: %w", unexpected(err))
	}
	if status != StatusFound {
		if status == StatusNotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("unexpected status %q", status)
	}
	size, err := ReadLength(r)
	if err != nil {
		return "", fmt.Errorf("read file length: %w", err)
	}
	if _, err := copyExact(dst, r, size); err != nil {
		return "", fmt.Errorf("read file body: %w", err)
	}
	feedback, err := ReadString(r)
	if err != nil {
		return "", fmt.Errorf("read feedback: %w", unexpected(err))
	}
	return feedback, nil
}

func copyExact(dst io.Writer, src io.Reader, size int64) (int64, error) {
	if size == 0 {
		return 0, nil
	}
	if src == nil {
		return 0, errors.New("stream: nil body")
	}
	n, err := io.CopyN(dst, src, size)
	if err != nil {
		return n, unexpected(err)
	}
	return n, nil
}
