package cache

import (
	"os"
	"sync"
)

// pendingFile 把写入暂存在同目录的临时文件中，Commit 时 rename 到正式路径。
type pendingFile struct {
	name     string
	filePath string

	mu      sync.Mutex
	file    *os.File
	written int64
	closed  bool
}

func (p *pendingFile) Name() string {
	return p.name
}

func (p *pendingFile) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	n, err := p.file.Write(b)
	p.written += int64(n)
	return n, err
}

func (p *pendingFile) Commit() (*Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	p.closed = true

	tempName := p.file.Name()
	if err := p.file.Close(); err != nil {
		os.Remove(tempName)
		return nil, err
	}
	if err := os.Rename(tempName, p.filePath); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	info, err := os.Stat(p.filePath)
	if err != nil {
		return nil, err
	}
	return &Entry{
		Name:      p.name,
		FilePath:  p.filePath,
		SizeBytes: p.written,
		ModTime:   info.ModTime(),
	}, nil
}

// Abort 丢弃临时文件；已关闭时为空操作。
func (p *pendingFile) Abort() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	tempName := p.file.Name()
	closeErr := p.file.Close()
	if err := os.Remove(tempName); err != nil && !os.IsNotExist(err) {
		return err
	}
	return closeErr
}
