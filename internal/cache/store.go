package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理角色目录下的文件读写。磁盘布局遵循：
//
//	<StoragePath>/<name>
//
// 条目只由正文文件组成，大小与修改时间直接取自文件系统。
type Store interface {
	// Get 返回一个可流式读取的条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, name string) (*ReadResult, error)

	// Stat 只做存在性检查，不打开文件。
	Stat(ctx context.Context, name string) (*Entry, error)

	// Put 在条目锁内完成一次完整写入，等价于 Lock + Create + 拷贝 + Commit。
	Put(ctx context.Context, name string, body io.Reader) (*Entry, error)

	// Create 打开一个待提交的写入；调用方负责在需要时先持有 Lock(name)。
	Create(ctx context.Context, name string) (Pending, error)

	// Remove 删除正文文件，不存在时视为成功。诊断接口的 DELETE 用它驱逐缓存条目。
	Remove(ctx context.Context, name string) error

	// List 按名称排序返回全部已提交条目。
	List(ctx context.Context) ([]Entry, error)

	// Lock 获取同名条目的互斥锁，返回释放函数。
	Lock(name string) func()

	// Root 返回存储根目录的绝对路径。
	Root() string
}

// Pending 是尚未提交的写入：数据先落在临时文件，Commit 时原子替换为正式条目。
type Pending interface {
	io.Writer
	Name() string
	Commit() (*Entry, error)
	Abort() error
}

// Entry 描述一个已落盘的条目。
type Entry struct {
	Name      string    `json:"name"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// ReadResult 组合 Entry 与正文 Reader，便于传输层直接流式发送。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

var (
	// ErrNotFound 表示条目不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidName 表示文件名为空或试图跳出存储目录。
	ErrInvalidName = errors.New("invalid file name")
	// ErrClosed 表示 Pending 已经提交或放弃。
	ErrClosed = errors.New("pending write already closed")
)
