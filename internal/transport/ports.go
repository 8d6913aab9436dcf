package transport

import (
	"context"
	"sync"
)

// dataPorts 串行化本进程内对同一数据报端口号的绑定。
// 停等协议按约定复用控制端口号作为数据端口，并发的拉取或接收若不排队会得到 EADDRINUSE。
// 跨进程的冲突无法在这里避免，仍以绑定错误的形式返回。
var dataPorts = newPortLocks()

type portLocks struct {
	mu    sync.Mutex
	slots map[int]chan struct{}
}

func newPortLocks() *portLocks {
	return &portLocks{slots: make(map[int]chan struct{})}
}

// acquire 等待端口空闲；ctx 取消时放弃。返回的释放函数可重复调用。
// 端口 0 由内核分配临时端口，无需排队。
func (p *portLocks) acquire(ctx context.Context, port int) (func(), error) {
	if port == 0 {
		return func() {}, nil
	}

	p.mu.Lock()
	slot, ok := p.slots[port]
	if !ok {
		slot = make(chan struct{}, 1)
		p.slots[port] = slot
	}
	p.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}
