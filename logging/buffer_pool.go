package logging

import (
	"bytes"
	"sync"
)

// BufferPool 复用格式化用的字节缓冲，降低高频日志下的分配压力。
type BufferPool struct {
	pool sync.Pool
}

func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return new(bytes.Buffer)
			},
		},
	}
}

func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

// Put 重置并归还缓冲。归还后调用方不得再引用其底层数组。
func (p *BufferPool) Put(b *bytes.Buffer) {
	b.Reset()
	p.pool.Put(b)
}

// GlobalBufferPool 格式化器共享的缓冲池。
var GlobalBufferPool = NewBufferPool()
