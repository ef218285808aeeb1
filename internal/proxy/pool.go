package proxy

import (
	"sync"
)

// relayBufferSize is the per-direction read size of the relay loop.
const relayBufferSize = 1024

// BufferPool recycles fixed-size relay buffers across connections.
type BufferPool struct {
	pool sync.Pool
}

func NewBufferPool(size int) *BufferPool {
	bp := &BufferPool{}
	bp.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}

	return bp
}

func (p *BufferPool) Get() *[]byte {
	return p.pool.Get().(*[]byte)
}

func (p *BufferPool) Put(b *[]byte) {
	p.pool.Put(b)
}
