// Package mempool keeps size-classed buffers for the per-image hot paths:
// luma planes and per-cell threshold tables.
package mempool

import (
	"sync"
)

var (
	bytePools classPool[byte]
	intPools  classPool[int]
)

// classPool holds one sync.Pool per size class.
type classPool[T any] struct {
	classes sync.Map // key: size class (int), value: *sync.Pool
}

// sizeClass rounds n up to a multiple of 1024 to reduce churn.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

func (c *classPool[T]) pool(cls int) *sync.Pool {
	pAny, _ := c.classes.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	p, _ := pAny.(*sync.Pool)
	return p
}

func (c *classPool[T]) get(n int) []T {
	cls := sizeClass(n)
	p := c.pool(cls)
	if p == nil {
		return make([]T, cls)[:n]
	}
	buf, ok := p.Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	return buf[:n]
}

func (c *classPool[T]) put(buf []T) {
	if buf == nil {
		return
	}
	// A buffer is filed under the largest class it can serve.
	cls := cap(buf) / 1024 * 1024
	if cls < 1024 {
		return
	}
	if p := c.pool(cls); p != nil {
		p.Put(buf[:cap(buf)]) //nolint:staticcheck // slices are the pooled value
	}
}

// GetBytes returns a buffer of length n. Its contents are undefined; the
// caller must overwrite every element it reads.
func GetBytes(n int) []byte {
	return bytePools.get(n)
}

// PutBytes returns a buffer obtained from GetBytes. Nil is ignored.
func PutBytes(buf []byte) {
	bytePools.put(buf)
}

// GetInts returns a zeroed buffer of length n.
func GetInts(n int) []int {
	buf := intPools.get(n)
	clear(buf)
	return buf
}

// PutInts returns a buffer obtained from GetInts. Nil is ignored.
func PutInts(buf []int) {
	intPools.put(buf)
}
