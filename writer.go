package plum

import (
	"sync"
)

const (
	// Pool limits to prevent memory bloat
	poolMaxCap  = 64 << 10
	poolInitCap = 64
)

var writerPool = sync.Pool{
	New: func() any {
		return &Writer{buf: make([]byte, 0, poolInitCap)}
	},
}

func getWriter() *Writer {
	return writerPool.Get().(*Writer)
}

func putWriter(w *Writer) {
	if w == nil || cap(w.buf) > poolMaxCap {
		return // reject oversized
	}
	w.buf = w.buf[:0]
	writerPool.Put(w)
}

// Writer accumulates packed bytes.
type Writer struct {
	buf []byte
}

// NewWriter creates a writer that appends to dst.
func NewWriter(dst []byte) *Writer {
	return &Writer{buf: dst}
}

// Write appends p.
func (w *Writer) Write(p []byte) {
	w.buf = append(w.buf, p...)
}

// WriteByte appends one byte.
func (w *Writer) WriteByte(c byte) error {
	w.buf = append(w.buf, c)
	return nil
}

// Reserve appends n zero bytes and returns their offset for a later Patch.
func (w *Writer) Reserve(n int) int {
	off := len(w.buf)
	for range n {
		w.buf = append(w.buf, 0)
	}
	return off
}

// Patch overwrites previously written bytes at off.
func (w *Writer) Patch(off int, p []byte) {
	copy(w.buf[off:off+len(p)], p)
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Bytes returns the written bytes. The slice aliases the writer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Since returns the bytes written after off.
func (w *Writer) Since(off int) []byte {
	return w.buf[off:]
}

// Truncate discards bytes written after off.
func (w *Writer) Truncate(off int) {
	w.buf = w.buf[:off]
}
