package util

import "sync"

// MaxFrameSize is the buffer size for bus frame I/O.  KNXnet/IP frames
// are bounded well below this; the headroom covers extension frames.
const MaxFrameSize = 1024

// FrameBufPool provides reusable byte buffers for frame I/O, reducing
// GC pressure on hot paths like monitor read loops.
var FrameBufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, MaxFrameSize)
		return &buf
	},
}

// GetFrameBuf retrieves a buffer from the pool.  Callers must return
// it with [PutFrameBuf] when finished.
func GetFrameBuf() *[]byte {
	return FrameBufPool.Get().(*[]byte)
}

// PutFrameBuf returns a buffer to the pool for reuse.
func PutFrameBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	FrameBufPool.Put(buf)
}
