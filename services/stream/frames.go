package stream

import (
	"sync"
	"time"
)

// Frame is one complete still image from the media channel.
type Frame struct {
	Data    []byte
	Seq     uint64
	Quality int
	At      time.Time
}

// FrameBuffer holds only the newest frame. A frame overwritten before anyone
// read it is counted as dropped.
type FrameBuffer struct {
	mu       sync.Mutex
	frame    *Frame
	consumed bool
	seq      uint64
	received uint64
	dropped  uint64
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{consumed: true}
}

// Put stores data as the latest frame and returns its sequence number.
func (b *FrameBuffer) Put(data []byte, quality int, at time.Time) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.consumed {
		b.dropped++
	}
	b.seq++
	b.received++
	b.frame = &Frame{Data: data, Seq: b.seq, Quality: quality, At: at}
	b.consumed = false
	return b.seq
}

// Latest returns the newest frame and marks it read.
func (b *FrameBuffer) Latest() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame == nil {
		return Frame{}, false
	}
	b.consumed = true
	return *b.frame, true
}

// Counters returns how many frames were stored and how many were never read.
func (b *FrameBuffer) Counters() (received, dropped uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.received, b.dropped
}
