package arena

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// Frame is one decoded camera image awaiting processing
type Frame struct {
	Image    image.Image
	Received time.Time
}

// FrameMailbox hands frames from the transport callbacks to a single
// worker. It holds at most one frame: a newer frame replaces one that has
// not been taken yet, and the replacement is counted as a drop.
type FrameMailbox struct {
	mu      sync.Mutex
	cond    *sync.Cond
	frame   *Frame
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewFrameMailbox creates an empty mailbox
func NewFrameMailbox() *FrameMailbox {
	m := &FrameMailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Put stores frame, replacing any unconsumed frame. It never blocks.
func (m *FrameMailbox) Put(f Frame) {
	m.mu.Lock()
	if m.frame != nil {
		m.dropped.Add(1)
	}
	m.frame = &f
	m.cond.Signal()
	m.mu.Unlock()
}

// Start runs handle for every frame on one goroutine until ctx is done or
// Stop is called. handle is never invoked concurrently.
func (m *FrameMailbox) Start(ctx context.Context, handle func(Frame)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("mailbox already started")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.started = true

	// Wake the loop when the caller's context ends
	context.AfterFunc(m.ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})

	m.wg.Add(1)
	go m.loop(handle)
	return nil
}

// Stop ends the worker loop and waits for it to exit
func (m *FrameMailbox) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.cond.Broadcast()
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *FrameMailbox) loop(handle func(Frame)) {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		for m.frame == nil {
			if m.ctx.Err() != nil {
				m.mu.Unlock()
				return
			}
			m.cond.Wait()
		}
		if m.ctx.Err() != nil {
			m.mu.Unlock()
			return
		}
		f := m.frame
		m.frame = nil
		m.mu.Unlock()

		handle(*f)
		m.delivered.Add(1)
	}
}

// Dropped returns the number of frames replaced before being processed
func (m *FrameMailbox) Dropped() uint64 {
	return m.dropped.Load()
}

// Delivered returns the number of frames handed to the worker
func (m *FrameMailbox) Delivered() uint64 {
	return m.delivered.Load()
}
