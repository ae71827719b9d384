package security

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/enercore/libcosem-go/base"
)

// FrameCounter is the 32-bit replay-protection counter for outgoing secured
// frames. It is safe for concurrent use: every Increment returns a unique,
// strictly increasing value even with multiple frame producers on the same
// association. Wrap-around uses modular arithmetic; callers must treat a wrap
// as exhausting the key epoch and re-key before any value is reused.
type FrameCounter struct {
	value atomic.Uint32
}

// NewFrameCounter starts the counter at an operator-chosen initial value,
// commonly 0.
func NewFrameCounter(initial uint32) *FrameCounter {
	fc := &FrameCounter{}
	fc.value.Store(initial)
	return fc
}

func (fc *FrameCounter) Get() uint32 {
	return fc.value.Load()
}

// Increment advances the counter and returns the new value.
func (fc *FrameCounter) Increment() uint32 {
	return fc.value.Add(1)
}

func (fc *FrameCounter) Set(v uint32) {
	fc.value.Store(v)
}

func (fc *FrameCounter) Reset() {
	fc.value.Store(0)
}

// ReceiveWindow tracks the frame counter of the last accepted frame from a
// peer. Frames whose counter does not strictly increase are replays and must
// be rejected. The zero value accepts any first frame.
type ReceiveWindow struct {
	mu          sync.Mutex
	last        uint32
	initialized bool
}

// NewReceiveWindow creates a window that only accepts counters above last.
func NewReceiveWindow(last uint32) *ReceiveWindow {
	return &ReceiveWindow{last: last, initialized: true}
}

// Fresh reports whether fc would currently be accepted, without mutating the
// window. Use it to reject replays before spending a decryption.
func (w *ReceiveWindow) Fresh(fc uint32) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.initialized || fc > w.last
}

// Accept records fc as the newest seen counter. It fails if fc does not
// strictly increase over the last accepted value, including when a concurrent
// receiver already accepted an equal or higher counter.
func (w *ReceiveWindow) Accept(fc uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.initialized && fc <= w.last {
		return fmt.Errorf("%w: frame counter %d not above %d", base.ErrInvalidFieldValue, fc, w.last)
	}
	w.last = fc
	w.initialized = true
	return nil
}

// Last returns the newest accepted counter value.
func (w *ReceiveWindow) Last() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}
