package delta

import (
	"fmt"
	"sync"
)

// ResyncReason records one dropped frame that contributed to a resync.
type ResyncReason struct {
	ConnID uint64
	Reason string
}

// ResyncSignal summarises why an early full update was requested.
type ResyncSignal struct {
	Dropped uint64
	Frames  uint64
	Reasons []ResyncReason
}

// ResyncPolicy watches low priority delivery and asks for a full update
// once the share of dropped frames reaches the threshold. The scheduler
// notes frames and drops; the generator consumes the signal on the tick.
type ResyncPolicy struct {
	mu        sync.Mutex
	threshold float64
	frames    uint64
	dropped   uint64
	pending   bool
	reasons   []ResyncReason
}

const resyncReasonLimit = 8

func NewResyncPolicy(threshold float64) *ResyncPolicy {
	if threshold <= 0 {
		threshold = 0.25
	}
	return &ResyncPolicy{threshold: threshold, reasons: make([]ResyncReason, 0, resyncReasonLimit)}
}

// NoteFrame counts one low priority frame queued for a connection.
func (p *ResyncPolicy) NoteFrame() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frames == ^uint64(0) {
		p.frames /= 2
		p.dropped /= 2
	}
	p.frames++
}

// NoteDrop counts one frame discarded before delivery.
func (p *ResyncPolicy) NoteDrop(connID uint64, reason string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropped++
	if len(p.reasons) < resyncReasonLimit {
		p.reasons = append(p.reasons, ResyncReason{ConnID: connID, Reason: reason})
	}
	p.evaluateLocked()
}

func (p *ResyncPolicy) evaluateLocked() {
	if p.pending || p.dropped == 0 {
		return
	}
	frames := max(p.frames, 1)
	if float64(p.dropped) >= float64(frames)*p.threshold {
		p.pending = true
	}
}

// Consume returns the pending signal and resets the window.
func (p *ResyncPolicy) Consume() (ResyncSignal, bool) {
	if p == nil {
		return ResyncSignal{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pending {
		return ResyncSignal{}, false
	}
	signal := ResyncSignal{
		Dropped: p.dropped,
		Frames:  p.frames,
		Reasons: append([]ResyncReason(nil), p.reasons...),
	}
	p.resetLocked()
	return signal, true
}

// Reset starts a fresh window; called whenever a full update goes out.
func (p *ResyncPolicy) Reset() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.resetLocked()
	p.mu.Unlock()
}

func (p *ResyncPolicy) resetLocked() {
	p.pending = false
	p.frames = 0
	p.dropped = 0
	p.reasons = p.reasons[:0]
}

func (s ResyncSignal) Summary() string {
	if s.Dropped == 0 && s.Frames == 0 {
		return ""
	}
	return fmt.Sprintf("dropped=%d frames=%d reasons=%v", s.Dropped, s.Frames, s.Reasons)
}
