// Package txqueue buffers display commands and drains them, one asynchronous
// transfer at a time, into a Transport whose completions arrive from another
// goroutine. See doc.go for an overview.
package txqueue

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Command is one queued unit of work: an opaque register-select tag plus a
// payload byte. The engine never interprets either field; the injected encoder
// turns the pair into the byte block the transport actually carries.
type Command struct {
	Tag  byte
	Data byte
}

// Status is the outcome vocabulary of the engine. The zero value is StatusOK.
type Status uint8

const (
	// StatusOK means the operation succeeded or was accepted.
	StatusOK Status = iota
	// StatusPausedAndFull means an enqueue hit a full queue while draining
	// was gated. The command is discarded without waiting, since nothing
	// will free a slot until the engine is resumed.
	StatusPausedAndFull
	// StatusFullTimeout means an enqueue waited the full backpressure window
	// for a slot and none opened. The command is discarded and the engine is
	// paused, on the grounds that a queue that cannot drain within the
	// window has a wedged consumer.
	StatusFullTimeout
	// StatusQueueEmpty means a dequeue or peek found no commands. Not
	// normally surfaced to callers.
	StatusQueueEmpty
	// StatusTxInitFailed means the transport refused to start a transfer.
	// The head command stays queued and is retried on the next trigger.
	StatusTxInitFailed
	// StatusTransportFault means the transport reported an error condition
	// on consecutive attempts. The engine halts until Resume is called; the
	// attempt that tripped the fault is abandoned.
	StatusTransportFault
)

// Sentinel errors matching the Status values, for callers that prefer the
// error idiom over status polling.
var (
	ErrPausedAndFull  = errors.New("txqueue: queue paused and full, command discarded")
	ErrFullTimeout    = errors.New("txqueue: queue full, wait window elapsed, engine paused")
	ErrQueueEmpty     = errors.New("txqueue: queue empty")
	ErrTxInitFailed   = errors.New("txqueue: transport send initiation failed")
	ErrTransportFault = errors.New("txqueue: persistent transport error, engine halted")
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPausedAndFull:
		return "paused and full"
	case StatusFullTimeout:
		return "full-queue timeout"
	case StatusQueueEmpty:
		return "queue empty"
	case StatusTxInitFailed:
		return "send initiation failed"
	case StatusTransportFault:
		return "transport fault"
	default:
		return fmt.Sprintf("txqueue.Status(%d)", uint8(s))
	}
}

// Err converts a Status to its sentinel error. StatusOK yields nil.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusPausedAndFull:
		return ErrPausedAndFull
	case StatusFullTimeout:
		return ErrFullTimeout
	case StatusQueueEmpty:
		return ErrQueueEmpty
	case StatusTxInitFailed:
		return ErrTxInitFailed
	case StatusTransportFault:
		return ErrTransportFault
	default:
		return fmt.Errorf("txqueue: unknown status %d", uint8(s))
	}
}

// Transport is the asynchronous send primitive the engine drains into.
//
// BeginSend only initiates the transfer: it must not block and must not call
// back into the engine from within the call. The surrounding system reports
// the transfer's outcome later by invoking the engine's OnSendComplete or
// OnSendError method from its own goroutine.
//
// ErrorState reports the transport's latched error condition, the equivalent
// of a sticky hardware error register. A clean transfer clears it.
type Transport interface {
	BeginSend(p []byte) error
	ErrorState() bool
}

// Defaults used by Config fields left zero.
const (
	DefaultCapacity       = 32
	DefaultFullWait       = 10 * time.Millisecond
	DefaultErrorTolerance = 1
)

// Config holds the engine tunables. The zero value selects the defaults.
type Config struct {
	// Capacity is the fixed number of commands the queue holds.
	Capacity int

	// FullWait bounds how long one enqueue attempt waits for a slot when
	// the queue is full before giving up and pausing the engine.
	FullWait time.Duration

	// ErrorTolerance is how many consecutive attempts may observe an active
	// transport error condition before the engine halts. The default of 1
	// halts on the second consecutive report: a single occurrence is
	// recorded and watched, a repeat is treated as persistent.
	ErrorTolerance int
}

// Engine is the transmission engine: a fixed-capacity FIFO of commands and
// the state machine that drains it into the Transport. All state is guarded
// by one mutex; the notification methods may be called concurrently with
// producer calls.
//
// The drain cycle is peek, transmit, then dequeue, so a command whose
// transfer cannot be initiated is never lost: it stays at the head of the
// queue for the next trigger.
type Engine struct {
	mu   sync.Mutex
	cond *sync.Cond

	tr     Transport
	encode func(Command) []byte

	buf   []Command
	read  int
	write int
	count int

	// flushing is true while a drain cycle owns the transport, i.e. a
	// transfer is outstanding.
	flushing bool
	paused   bool
	faulted  bool

	errSeen int
	last    Status

	fullWait time.Duration
	errTol   int
}

// New creates an Engine draining into tr. encode maps each command to the
// byte block BeginSend carries; it is called with the engine locked and must
// return a fresh slice on every call.
func New(cfg Config, tr Transport, encode func(Command) []byte) (*Engine, error) {
	if tr == nil {
		return nil, errors.New("txqueue: nil transport")
	}
	if encode == nil {
		return nil, errors.New("txqueue: nil encoder")
	}
	if cfg.Capacity < 0 {
		return nil, errors.New("txqueue: negative capacity")
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.FullWait <= 0 {
		cfg.FullWait = DefaultFullWait
	}
	if cfg.ErrorTolerance <= 0 {
		cfg.ErrorTolerance = DefaultErrorTolerance
	}

	e := &Engine{
		tr:       tr,
		encode:   encode,
		buf:      make([]Command, cfg.Capacity),
		fullWait: cfg.FullWait,
		errTol:   cfg.ErrorTolerance,
	}
	e.cond = sync.NewCond(&e.mu)
	return e, nil
}

// Submit enqueues c and, if the engine is idle and ungated, starts draining.
// When the queue is full the call waits up to the configured window for a
// slot; see StatusPausedAndFull and StatusFullTimeout for the two failure
// modes. The returned status is also latched for LastStatus.
func (e *Engine) Submit(c Command) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.enqueue(c)
	if st != StatusOK {
		e.last = st
		return st
	}
	st = e.trigger()
	e.last = st
	return st
}

// SubmitAll enqueues cmds in order and starts a single drain at the end.
// It stops at the first enqueue failure; commands enqueued before the
// failure stay queued.
func (e *Engine) SubmitAll(cmds ...Command) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, c := range cmds {
		if st := e.enqueue(c); st != StatusOK {
			e.last = st
			return st
		}
	}
	st := e.trigger()
	e.last = st
	return st
}

// Pause gates draining. Idempotent. An outstanding transfer finishes
// naturally; no further transfer is initiated until Resume.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Resume clears the pause gate and any transport fault. If nothing is in
// flight and the queue is non-empty, draining restarts immediately;
// otherwise the engine settles idle.
func (e *Engine) Resume() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.paused = false
	e.faulted = false
	if e.flushing || e.count == 0 {
		return StatusOK
	}
	e.flushing = true
	st := e.flushStep()
	e.last = st
	return st
}

// IsPaused reports whether draining is gated and no transfer is outstanding,
// i.e. the underlying bus is actually free for unrelated traffic.
func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return (e.paused || e.faulted) && !e.flushing
}

// IsFull reports whether the queue is at capacity.
func (e *Engine) IsFull() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count >= len(e.buf)
}

// Pending returns the number of queued commands not yet handed to the
// transport.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// LastStatus returns the most recent latched outcome. This is the only way
// to observe a StatusTransportFault raised from the notification context.
func (e *Engine) LastStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// OnSendComplete is the notification entry point for a finished transfer.
// It continues the drain with the next queued command, or settles the engine
// idle when the queue is empty or draining is gated.
func (e *Engine) OnSendComplete() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused || e.faulted {
		e.flushing = false
		e.last = StatusOK
		return
	}
	st := e.flushStep()
	if st == StatusQueueEmpty {
		// Drain finished cleanly.
		st = StatusOK
	}
	e.last = st
}

// OnSendError is the notification entry point for a transfer that failed
// without ever producing a completion. It releases the drain cycle so a
// later Submit or Resume can restart it instead of waiting forever on a
// completion that will not come.
func (e *Engine) OnSendError() {
	e.mu.Lock()
	e.flushing = false
	e.mu.Unlock()
}

// trigger starts a drain cycle unless one is running or gated.
// Caller holds e.mu.
func (e *Engine) trigger() Status {
	if e.flushing || e.paused || e.faulted {
		return StatusOK
	}
	e.flushing = true
	return e.flushStep()
}

// flushStep transmits the command at the head of the queue. On success the
// head is dequeued and the transfer is left outstanding; any failure ends
// the drain cycle, leaving the head (if any) queued for a later trigger.
// Caller holds e.mu.
func (e *Engine) flushStep() Status {
	c, ok := e.peek()
	if !ok {
		e.flushing = false
		return StatusQueueEmpty
	}
	st := e.beginTransfer(c)
	if st == StatusOK {
		e.dequeue()
		return StatusOK
	}
	e.flushing = false
	return st
}

// beginTransfer runs the fault check and hands the encoded command to the
// transport. Caller holds e.mu.
func (e *Engine) beginTransfer(c Command) Status {
	if e.tr.ErrorState() {
		if e.errSeen >= e.errTol {
			e.faulted = true
			e.errSeen = 0
			return StatusTransportFault
		}
		e.errSeen++
	} else {
		e.errSeen = 0
	}
	if err := e.tr.BeginSend(e.encode(c)); err != nil {
		return StatusTxInitFailed
	}
	return StatusOK
}

// enqueue inserts c, applying the backpressure policy when the queue is
// full: fail immediately if draining is gated, otherwise wait up to the
// configured window for a slot and pause the engine if none opens. The wait
// is evaluated once per call. Caller holds e.mu.
func (e *Engine) enqueue(c Command) Status {
	if e.count >= len(e.buf) {
		if e.paused || e.faulted {
			return StatusPausedAndFull
		}
		deadline := time.Now().Add(e.fullWait)
		wake := time.AfterFunc(e.fullWait, func() {
			// Taken so the broadcast cannot slip between the waiter's
			// deadline check and its cond.Wait.
			e.mu.Lock()
			e.cond.Broadcast()
			e.mu.Unlock()
		})
		defer wake.Stop()
		for e.count >= len(e.buf) {
			if e.paused || e.faulted {
				return StatusPausedAndFull
			}
			if !time.Now().Before(deadline) {
				e.paused = true
				return StatusFullTimeout
			}
			e.cond.Wait()
		}
	}
	e.buf[e.write] = c
	e.write = (e.write + 1) % len(e.buf)
	e.count++
	return StatusOK
}

// peek returns the head command without removing it. Caller holds e.mu.
func (e *Engine) peek() (Command, bool) {
	if e.count == 0 {
		return Command{}, false
	}
	return e.buf[e.read], true
}

// dequeue removes the head command and wakes any producer waiting for a
// slot. Caller holds e.mu with count > 0.
func (e *Engine) dequeue() {
	e.read = (e.read + 1) % len(e.buf)
	e.count--
	e.cond.Broadcast()
}
