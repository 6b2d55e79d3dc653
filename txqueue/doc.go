// Package txqueue provides the transmission engine used by the hd44780
// driver: a fixed-capacity command queue drained one asynchronous transfer
// at a time into a Transport.
//
// The engine mediates between synchronous producers ("queue this command")
// and a transport that carries a single transfer at a time and signals its
// outcome from another goroutine. A successful Submit on an idle engine
// starts a drain cycle; each completion notification dequeues nothing (the
// head was already dequeued when its transfer started) and hands the next
// command to the transport, until the queue is empty.
//
// Three gates decide whether the next transfer starts:
//
//   - Pause/Resume park the engine so the underlying bus can carry
//     unrelated traffic. An outstanding transfer finishes naturally;
//     IsPaused reports when the bus is truly free.
//   - Backpressure: a producer hitting a full queue waits a bounded window
//     for a slot. If the window elapses the command is discarded and the
//     engine is paused, since a queue that cannot drain within the window
//     has a wedged consumer.
//   - Fault: a transport error condition observed on consecutive transfer
//     attempts halts the engine until an explicit Resume. A single
//     occurrence is only watched.
//
// Commands are transmitted in strict FIFO order relative to successful
// enqueues. Pausing, faults, and initiation failures gate whether the next
// transfer starts; they never reorder or duplicate queued commands.
package txqueue
