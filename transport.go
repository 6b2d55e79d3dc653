package hd44780

import (
	"errors"
	"sync/atomic"

	"github.com/ovenworks/hd44780/txqueue"
	"periph.io/x/conn/v3/i2c"
)

var errTransferInFlight = errors.New("hd44780: transfer already in flight")

// i2cTransport adapts the synchronous i2c.Dev to the engine's asynchronous
// Transport. BeginSend claims the single transfer slot and completes the
// write on its own goroutine, re-entering the engine through its
// notification methods. A failed write latches ErrorState until the next
// clean transfer, like a sticky hardware error register.
type i2cTransport struct {
	dev    *i2c.Dev
	engine *txqueue.Engine

	busy     atomic.Bool
	errState atomic.Bool
}

func (t *i2cTransport) BeginSend(p []byte) error {
	if !t.busy.CompareAndSwap(false, true) {
		return errTransferInFlight
	}
	go func() {
		err := t.dev.Tx(p, nil)
		t.errState.Store(err != nil)
		// Release the slot before notifying so the engine's next drain
		// step can start a transfer.
		t.busy.Store(false)
		if err != nil {
			t.engine.OnSendError()
			return
		}
		t.engine.OnSendComplete()
	}()
	return nil
}

func (t *i2cTransport) ErrorState() bool {
	return t.errState.Load()
}
