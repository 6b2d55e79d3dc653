// Package hd44780 controls a HD44780 character LCD behind a PCF8574 I2C I/O
// expander, using a buffered, non-blocking transmission engine.
//
// See the examples for how to use this package.
package hd44780

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ovenworks/hd44780/txqueue"
	"periph.io/x/conn/v3/i2c"
)

// Opts is the configuration for the LCD.
type Opts struct {
	// Display geometry in character cells
	Rows int // 1, 2 or 4 (default: 2)
	Cols int // default: 16

	// Font5x10 selects the 5x10 dot character font instead of 5x8.
	// Only meaningful on single-row panels.
	Font5x10 bool

	// Backlight enables the backlight at startup.
	Backlight bool

	// Transmission engine tuning. Zero values select the engine defaults
	// (32 entries, 10ms, halt on the second consecutive error report).
	QueueDepth     int
	FullWait       time.Duration
	ErrorTolerance int
}

// Dev is the device handle for the LCD.
type Dev struct {
	// Communication
	i2c    *i2c.Dev
	tr     *i2cTransport
	engine *txqueue.Engine

	// Geometry
	rows, cols int

	// Backlight bit OR'd into every transfer. Atomic because the encoder
	// reads it from the engine's completion goroutine.
	backlight atomic.Uint32

	// Cached instruction argument bits, mutated by the settings API.
	mu          sync.Mutex
	entryDir    byte
	entryShift  byte
	dispState   byte
	cursorVis   byte
	cursorBlink byte
	funcLines   byte
	funcFont    byte
}

// NewI2C creates a new LCD device behind a PCF8574 expander on the given I2C
// bus. addr is the expander's 7-bit address (commonly 0x27 or 0x3F).
//
// The constructor runs the controller's 4-bit mode bootstrap with blocking
// transfers; everything after that goes through the asynchronous engine.
//
// opts can be nil to use defaults (2x16 display, backlight on).
func NewI2C(bus i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	if bus == nil {
		return nil, errors.New("hd44780: nil I2C bus")
	}
	if opts == nil {
		opts = &Opts{Rows: 2, Cols: 16, Backlight: true}
	}

	rows := opts.Rows
	if rows == 0 {
		rows = 2
	}
	cols := opts.Cols
	if cols == 0 {
		cols = 16
	}
	if rows != 1 && rows != 2 && rows != 4 {
		return nil, errors.New("hd44780: rows must be 1, 2 or 4")
	}
	if cols < 1 || cols > 40 {
		return nil, errors.New("hd44780: cols must be between 1 and 40")
	}

	d := &Dev{
		i2c:         &i2c.Dev{Bus: bus, Addr: addr},
		rows:        rows,
		cols:        cols,
		entryDir:    entryLTR,
		entryShift:  entryShiftOff,
		dispState:   displayOn,
		cursorVis:   cursorOff,
		cursorBlink: blinkOff,
		funcLines:   func2Line,
		funcFont:    func5x8,
	}
	if rows == 1 {
		d.funcLines = func1Line
	}
	if opts.Font5x10 {
		d.funcFont = func5x10
	}
	if opts.Backlight {
		d.backlight.Store(uint32(blOn))
	}

	d.tr = &i2cTransport{dev: d.i2c}
	engine, err := txqueue.New(txqueue.Config{
		Capacity:       opts.QueueDepth,
		FullWait:       opts.FullWait,
		ErrorTolerance: opts.ErrorTolerance,
	}, d.tr, d.encode)
	if err != nil {
		return nil, fmt.Errorf("hd44780: %w", err)
	}
	d.engine = engine
	d.tr.engine = engine

	if err := d.bootstrap(); err != nil {
		return nil, err
	}

	return d, nil
}

// bootstrap forces the controller into 4-bit bus mode and queues the initial
// settings.
//
// The mode-forcing transfers are blocking: until the controller accepts
// 4-bit transfers, the engine's 6-byte nibble blocks would be misread. The
// 8-bit function set is repeated three times so the controller lands in a
// known state whatever mode it was in before.
func (d *Dev) bootstrap() error {
	bl := byte(d.backlight.Load())

	buf := []byte{init8BitMode | bl, init8BitMode | bl | enBit, init8BitMode | bl}
	for i := 0; i < 3; i++ {
		if err := d.i2c.Tx(buf, nil); err != nil {
			return fmt.Errorf("hd44780: failed to force 8-bit mode: %w", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	buf = []byte{init4BitMode | bl, init4BitMode | bl | enBit, init4BitMode | bl}
	if err := d.i2c.Tx(buf, nil); err != nil {
		return fmt.Errorf("hd44780: failed to switch to 4-bit mode: %w", err)
	}

	d.mu.Lock()
	fs := instrFunction | funcBus4Bit | d.funcLines | d.funcFont
	em := d.entryModeInstr()
	dc := d.displayCtlInstr()
	d.mu.Unlock()
	if st := d.engine.SubmitAll(instrCmd(fs), instrCmd(em), instrCmd(dc)); st != txqueue.StatusOK {
		return fmt.Errorf("hd44780: failed to queue initial settings: %w", st.Err())
	}

	return d.Clear()
}

// encode expands one queued command into the 6-byte block the PCF8574
// carries: each nibble is presented once, strobed with EN high, then
// presented again with EN low. Called by the engine with its lock held, so
// it must not call back into the engine.
func (d *Dev) encode(c txqueue.Command) []byte {
	bl := byte(d.backlight.Load())
	hi := (c.Data & 0xF0) | c.Tag | bl
	lo := (c.Data << 4) | c.Tag | bl
	return []byte{hi, hi | enBit, hi, lo, lo | enBit, lo}
}

// entryModeInstr composes the entry mode set instruction from the cached
// bits. Caller holds d.mu.
func (d *Dev) entryModeInstr() byte {
	return instrEntryMode | d.entryDir | d.entryShift
}

// displayCtlInstr composes the display control instruction from the cached
// bits. Caller holds d.mu.
func (d *Dev) displayCtlInstr() byte {
	return instrDisplayCtl | d.dispState | d.cursorVis | d.cursorBlink
}

// WriteChar queues a single character for printing at the cursor position.
func (d *Dev) WriteChar(c byte) error {
	return d.engine.Submit(dataCmd(c)).Err()
}

// WriteString queues a string for printing. It stops at the first character
// the engine refuses.
func (d *Dev) WriteString(s string) error {
	for i := 0; i < len(s); i++ {
		if err := d.WriteChar(s[i]); err != nil {
			return err
		}
	}
	return nil
}

// Clear wipes the display and moves the cursor home.
//
// The clear instruction takes the controller far longer than a regular
// transfer, so three no-op entries are queued behind it to keep the bus
// occupied while it settles.
func (d *Dev) Clear() error {
	return d.engine.SubmitAll(
		instrCmd(instrClear), instrCmd(0), instrCmd(0), instrCmd(0),
	).Err()
}

// Home moves the cursor to row 0, column 0 and undoes any display shift.
// SetCursor(0, 0) is cheaper if the display has not been shifted.
func (d *Dev) Home() error {
	return d.engine.SubmitAll(
		instrCmd(instrHome), instrCmd(0), instrCmd(0), instrCmd(0),
	).Err()
}

// SetCursor moves the cursor to the given row and column, counting from 0.
func (d *Dev) SetCursor(row, col int) error {
	if row < 0 || row >= d.rows || col < 0 || col >= d.cols {
		return errors.New("hd44780: cursor position out of range")
	}
	return d.engine.Submit(instrCmd(instrSetDDRAM | (rowAddr[row] + byte(col)))).Err()
}

// SetBacklight sets the backlight state to be applied with the next queued
// transfer, without spending a queue entry.
func (d *Dev) SetBacklight(on bool) {
	if on {
		d.backlight.Store(uint32(blOn))
	} else {
		d.backlight.Store(uint32(blOff))
	}
}

// SetBacklightNow sets the backlight state and queues a no-op instruction so
// the change reaches the expander immediately.
func (d *Dev) SetBacklightNow(on bool) error {
	d.SetBacklight(on)
	return d.engine.Submit(instrCmd(0)).Err()
}

// SetLeftToRight sets the printing direction to left-to-right.
func (d *Dev) SetLeftToRight() error {
	d.mu.Lock()
	d.entryDir = entryLTR
	b := d.entryModeInstr()
	d.mu.Unlock()
	return d.engine.Submit(instrCmd(b)).Err()
}

// SetRightToLeft sets the printing direction to right-to-left.
func (d *Dev) SetRightToLeft() error {
	d.mu.Lock()
	d.entryDir = entryRTL
	b := d.entryModeInstr()
	d.mu.Unlock()
	return d.engine.Submit(instrCmd(b)).Err()
}

// SetAutoScroll shifts the display contents after each printed character.
// The shift direction follows the printing direction.
func (d *Dev) SetAutoScroll(on bool) error {
	d.mu.Lock()
	if on {
		d.entryShift = entryShiftOn
	} else {
		d.entryShift = entryShiftOff
	}
	b := d.entryModeInstr()
	d.mu.Unlock()
	return d.engine.Submit(instrCmd(b)).Err()
}

// SetDisplay switches the display on or off without losing its contents.
func (d *Dev) SetDisplay(on bool) error {
	d.mu.Lock()
	if on {
		d.dispState = displayOn
	} else {
		d.dispState = displayOff
	}
	b := d.displayCtlInstr()
	d.mu.Unlock()
	return d.engine.Submit(instrCmd(b)).Err()
}

// SetCursorVisible shows or hides the cursor.
func (d *Dev) SetCursorVisible(on bool) error {
	d.mu.Lock()
	if on {
		d.cursorVis = cursorOn
	} else {
		d.cursorVis = cursorOff
	}
	b := d.displayCtlInstr()
	d.mu.Unlock()
	return d.engine.Submit(instrCmd(b)).Err()
}

// SetCursorBlink sets cursor blinking on or off.
func (d *Dev) SetCursorBlink(on bool) error {
	d.mu.Lock()
	if on {
		d.cursorBlink = blinkOn
	} else {
		d.cursorBlink = blinkOff
	}
	b := d.displayCtlInstr()
	d.mu.Unlock()
	return d.engine.Submit(instrCmd(b)).Err()
}

// ShiftCursorRight moves the cursor one cell to the right.
func (d *Dev) ShiftCursorRight() error {
	return d.engine.Submit(instrCmd(instrShift | shiftCursor | shiftRight)).Err()
}

// ShiftCursorLeft moves the cursor one cell to the left.
func (d *Dev) ShiftCursorLeft() error {
	return d.engine.Submit(instrCmd(instrShift | shiftCursor | shiftLeft)).Err()
}

// ShiftDisplayRight shifts the display contents one cell to the right.
func (d *Dev) ShiftDisplayRight() error {
	return d.engine.Submit(instrCmd(instrShift | shiftDisplay | shiftRight)).Err()
}

// ShiftDisplayLeft shifts the display contents one cell to the left.
func (d *Dev) ShiftDisplayLeft() error {
	return d.engine.Submit(instrCmd(instrShift | shiftDisplay | shiftLeft)).Err()
}

// Pause parks the driver's bus activity so another device on the same I2C
// bus can be addressed. An in-flight transfer finishes naturally; poll
// IsPaused to know when the bus is actually free.
func (d *Dev) Pause() {
	d.engine.Pause()
}

// Resume restarts queued transfers after Pause, and is also the recovery
// path out of a transport fault.
func (d *Dev) Resume() error {
	return d.engine.Resume().Err()
}

// IsPaused reports whether the driver is paused and no transfer is
// outstanding, i.e. the bus is free for other traffic.
func (d *Dev) IsPaused() bool {
	return d.engine.IsPaused()
}

// IsFull reports whether the command queue is at capacity.
func (d *Dev) IsFull() bool {
	return d.engine.IsFull()
}

// Status returns the engine's most recent latched outcome. A transport
// fault raised from the completion context is only observable here or on a
// later queued call.
func (d *Dev) Status() txqueue.Status {
	return d.engine.LastStatus()
}

// Halt switches the display off. It implements conn.Resource.
func (d *Dev) Halt() error {
	return d.SetDisplay(false)
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("hd44780.Dev{%dx%d}", d.cols, d.rows)
}
