// Package hd44780 controls a HD44780 character LCD behind a PCF8574 I2C I/O
// expander without ever blocking on the display.
//
// The HD44780 is the de facto standard controller for 1x8 up to 4x20
// character panels. The PCF8574 expander puts its 4-bit data bus plus the
// RS/EN control lines and the backlight behind a single I2C address, which
// makes the display cheap to wire and slow to talk to: every character costs
// a 6-byte I2C transfer.
//
// # Queued, non-blocking operation
//
// Instead of waiting out each transfer, this driver buffers commands in a
// fixed-capacity queue and drains it one asynchronous transfer at a time.
// API calls return as soon as the command is queued; transfer completions
// chain the next transfer from their own goroutine. The engine lives in the
// txqueue subpackage.
//
// When the queue is full, a call waits a bounded window (10ms by default)
// for a slot. If the queue cannot drain within the window the command is
// discarded and the driver pauses itself, on the grounds that the bus is
// wedged; Resume restarts it. A persistent I2C error condition, seen on
// consecutive transfer attempts, likewise halts the driver until Resume.
//
// # Basic Usage
//
//	package main
//
//	import (
//		"log"
//
//		"github.com/ovenworks/hd44780"
//		"periph.io/x/conn/v3/i2c/i2creg"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		// Initialize periph.io
//		if _, err := host.Init(); err != nil {
//			log.Fatal(err)
//		}
//
//		// Open the I2C bus
//		bus, err := i2creg.Open("")
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer bus.Close()
//
//		// Create the device (PCF8574 backpacks usually sit at 0x27 or 0x3F)
//		dev, err := hd44780.NewI2C(bus, 0x27, &hd44780.Opts{
//			Rows:      2,
//			Cols:      16,
//			Backlight: true,
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		dev.WriteString("Hello")
//		dev.SetCursor(1, 0)
//		dev.WriteString("World")
//	}
//
// # Sharing the bus
//
// If other devices sit on the same I2C bus, park the driver before talking
// to them:
//
//	dev.Pause()
//	for !dev.IsPaused() {
//		// an in-flight transfer is still finishing
//	}
//	// ... unrelated bus traffic ...
//	dev.Resume()
//
// IsPaused reports true only when the driver is paused and no transfer is
// outstanding, i.e. the bus is really free.
//
// # Error reporting
//
// Calls that queue work return an error as soon as the command cannot be
// accepted. Failures detected from the completion context (a persistent bus
// error, for instance) have no caller to report to; they are latched and
// observable through Status or the next queued call. No failure is fatal:
// every degraded state is recoverable with Resume.
//
// # Limitations
//
// - No busy-flag polling: the controller's settling time after Clear and
// Home is absorbed by padding the queue with no-op entries.
//
// - No custom character generation.
//
// - Row addressing is tuned for 2x16 and 4x20 panels; other geometries work
// but may map rows differently.
package hd44780
