package hd44780

import "github.com/ovenworks/hd44780/txqueue"

// PCF8574 interface control bits. The expander's 8 outputs drive the LCD's
// 4-bit data bus (high nibble) plus register select, the enable strobe and
// the backlight transistor.
const (
	rsData  byte = 0x01 // register select: data register
	rsInstr byte = 0x00 // register select: instruction register
	enBit   byte = 0x04 // enable strobe
	blOn    byte = 0x08
	blOff   byte = 0x00
)

// HD44780 instruction bytes and their argument bits.
const (
	instrClear byte = 0x01
	instrHome  byte = 0x02

	instrEntryMode byte = 0x04
	entryRTL       byte = 0x02
	entryLTR       byte = 0x00
	entryShiftOn   byte = 0x01
	entryShiftOff  byte = 0x00

	instrDisplayCtl byte = 0x08
	displayOn       byte = 0x04
	displayOff      byte = 0x00
	cursorOn        byte = 0x02
	cursorOff       byte = 0x00
	blinkOn         byte = 0x01
	blinkOff        byte = 0x00

	instrShift   byte = 0x10
	shiftDisplay byte = 0x08
	shiftCursor  byte = 0x00
	shiftRight   byte = 0x04
	shiftLeft    byte = 0x00

	instrFunction byte = 0x20
	funcBus8Bit   byte = 0x10
	funcBus4Bit   byte = 0x00
	func2Line     byte = 0x08
	func1Line     byte = 0x00
	func5x10      byte = 0x04
	func5x8       byte = 0x00

	instrSetDDRAM byte = 0x80
)

// rowAddr maps a row number to its DDRAM base address. The interleaved
// layout is the one used by 2x16 and 4x20 panels.
var rowAddr = [4]byte{0x00, 0x40, 0x14, 0x54}

// Function-set nibbles sent during the bootstrap sequence, before the
// controller is in 4-bit mode.
const (
	init8BitMode byte = 0x30
	init4BitMode byte = 0x20
)

func dataCmd(b byte) txqueue.Command  { return txqueue.Command{Tag: rsData, Data: b} }
func instrCmd(b byte) txqueue.Command { return txqueue.Command{Tag: rsInstr, Data: b} }
