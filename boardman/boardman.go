//Package boardman drives the GPIO mux on multi-board programming
//rigs. Pin sets come from the config int slices; board IDs are
//1-based and 0 releases the selection.
package boardman

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
	"github.com/stianeikeland/go-rpio"
)

var consolePins []int
var slot []int

// Open claims the GPIO memory range. Must be called once before any
// selection on rigs with muxnum > 1.
func Open() error {
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("boardman: %v", err)
	}
	return nil
}

func Close() {
	rpio.Close()
}

func InitConsoleLevel() {
	slot = viper.GetIntSlice("slot")
	consolePins = viper.GetIntSlice("uartio")

	for _, pin := range consolePins {
		rpio.Pin(pin).Output()
		rpio.Pin(pin).Low()
	}
}

// SelectConsole toggles the UART mux line of the given board.
func SelectConsole(boardID uint8) {
	if int(boardID) > len(slot) || boardID == 0 {
		log.Printf("boardman: no console slot for board %d", boardID)
		return
	}
	rpio.Pin(slot[boardID-1]).Toggle()
	log.Printf("board: %d, toggled pin: %d", boardID, slot[boardID-1])
}

// SelectJTAG routes the JTAG chain to the given board.
func SelectJTAG(boardID uint8) {
	selectPin(viper.GetIntSlice("jtagio"), boardID)
}

// SelectReset pulses the reset line of the given board.
func SelectReset(boardID uint8) {
	pins := viper.GetIntSlice("resetio")
	selectPin(pins, boardID)
	selectPin(pins, 0) // release pressed reset
}

func selectPin(pins []int, boardID uint8) {
	gpionums := len(pins)
	for _, pin := range pins {
		rpio.Pin(pin).Output()
	}
	for i, pin := range pins {
		id := (boardID >> uint(gpionums-1-i) & 1)
		if id == 1 {
			rpio.Pin(pin).High()
		} else {
			rpio.Pin(pin).Low()
		}
	}
}
