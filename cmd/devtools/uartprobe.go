package main

import (
	"bufio"
	"flag"
	"log"
	"path/filepath"

	"github.com/alveoutils/bitflash/boardman"

	"github.com/jacobsa/go-serial/serial"
	"github.com/spf13/viper"
)

// Raw console probe for board bring-up. Dumps whatever the board
// prints after programming, optionally routing the UART mux first.
func main() {
	cfg := flag.String("cfg", "prog_config.txt", "config file path")
	dev := flag.String("dev", "/dev/ttyUSB1", "serial device")
	baud := flag.Uint("baud", 115200, "baud rate")
	board := flag.Int("board", 0, "console mux slot to select, 0 for none")
	flag.Parse()

	viper.SetConfigFile(*cfg)
	if filepath.Ext(*cfg) == ".txt" {
		viper.SetConfigType("properties")
	}
	if err := viper.ReadInConfig(); err != nil {
		log.Print("no config file, mux pin sets unavailable")
	}

	if *board > 0 {
		if err := boardman.Open(); err != nil {
			log.Fatal(err)
		}
		defer boardman.Close()
		boardman.InitConsoleLevel()
		boardman.SelectConsole(uint8(*board))
	}

	port, err := serial.Open(serial.OpenOptions{
		PortName:        *dev,
		BaudRate:        *baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 4,
	})
	if err != nil {
		log.Panic("Port", err)
	}
	defer port.Close()

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		log.Print(scanner.Text())
	}
}
