//Package diag holds the post-flash sanity checks.
package diag

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/alveoutils/bitflash/programmer"
	"github.com/alveoutils/bitflash/types"

	"github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"
)

const echoPayloadLen = 256

type Diag struct {
	Prog     programmer.Programmer
	DevPath  string
	BaudRate uint
	Logger   *zap.Logger
}

// Sensors reads die temperature and core voltage through the backend.
func (d *Diag) Sensors() (types.SensorReadings, error) {
	return d.Prog.ReadSensors()
}

// Examine queries the backend for device identity.
func (d *Diag) Examine() (types.DeviceInfo, error) {
	return d.Prog.Examine()
}

// UARTEcho pushes a random payload through the board's console echo
// path and checks the summed checksum of what comes back.
func (d *Diag) UARTEcho() error {
	options := serial.OpenOptions{
		PortName:              d.DevPath,
		BaudRate:              d.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		InterCharacterTimeout: 500,
	}
	port, err := serial.Open(options)
	if err != nil {
		return fmt.Errorf("diag: %v", err)
	}
	defer port.Close()

	payload := make([]byte, echoPayloadLen)
	rand.Read(payload)
	return echo(port, payload, d.Logger)
}

func echo(rw io.ReadWriter, payload []byte, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	checksumTx := checksum(payload)
	if _, err := rw.Write(payload); err != nil {
		return fmt.Errorf("diag: write: %v", err)
	}
	received := make([]byte, len(payload))
	if _, err := io.ReadFull(rw, received); err != nil {
		return fmt.Errorf("diag: read back: %v", err)
	}
	checksumRx := checksum(received)
	logger.Debug("uart echo",
		zap.String("tx", fmt.Sprintf("0x%04X", checksumTx)),
		zap.String("rx", fmt.Sprintf("0x%04X", checksumRx)))
	if checksumTx != checksumRx {
		return fmt.Errorf("diag: echo mismatch, sent 0x%04X got 0x%04X", checksumTx, checksumRx)
	}
	logger.Info("uart echo passed", zap.Int("bytes", len(payload)))
	return nil
}

func checksum(buf []byte) uint16 {
	var sum uint32
	for _, b := range buf {
		sum += uint32(b)
	}
	return uint16(sum & 0xFFFF)
}
