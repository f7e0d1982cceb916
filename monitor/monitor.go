//Package monitor follows a board's UART console after programming.
package monitor

import (
	"bufio"
	"io"
	"sync/atomic"
	"time"

	"github.com/alveoutils/bitflash/statistics"

	"github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"
)

type Monitor struct {
	DevPath  string
	BaudRate uint

	logger  *zap.Logger
	port    io.ReadWriteCloser
	quit    chan struct{}
	done    chan struct{}
	rate    *statistics.Rate
	byteCnt uint64
	prevCnt uint64
}

func New(devPath string, baudRate uint, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		DevPath:  devPath,
		BaudRate: baudRate,
		logger:   logger,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		rate:     &statistics.Rate{},
	}
}

func (m *Monitor) initPort() error {
	options := serial.OpenOptions{
		PortName:        m.DevPath,
		BaudRate:        m.BaudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 4,
	}
	port, err := serial.Open(options)
	if err != nil {
		return err
	}
	m.port = port
	return nil
}

func (m *Monitor) Start() error {
	if err := m.initPort(); err != nil {
		m.logger.Error("Port", zap.Error(err))
		return err
	}
	m.logger.Info("uart monitor started",
		zap.String("device", m.DevPath),
		zap.Uint("baudrate", m.BaudRate))
	go m.follow(m.port)
	go m.sampleRate()
	return nil
}

// follow relays console lines into the structured log until the
// reader drains or Stop is called.
func (m *Monitor) follow(r io.Reader) {
	defer close(m.done)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		atomic.AddUint64(&m.byteCnt, uint64(len(line))+1)
		m.logger.Info("uart", zap.String("line", line))
	}
	if err := scanner.Err(); err != nil {
		m.logger.Warn("uart monitor", zap.Error(err))
	}
}

func (m *Monitor) sampleRate() {
	for {
		select {
		case <-m.quit:
			return
		case <-time.After(time.Second * 1):
			cnt := atomic.LoadUint64(&m.byteCnt)
			m.rate.Add(float64(cnt - m.prevCnt))
			m.prevCnt = cnt
		}
	}
}

// Throughput reports average console bytes per second over the recent
// window.
func (m *Monitor) Throughput(windowSeconds int) float64 {
	return m.rate.RecentNAvg(windowSeconds)
}

func (m *Monitor) Bytes() uint64 {
	return atomic.LoadUint64(&m.byteCnt)
}

// Wait blocks until the console stream ends.
func (m *Monitor) Wait() {
	<-m.done
}

func (m *Monitor) Stop() {
	close(m.quit)
	if m.port != nil {
		m.port.Close()
	}
}
