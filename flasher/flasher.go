//Package flasher runs the programming flow and, in serve mode, the
//status/control API.
package flasher

import (
	j "encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/alveoutils/bitflash/bitstream"
	"github.com/alveoutils/bitflash/boardman"
	"github.com/alveoutils/bitflash/diag"
	"github.com/alveoutils/bitflash/monitor"
	"github.com/alveoutils/bitflash/programmer"
	"github.com/alveoutils/bitflash/types"

	"github.com/gorilla/mux"
	"github.com/gorilla/rpc"
	"github.com/gorilla/rpc/json"
	"github.com/jinzhu/copier"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var atom = zap.NewAtomicLevel()
var logger *zap.Logger

func selectZapLevel(loglevel string) zapcore.Level {
	var level zapcore.Level
	switch loglevel {
	case "debug":
		level = zap.DebugLevel
	case "info":
		level = zap.InfoLevel
	case "error":
		level = zap.ErrorLevel
	default:
		level = zap.InfoLevel
	}
	return level
}

func initLogger(loglevel string) *zap.Logger {
	level := selectZapLevel(loglevel)
	encoderCfg := zap.NewProductionEncoderConfig()
	logger = zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		atom,
	))
	defer logger.Sync()
	atom.SetLevel(level)
	return logger
}

//Flasher do everything
type Flasher struct {
	TargetDevice string
	Backend      string
	Part         string
	Board        string
	Frequency    int

	BitDir    string
	Bitstream string
	Verify    bool

	VivadoBin string
	LoaderBin string
	HwServer  string

	DevPath  string
	BaudRate uint
	MuxNums  int

	WebEnable bool
	WebListen string

	LogLevel       string
	Progress       bool
	ProgramSeconds int

	logger *zap.Logger
	prog   programmer.Programmer

	mu      sync.Mutex // protects following
	state   types.FlashState
	current string
	lastErr string
}

func (f *Flasher) setState(s types.FlashState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Flasher) setupProgrammer() error {
	bin := f.LoaderBin
	if f.Backend == "vivado" || f.Backend == "vivado_lab" {
		bin = f.VivadoBin
	}
	prog, err := programmer.New(f.Backend, programmer.Args{
		TargetDevice: f.TargetDevice,
		Part:         f.Part,
		Board:        f.Board,
		Frequency:    f.Frequency,
		BinPath:      bin,
		HwServer:     f.HwServer,
		Logger:       f.logger,
	})
	if err != nil {
		return err
	}
	f.prog = prog
	return nil
}

func (f *Flasher) fail(err error) error {
	f.mu.Lock()
	f.state = types.Failed
	f.lastErr = err.Error()
	f.mu.Unlock()
	f.logger.Error("flash failed", zap.Error(err))
	return err
}

//FlashMain runs the whole programming flow once and reports the
//outcome as its error value.
func (f *Flasher) FlashMain() error {
	log.SetOutput(os.Stdout)
	f.logger = initLogger(f.LogLevel)

	if f.TargetDevice == "" {
		return f.failEarly(fmt.Errorf("TARGET_DEVICE not defined in config"))
	}
	if err := f.setupProgrammer(); err != nil {
		return f.failEarly(err)
	}

	f.setState(types.Detecting)
	f.logger.Info("step 1/5: environment check", zap.String("backend", f.prog.Name()))
	if err := f.prog.Detect(); err != nil {
		return f.fail(fmt.Errorf("environment check: %v", err))
	}

	f.logger.Info("step 2/5: locating bitstream", zap.String("bitdir", f.BitDir))
	path := f.Bitstream
	if path == "" {
		located, count, err := bitstream.Locate(f.BitDir)
		if err != nil {
			return f.fail(err)
		}
		if count > 1 {
			f.logger.Warn("multiple .bit files, using newest",
				zap.Int("count", count), zap.String("file", located))
		}
		path = located
	}
	info, err := bitstream.ParseFile(path)
	if err != nil {
		return f.fail(fmt.Errorf("bitstream validation: %v", err))
	}
	f.logger.Info("bitstream ok",
		zap.String("design", info.Design),
		zap.String("part", info.Part),
		zap.String("built", info.Date+" "+info.Time),
		zap.Uint32("payload", info.Length))
	if info.Part != "" && !bitstream.PartMatches(info.Part, f.TargetDevice) {
		f.logger.Warn("bitstream part does not look like the target device",
			zap.String("part", info.Part), zap.String("target", f.TargetDevice))
	}
	f.mu.Lock()
	f.current = path
	f.mu.Unlock()

	f.logger.Info("step 3/5: device init", zap.Int("boards", f.MuxNums))
	muxed := f.MuxNums > 1
	if muxed {
		if err := boardman.Open(); err != nil {
			return f.fail(err)
		}
		defer boardman.Close()
		boardman.InitConsoleLevel()
	}

	boards := f.MuxNums
	if boards < 1 {
		boards = 1
	}
	for board := 1; board <= boards; board++ {
		if muxed {
			boardman.SelectJTAG(uint8(board))
			boardman.SelectReset(uint8(board))
			f.logger.Info("selected board", zap.Int("board", board))
		}

		f.setState(types.Programming)
		f.logger.Info("step 4/5: programming",
			zap.String("bitstream", path), zap.String("target", f.TargetDevice))
		var bar *progressBar
		if f.Progress {
			bar = startProgress(os.Stderr, "Transferring bitstream", f.programEstimate())
		}
		err = f.prog.Program(path)
		if bar != nil {
			bar.Stop(err == nil)
		}
		if err != nil {
			return f.fail(fmt.Errorf("programming: %v", err))
		}

		f.logger.Info("step 5/5: verifying")
		if f.Verify {
			f.setState(types.Verifying)
			switch err := f.prog.Verify(path); err {
			case nil:
			case programmer.ErrNotSupported:
				f.logger.Info("verify not supported by backend, skipping")
			default:
				return f.fail(fmt.Errorf("verification: %v", err))
			}
		}
	}

	f.setState(types.Done)
	f.logger.Info("programming completed", zap.String("bitstream", path))
	return nil
}

// failEarly covers errors raised before the logger exists.
func (f *Flasher) failEarly(err error) error {
	f.mu.Lock()
	f.state = types.Failed
	f.lastErr = err.Error()
	f.mu.Unlock()
	if f.logger != nil {
		f.logger.Error("flash failed", zap.Error(err))
	} else {
		log.Print(err)
	}
	return err
}

//Reload re-reads the flasher after a config change. On a bad new
//config the previous settings are kept.
func (f *Flasher) Reload() {
	var prev Flasher
	copier.Copy(&prev, f)
	log.Print("Reloading flasher")
	atom.SetLevel(selectZapLevel(f.LogLevel))
	if err := f.setupProgrammer(); err != nil {
		f.logger.Warn("reload failed, keeping previous settings", zap.Error(err))
		copier.Copy(f, &prev)
	}
}

//ExamineMain prints the device identity header.
func (f *Flasher) ExamineMain() error {
	f.logger = initLogger(f.LogLevel)
	if err := f.setupProgrammer(); err != nil {
		return err
	}
	info, err := f.prog.Examine()
	if err != nil {
		return err
	}
	printHeader(os.Stdout, f.TargetDevice, info)
	return nil
}

func printHeader(w io.Writer, target string, info types.DeviceInfo) {
	fmt.Fprintln(w, "=========================================================")
	fmt.Fprintln(w, "==              Device Identity                        ==")
	fmt.Fprintln(w, "=========================================================")
	fmt.Fprintf(w, "Target Device: %s\n", target)
	fmt.Fprintf(w, "Detected:      %s\n", info.Device)
	fmt.Fprintf(w, "Connection:    %s\n", info.Connection)
	fmt.Fprintf(w, "Serial No.:    %s\n", info.Serial)
	if info.Firmware != "" {
		fmt.Fprintf(w, "Family:        %s\n", info.Firmware)
	}
}

//DiagMain runs one named diagnostic.
func (f *Flasher) DiagMain(kind string) error {
	f.logger = initLogger(f.LogLevel)
	if err := f.setupProgrammer(); err != nil {
		return err
	}
	d := &diag.Diag{Prog: f.prog, DevPath: f.DevPath, BaudRate: f.BaudRate, Logger: f.logger}
	switch kind {
	case "sensors":
		sr, err := d.Sensors()
		if err != nil {
			return err
		}
		fmt.Printf("FPGA Die Temperature: %s C\n", sr.Temperature)
		fmt.Printf("VCCINT:               %s V\n", sr.VCCInt)
		return nil
	case "echo":
		return d.UARTEcho()
	default:
		return fmt.Errorf("unknown diagnostic %q, want sensors or echo", kind)
	}
}

//MonitorMain follows the board console until it drains.
func (f *Flasher) MonitorMain() error {
	f.logger = initLogger(f.LogLevel)
	m := monitor.New(f.DevPath, f.BaudRate, f.logger)
	if err := m.Start(); err != nil {
		return err
	}
	defer m.Stop()
	reportQuit := make(chan struct{})
	defer close(reportQuit)
	go func() {
		for {
			select {
			case <-reportQuit:
				return
			case <-time.After(time.Second * 10):
				f.logger.Info("console",
					zap.Float64("bytes_per_sec", m.Throughput(10)),
					zap.Uint64("total", m.Bytes()))
			}
		}
	}()
	m.Wait()
	return nil
}

//ServeMain flashes once, then keeps serving status and control.
func (f *Flasher) ServeMain() {
	if err := f.FlashMain(); err != nil {
		f.logger.Error("initial flash failed", zap.Error(err))
	}

	s := rpc.NewServer()
	s.RegisterCodec(json.NewCodec(), "application/json")
	s.RegisterCodec(json.NewCodec(), "application/json;charset=UTF-8")
	s.RegisterService(f, "flasher")
	r := mux.NewRouter()
	r.Handle("/rpc", s)

	r.HandleFunc("/bitflash/f_status", f.GetStatus)
	r.HandleFunc("/bitflash/f_ctrl", f.FlashCtrl)
	f.logger.Info("serving", zap.String("listen", f.WebListen))
	http.ListenAndServe(f.WebListen, r)
}

func (f *Flasher) snapshot() *types.FlashStates {
	f.mu.Lock()
	state := f.state
	if state == 0 {
		state = types.Idle
	}
	st := &types.FlashStates{
		Backend:   f.Backend,
		Target:    f.TargetDevice,
		Bitstream: f.current,
		State:     state,
		LastError: f.lastErr,
		Time:      time.Now().Unix(),
	}
	f.mu.Unlock()
	// Sensor readout goes through the same tool, keep clear of an
	// in-flight programming run.
	if f.prog != nil && state != types.Programming && state != types.Verifying {
		if sr, err := f.prog.ReadSensors(); err == nil {
			st.Temperature = sr.Temperature
			st.Voltage = sr.VCCInt
		}
	}
	return st
}

type FlashRPCArgs struct {
	Who string
}

type FlashRPCReply struct {
	StatusInfo string
}

func (f *Flasher) GetFlashStats(r *http.Request, args *FlashRPCArgs, reply *FlashRPCReply) error {
	res, _ := j.Marshal(f.snapshot())
	reply.StatusInfo = string(res)
	return nil
}

func (f *Flasher) GetStatus(w http.ResponseWriter, r *http.Request) {
	data := &types.BitflashStatus{Status: f.snapshot()}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	j.NewEncoder(w).Encode(data)
}

func (f *Flasher) FlashCtrl(w http.ResponseWriter, r *http.Request) {
	cmds, ok := r.URL.Query()["command"]
	if !ok || len(cmds[0]) < 1 {
		log.Println("Url Param 'command' is missing")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	cmd := cmds[0]
	switch cmd {
	case "programbitstream":
		if err := f.FlashMain(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	case "reload":
		f.Reload()
	default:
		http.Error(w, fmt.Sprintf("unknown command %q", cmd), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (f *Flasher) programEstimate() time.Duration {
	if f.ProgramSeconds > 0 {
		return time.Duration(f.ProgramSeconds) * time.Second
	}
	return defaultProgramDuration
}
