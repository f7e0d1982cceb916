//Package programmer drives the external FPGA programming tools.
//Both backends are invoked as black boxes, only their command lines
//and exit codes are ours.
package programmer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os/exec"

	"github.com/alveoutils/bitflash/types"

	"go.uber.org/zap"
)

// ErrNotSupported marks operations the underlying tool has no
// equivalent of. Callers decide whether that is fatal.
var ErrNotSupported = errors.New("operation not supported by this backend")

type Programmer interface {
	Name() string
	Detect() error
	Program(bitstreamPath string) error
	Verify(bitstreamPath string) error
	Examine() (types.DeviceInfo, error)
	ReadSensors() (types.SensorReadings, error)
}

type Args struct {
	TargetDevice string
	Part         string
	Board        string
	Frequency    int
	BinPath      string
	HwServer     string
	Logger       *zap.Logger
}

func New(backend string, args Args) (Programmer, error) {
	if args.Logger == nil {
		args.Logger = zap.NewNop()
	}
	switch backend {
	case "vivado", "vivado_lab":
		return NewVivadoLab(args), nil
	case "openfpgaloader":
		return NewOpenFPGALoader(args), nil
	default:
		return nil, fmt.Errorf("unknown backend %q, want vivado or openfpgaloader", backend)
	}
}

// runTool execs the given command line and returns the combined
// output. The output is always logged line by line at debug level so
// a failing tool run can be reconstructed.
func runTool(logger *zap.Logger, bin string, args ...string) ([]byte, error) {
	logger.Debug("exec", zap.String("bin", bin), zap.Strings("args", args))
	cmd := exec.Command(bin, args...)
	out, err := cmd.CombinedOutput()
	eachLine(out, func(line string) {
		logger.Debug("tool", zap.String("out", line))
	})
	if err != nil {
		return out, fmt.Errorf("%s: %v", bin, err)
	}
	return out, nil
}

func eachLine(out []byte, fn func(line string)) {
	scanner := bufio.NewScanner(bytes.NewBuffer(out))
	scanner.Split(bufio.ScanLines)
	for scanner.Scan() {
		fn(scanner.Text())
	}
}
