package programmer

import (
	"strconv"
	"strings"

	"github.com/alveoutils/bitflash/types"

	"go.uber.org/zap"
)

// OpenFPGALoader wraps the openFPGALoader executable. The tool does
// programming and detection only, there is no verify pass and no
// sensor access.
type OpenFPGALoader struct {
	args   Args
	logger *zap.Logger
}

func NewOpenFPGALoader(args Args) *OpenFPGALoader {
	return &OpenFPGALoader{args: args, logger: args.Logger}
}

func (o *OpenFPGALoader) Name() string { return "openFPGALoader" }

func (o *OpenFPGALoader) bin() string {
	if o.args.BinPath != "" {
		return o.args.BinPath
	}
	return "openFPGALoader"
}

func (o *OpenFPGALoader) buildArgs(bitstreamPath string) []string {
	var cmdArgs []string
	switch {
	case o.args.Board != "":
		cmdArgs = append(cmdArgs, "-b", o.args.Board)
	case o.args.Part != "":
		cmdArgs = append(cmdArgs, "--fpga-part", o.args.Part)
	}
	if o.args.Frequency > 0 {
		cmdArgs = append(cmdArgs, "--freq", strconv.Itoa(o.args.Frequency))
	}
	if bitstreamPath != "" {
		cmdArgs = append(cmdArgs, bitstreamPath)
	}
	return cmdArgs
}

func (o *OpenFPGALoader) Detect() error {
	_, err := runTool(o.logger, o.bin(), append(o.buildArgs(""), "--detect")...)
	return err
}

func (o *OpenFPGALoader) Program(bitstreamPath string) error {
	_, err := runTool(o.logger, o.bin(), o.buildArgs(bitstreamPath)...)
	return err
}

func (o *OpenFPGALoader) Verify(bitstreamPath string) error {
	return ErrNotSupported
}

// Examine parses the --detect listing:
//	index 0:
//		idcode 0x362d093
//		manufacturer xilinx
//		family artix a7
//		model  xc7a35
func (o *OpenFPGALoader) Examine() (info types.DeviceInfo, err error) {
	out, err := runTool(o.logger, o.bin(), append(o.buildArgs(""), "--detect")...)
	if err != nil {
		return info, err
	}
	eachLine(out, func(line string) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return
		}
		switch fields[0] {
		case "idcode":
			info.Serial = fields[1]
		case "model":
			info.Device = strings.Join(fields[1:], " ")
		case "family":
			if info.Firmware == "" {
				info.Firmware = strings.Join(fields[1:], " ")
			}
		}
	})
	info.Connection = "JTAG"
	return info, nil
}

func (o *OpenFPGALoader) ReadSensors() (types.SensorReadings, error) {
	return types.SensorReadings{}, ErrNotSupported
}
