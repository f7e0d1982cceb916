package programmer

import (
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/alveoutils/bitflash/types"

	"go.uber.org/zap"
)

const defaultHwServer = "localhost:3121"

// VivadoLab programs through the hardware server shipped with Vivado
// Lab Edition. Every operation is a generated batch-mode Tcl script.
type VivadoLab struct {
	args   Args
	logger *zap.Logger
}

func NewVivadoLab(args Args) *VivadoLab {
	return &VivadoLab{args: args, logger: args.Logger}
}

func (v *VivadoLab) Name() string { return "vivado_lab" }

func (v *VivadoLab) bin() string {
	if v.args.BinPath != "" {
		return v.args.BinPath
	}
	return "vivado_lab"
}

func (v *VivadoLab) hwServer() string {
	if v.args.HwServer != "" {
		return v.args.HwServer
	}
	return defaultHwServer
}

func (v *VivadoLab) connectTcl() string {
	var b strings.Builder
	fmt.Fprintf(&b, "open_hw_manager\n")
	fmt.Fprintf(&b, "connect_hw_server -url %s\n", v.hwServer())
	fmt.Fprintf(&b, "open_hw_target\n")
	if v.args.Part != "" {
		fmt.Fprintf(&b, "current_hw_device [lindex [get_hw_devices %s*] 0]\n", v.args.Part)
	} else {
		fmt.Fprintf(&b, "current_hw_device [lindex [get_hw_devices] 0]\n")
	}
	fmt.Fprintf(&b, "refresh_hw_device [current_hw_device]\n")
	return b.String()
}

func (v *VivadoLab) programTcl(bitstreamPath string) string {
	var b strings.Builder
	b.WriteString(v.connectTcl())
	fmt.Fprintf(&b, "set_property PROGRAM.FILE {%s} [current_hw_device]\n", bitstreamPath)
	fmt.Fprintf(&b, "program_hw_devices [current_hw_device]\n")
	fmt.Fprintf(&b, "refresh_hw_device [current_hw_device]\n")
	return b.String()
}

func (v *VivadoLab) verifyTcl(bitstreamPath string) string {
	var b strings.Builder
	b.WriteString(v.connectTcl())
	fmt.Fprintf(&b, "set_property PROGRAM.FILE {%s} [current_hw_device]\n", bitstreamPath)
	fmt.Fprintf(&b, "verify_hw_devices [current_hw_device]\n")
	return b.String()
}

func (v *VivadoLab) examineTcl() string {
	var b strings.Builder
	b.WriteString(v.connectTcl())
	fmt.Fprintf(&b, "puts \"PART [get_property PART [current_hw_device]]\"\n")
	fmt.Fprintf(&b, "puts \"DNA [get_property REGISTER.EFUSE.FUSE_DNA [current_hw_device]]\"\n")
	return b.String()
}

func (v *VivadoLab) sensorsTcl() string {
	var b strings.Builder
	b.WriteString(v.connectTcl())
	fmt.Fprintf(&b, "set xadc [get_hw_sysmons -of_objects [current_hw_device]]\n")
	fmt.Fprintf(&b, "refresh_hw_sysmon $xadc\n")
	fmt.Fprintf(&b, "puts \"TEMP [get_property TEMPERATURE $xadc]\"\n")
	fmt.Fprintf(&b, "puts \"VCCINT [get_property VCCINT $xadc]\"\n")
	return b.String()
}

// runTcl writes the script to a temp file and runs vivado_lab over it
// in batch mode. Tool ERROR lines are promoted to a real error even
// when the exit code is zero, vivado is not reliable about that.
func (v *VivadoLab) runTcl(script string) ([]byte, error) {
	tmp, err := ioutil.TempFile("", "bitflash-*.tcl")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err = tmp.WriteString(script); err != nil {
		tmp.Close()
		return nil, err
	}
	tmp.Close()

	out, err := runTool(v.logger, v.bin(), "-mode", "batch", "-nojournal", "-nolog", "-source", tmp.Name())
	if err != nil {
		return out, err
	}
	var toolErr string
	eachLine(out, func(line string) {
		if strings.HasPrefix(line, "ERROR:") && toolErr == "" {
			toolErr = line
		}
	})
	if toolErr != "" {
		return out, fmt.Errorf("vivado_lab: %s", toolErr)
	}
	return out, nil
}

func (v *VivadoLab) Detect() error {
	_, err := v.runTcl(v.connectTcl())
	return err
}

func (v *VivadoLab) Program(bitstreamPath string) error {
	_, err := v.runTcl(v.programTcl(bitstreamPath))
	return err
}

func (v *VivadoLab) Verify(bitstreamPath string) error {
	_, err := v.runTcl(v.verifyTcl(bitstreamPath))
	return err
}

func (v *VivadoLab) Examine() (info types.DeviceInfo, err error) {
	out, err := v.runTcl(v.examineTcl())
	if err != nil {
		return info, err
	}
	eachLine(out, func(line string) {
		if strings.HasPrefix(line, "PART ") {
			info.Device = strings.TrimSpace(strings.TrimPrefix(line, "PART "))
		}
		if strings.HasPrefix(line, "DNA ") {
			info.Serial = strings.TrimSpace(strings.TrimPrefix(line, "DNA "))
		}
	})
	info.Connection = "JTAG"
	if info.Device == "" {
		return info, fmt.Errorf("vivado_lab: no device reported")
	}
	return info, nil
}

func (v *VivadoLab) ReadSensors() (sr types.SensorReadings, err error) {
	out, err := v.runTcl(v.sensorsTcl())
	if err != nil {
		return sr, err
	}
	/*
		TEMP 79.05
		VCCINT 0.983
	*/
	eachLine(out, func(line string) {
		if strings.HasPrefix(line, "TEMP") {
			fields := strings.Fields(line)
			if len(fields) > 1 {
				sr.Temperature = fields[1]
			}
		}
		if strings.HasPrefix(line, "VCCINT") {
			fields := strings.Fields(line)
			if len(fields) > 1 {
				sr.VCCInt = fields[1]
			}
		}
	})
	if sr.Temperature == "" && sr.VCCInt == "" {
		return sr, fmt.Errorf("vivado_lab: no sysmon readings in output")
	}
	return sr, nil
}
