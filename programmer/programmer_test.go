package programmer

import (
	"log"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestOpenFPGALoaderArgs(t *testing.T) {
	o := NewOpenFPGALoader(Args{Board: "alveo_u50", Frequency: 6000000, Logger: zap.NewNop()})
	args := o.buildArgs("/tmp/top.bit")
	log.Printf("%v", args)
	got := strings.Join(args, " ")
	if got != "-b alveo_u50 --freq 6000000 /tmp/top.bit" {
		t.Fatal("wrong args:", got)
	}
}

func TestOpenFPGALoaderArgsPart(t *testing.T) {
	o := NewOpenFPGALoader(Args{Part: "xc7a35t", Logger: zap.NewNop()})
	got := strings.Join(o.buildArgs(""), " ")
	if got != "--fpga-part xc7a35t" {
		t.Fatal("wrong args:", got)
	}
}

func TestVivadoProgramTcl(t *testing.T) {
	v := NewVivadoLab(Args{Part: "xcu50", HwServer: "lab-server:3121", Logger: zap.NewNop()})
	tcl := v.programTcl("/opt/bit_file/top.bit")
	log.Print(tcl)
	for _, want := range []string{
		"connect_hw_server -url lab-server:3121",
		"get_hw_devices xcu50*",
		"set_property PROGRAM.FILE {/opt/bit_file/top.bit}",
		"program_hw_devices [current_hw_device]",
	} {
		if !strings.Contains(tcl, want) {
			t.Fatal("missing tcl line:", want)
		}
	}
}

func TestVivadoDefaultHwServer(t *testing.T) {
	v := NewVivadoLab(Args{Logger: zap.NewNop()})
	if !strings.Contains(v.connectTcl(), defaultHwServer) {
		t.Fatal("default hw_server not applied")
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New("quartus", Args{}); err == nil {
		t.Fatal("expected unknown backend error")
	}
	if _, err := New("vivado", Args{}); err != nil {
		t.Fatal(err)
	}
	if _, err := New("openfpgaloader", Args{}); err != nil {
		t.Fatal(err)
	}
}

func TestEachLine(t *testing.T) {
	var lines []string
	eachLine([]byte("TEMP 79.05\nVCCINT 0.983\n"), func(l string) {
		lines = append(lines, l)
	})
	if len(lines) != 2 || lines[0] != "TEMP 79.05" {
		t.Fatal("wrong lines:", lines)
	}
}
