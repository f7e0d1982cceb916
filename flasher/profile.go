package flasher

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DeviceProfile is an optional per-device section of the config file:
//
//	devices:
//	  xilinx_u50_gen3x16_xdma_201920_3:
//	    backend: vivado
//	    part: xcu50
//	    hw_server: localhost:3121
type DeviceProfile struct {
	Backend   string `mapstructure:"backend"`
	Part      string `mapstructure:"part"`
	Board     string `mapstructure:"board"`
	Frequency int    `mapstructure:"frequency"`
	HwServer  string `mapstructure:"hw_server"`
}

// ApplyProfile overlays the non-empty fields of a device profile onto
// the flasher. raw is the profile subtree as viper hands it out.
func ApplyProfile(f *Flasher, raw interface{}) error {
	if raw == nil {
		return nil
	}
	var p DeviceProfile
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("device profile: %v", err)
	}
	if p.Backend != "" {
		f.Backend = p.Backend
	}
	if p.Part != "" {
		f.Part = p.Part
	}
	if p.Board != "" {
		f.Board = p.Board
	}
	if p.Frequency > 0 {
		f.Frequency = p.Frequency
	}
	if p.HwServer != "" {
		f.HwServer = p.HwServer
	}
	return nil
}
