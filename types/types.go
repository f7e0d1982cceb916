package types

type FlashState int

const (
	Idle FlashState = iota + 1
	Detecting
	Programming
	Verifying
	Done
	Failed
)

// DeviceInfo is what a backend can tell us about the connected board.
type DeviceInfo struct {
	Device     string `json:"device"`
	Serial     string `json:"serial"`
	Connection string `json:"connection"`
	Firmware   string `json:"firmware,omitempty"`
}

type SensorReadings struct {
	Temperature string `json:"temperature"`
	VCCInt      string `json:"vccint"`
}

type FlashStates struct {
	Backend     string     `json:"backend"`
	Target      string     `json:"target"`
	Bitstream   string     `json:"bitstream"`
	State       FlashState `json:"state"`
	Temperature string     `json:"temperature"`
	Voltage     string     `json:"voltage"`
	LastError   string     `json:"lasterror,omitempty"`
	Time        int64      `json:"time"`
}

type BitflashStatus struct {
	Status *FlashStates `json:"status"`
}
