package ddc

import "fmt"

// VCP feature codes used by screenbridge.
const (
	CodeBrightness  byte = 0x10
	CodeInputSource byte = 0x60
)

// InputSource is a decoded value of VCP 0x60.
type InputSource struct {
	Code uint32
	Name string
}

// Known reports whether the code maps to a named input.
func (s InputSource) Known() bool {
	return s.Name != Unknown
}

func (s InputSource) String() string {
	return fmt.Sprintf("%s (%d)", s.Name, s.Code)
}

// Unknown is the name of any input code outside the MCCS table.
const Unknown = "Unknown"

var inputNames = map[uint32]string{
	1:  "VGA-1",
	2:  "VGA-2",
	3:  "DVI-1",
	4:  "DVI-2",
	5:  "Composite-1",
	6:  "Composite-2",
	7:  "S-Video-1",
	8:  "S-Video-2",
	9:  "Tuner-1",
	10: "Tuner-2",
	11: "Tuner-3",
	12: "Component-1",
	13: "Component-2",
	14: "Component-3",
	15: "DisplayPort-1",
	16: "DisplayPort-2",
	17: "HDMI-1",
	18: "HDMI-2",
	27: "USB-C",
}

// InputName maps an input source code to its name.
func InputName(code uint32) InputSource {
	if name, ok := inputNames[code]; ok {
		return InputSource{Code: code, Name: name}
	}
	return InputSource{Code: code, Name: Unknown}
}

// KnownInputs lists the inputs offered when choosing persona triggers,
// in the order a picker should show them.
func KnownInputs() []InputSource {
	codes := []uint32{15, 16, 17, 18, 27}
	out := make([]InputSource, 0, len(codes))
	for _, c := range codes {
		out = append(out, InputName(c))
	}
	return out
}
