package x11

import (
	"testing"

	"github.com/BurntSushi/xgbutil/ewmh"
)

func edidWithName(name string, slot int) []byte {
	block := make([]byte, 128)
	copy(block, edidHeader)
	off := edidDescriptorStart + slot*edidDescriptorSize
	block[off+3] = edidTagMonitorName
	text := []byte(name + "\n")
	for len(text) < 13 {
		text = append(text, ' ')
	}
	copy(block[off+5:], text)
	return block
}

func TestParseEDIDName(t *testing.T) {
	tests := []struct {
		name string
		edid []byte
		want string
	}{
		{"first slot", edidWithName("DELL U2720Q", 0), "DELL U2720Q"},
		{"last slot", edidWithName("LG TV", 3), "LG TV"},
		{"too short", make([]byte, 64), ""},
		{"bad header", make([]byte, 128), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseEDIDName(tt.edid); got != tt.want {
				t.Fatalf("ParseEDIDName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWorkAreaFromStruts_BottomPanelOnlyAffectsCoveredMonitor(t *testing.T) {
	left := Geometry{X: 0, Y: 0, Width: 1920, Height: 1080}
	right := Geometry{X: 1920, Y: 0, Width: 1920, Height: 1080}
	panel := ewmh.WmStrutPartial{Bottom: 40, BottomStartX: 0, BottomEndX: 1919}

	got := workAreaFromStruts(left, 3840, 1080, []ewmh.WmStrutPartial{panel})
	want := Geometry{X: 0, Y: 0, Width: 1920, Height: 1040}
	if got != want {
		t.Fatalf("left work area = %+v, want %+v", got, want)
	}

	got = workAreaFromStruts(right, 3840, 1080, []ewmh.WmStrutPartial{panel})
	if got != right {
		t.Fatalf("right work area = %+v, want unchanged %+v", got, right)
	}
}
