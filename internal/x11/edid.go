package x11

import (
	"bytes"
	"strings"
)

var edidHeader = []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

const (
	edidDescriptorStart = 54
	edidDescriptorSize  = 18
	edidDescriptorCount = 4
	edidTagMonitorName  = 0xFC
)

// ParseEDIDName extracts the monitor name descriptor from an EDID base block.
// It returns "" when the block is malformed or carries no name.
func ParseEDIDName(edid []byte) string {
	if len(edid) < 128 || !bytes.Equal(edid[:8], edidHeader) {
		return ""
	}
	for i := 0; i < edidDescriptorCount; i++ {
		d := edid[edidDescriptorStart+i*edidDescriptorSize : edidDescriptorStart+(i+1)*edidDescriptorSize]
		// Display descriptors start with a zero pixel clock.
		if d[0] != 0 || d[1] != 0 || d[2] != 0 || d[3] != edidTagMonitorName {
			continue
		}
		text := d[5:]
		if idx := bytes.IndexByte(text, 0x0A); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(string(text))
	}
	return ""
}
