package ddc

import (
	"errors"
	"fmt"
)

// I2C addresses and opcodes from the DDC/CI standard.
const (
	SlaveAddr = 0x37
	hostAddr  = 0x51
	// replyAddr is the 8-bit write address of the display (0x37<<1).
	replyAddr = 0x6E

	opGetVCP      = 0x01
	opGetVCPReply = 0x02
	opSetVCP      = 0x03

	getReplyLen = 11
)

var (
	// ErrUnsupported is returned when the monitor rejects a VCP code.
	ErrUnsupported = errors.New("vcp code not supported")
	// ErrNoReply is returned when the monitor answers with a null message or
	// the reply cannot be decoded.
	ErrNoReply = errors.New("no reply from monitor")
)

// FeatureReply is a decoded Get VCP Feature reply.
type FeatureReply struct {
	Code    byte
	Type    byte
	Max     uint32
	Current uint32
}

func checksum(seed byte, b []byte) byte {
	sum := seed
	for _, v := range b {
		sum ^= v
	}
	return sum
}

// EncodeGetVCP builds a Get VCP Feature request for code.
func EncodeGetVCP(code byte) []byte {
	msg := []byte{hostAddr, 0x82, opGetVCP, code}
	return append(msg, checksum(replyAddr, msg))
}

// EncodeSetVCP builds a Set VCP Feature request.
func EncodeSetVCP(code byte, value uint16) []byte {
	msg := []byte{hostAddr, 0x84, opSetVCP, code, byte(value >> 8), byte(value)}
	return append(msg, checksum(replyAddr, msg))
}

// DecodeGetVCPReply parses the reply to a Get VCP Feature request.
func DecodeGetVCPReply(b []byte, code byte) (FeatureReply, error) {
	if len(b) >= 3 && b[0] == replyAddr && b[1] == 0x80 && b[2] == 0xBE {
		return FeatureReply{}, ErrNoReply
	}
	if len(b) < getReplyLen {
		return FeatureReply{}, fmt.Errorf("short reply (%d bytes): %w", len(b), ErrNoReply)
	}
	b = b[:getReplyLen]
	if b[0] != replyAddr || b[1] != 0x88 || b[2] != opGetVCPReply {
		return FeatureReply{}, fmt.Errorf("unexpected reply header % x: %w", b[:3], ErrNoReply)
	}
	if want := checksum(0x50, b[:getReplyLen-1]); b[getReplyLen-1] != want {
		return FeatureReply{}, fmt.Errorf("checksum mismatch (got %#x, want %#x): %w", b[getReplyLen-1], want, ErrNoReply)
	}
	switch b[3] {
	case 0:
	case 1:
		return FeatureReply{}, ErrUnsupported
	default:
		return FeatureReply{}, fmt.Errorf("result code %d: %w", b[3], ErrNoReply)
	}
	if b[4] != code {
		return FeatureReply{}, fmt.Errorf("reply for code %#x, asked %#x: %w", b[4], code, ErrNoReply)
	}
	return FeatureReply{
		Code:    b[4],
		Type:    b[5],
		Max:     uint32(b[6])<<8 | uint32(b[7]),
		Current: uint32(b[8])<<8 | uint32(b[9]),
	}, nil
}
