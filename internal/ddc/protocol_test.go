package ddc

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeGetVCP(t *testing.T) {
	tests := []struct {
		code byte
		want []byte
	}{
		{CodeBrightness, []byte{0x51, 0x82, 0x01, 0x10, 0xAC}},
		{CodeInputSource, []byte{0x51, 0x82, 0x01, 0x60, 0xDC}},
	}
	for _, tt := range tests {
		if got := EncodeGetVCP(tt.code); !bytes.Equal(got, tt.want) {
			t.Fatalf("EncodeGetVCP(%#x) = % x, want % x", tt.code, got, tt.want)
		}
	}
}

func TestEncodeSetVCP(t *testing.T) {
	got := EncodeSetVCP(CodeInputSource, 0x11)
	want := []byte{0x51, 0x84, 0x03, 0x60, 0x00, 0x11, 0xC9}
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodeSetVCP() = % x, want % x", got, want)
	}
}

func replyFor(rc, code byte, max, cur uint16) []byte {
	b := []byte{0x6E, 0x88, 0x02, rc, code, 0x00, byte(max >> 8), byte(max), byte(cur >> 8), byte(cur)}
	return append(b, checksum(0x50, b))
}

func TestDecodeGetVCPReply(t *testing.T) {
	reply, err := DecodeGetVCPReply(replyFor(0, CodeInputSource, 18, 17), CodeInputSource)
	if err != nil {
		t.Fatalf("DecodeGetVCPReply() error = %v", err)
	}
	if reply.Current != 17 || reply.Max != 18 || reply.Code != CodeInputSource {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestDecodeGetVCPReplyErrors(t *testing.T) {
	bad := replyFor(0, CodeInputSource, 18, 17)
	bad[len(bad)-1] ^= 0xFF

	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"null message", []byte{0x6E, 0x80, 0xBE}, ErrNoReply},
		{"short", []byte{0x6E, 0x88, 0x02, 0x00}, ErrNoReply},
		{"bad checksum", bad, ErrNoReply},
		{"unsupported", replyFor(1, CodeInputSource, 0, 0), ErrUnsupported},
		{"wrong code", replyFor(0, CodeBrightness, 100, 50), ErrNoReply},
		{"bad header", append([]byte{0x6F}, replyFor(0, CodeInputSource, 1, 1)[1:]...), ErrNoReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeGetVCPReply(tt.in, CodeInputSource)
			if !errors.Is(err, tt.want) {
				t.Fatalf("DecodeGetVCPReply() error = %v, want %v", err, tt.want)
			}
		})
	}
}
