package p2p

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	payload := []byte("hello bitcoin")
	encoded := encodeFrame("version", payload)

	f, err := readFrame(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if f.command != "version" {
		t.Errorf("command = %q, want %q", f.command, "version")
	}
	if !bytes.Equal(f.payload, payload) {
		t.Errorf("payload = %x, want %x", f.payload, payload)
	}
}

func TestReadFrameRejectsBadMagic(t *testing.T) {
	encoded := encodeFrame("ping", []byte{1, 2, 3, 4})
	encoded[0] ^= 0xFF

	if _, err := readFrame(bytes.NewReader(encoded)); err != errBadMagic {
		t.Errorf("err = %v, want %v", err, errBadMagic)
	}
}

func TestReadFrameRejectsBadChecksum(t *testing.T) {
	encoded := encodeFrame("ping", []byte{1, 2, 3, 4})
	encoded[20] ^= 0xFF

	if _, err := readFrame(bytes.NewReader(encoded)); err == nil {
		t.Error("expected checksum error, got nil")
	}
}

func TestReadFrameRejectsOversizePayload(t *testing.T) {
	var header [24]byte
	copy(header[0:4], []byte{0xF9, 0xBE, 0xB4, 0xD9})
	copy(header[4:16], "tx")
	header[16] = 0xFF
	header[17] = 0xFF
	header[18] = 0xFF
	header[19] = 0xFF // length = maxuint32, exceeds 32 MiB cap

	if _, err := readFrame(bytes.NewReader(header[:])); err == nil {
		t.Error("expected oversize error, got nil")
	}
}
