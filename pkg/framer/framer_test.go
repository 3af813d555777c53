package framer

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	data := []byte{0x8E, 0x01, 0xAA, 0xBB, 0xCC}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, data); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadFrame = %x, want %x", got, data)
	}
}

func TestReadFrameBadPreamble(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00})
	_, err := ReadFrame(buf)
	var fe *Error
	if !errors.As(err, &fe) || fe.Kind != KindBadPreamble {
		t.Fatalf("ReadFrame err = %v, want KindBadPreamble", err)
	}
}

func TestReadFrameBadCrc(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	_, err := ReadFrame(bytes.NewReader(corrupted))
	var fe *Error
	if !errors.As(err, &fe) || fe.Kind != KindBadCrc {
		t.Fatalf("ReadFrame err = %v, want KindBadCrc", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x01, 0x02})
	_, err := ReadFrame(buf)
	var fe *Error
	if !errors.As(err, &fe) || fe.Kind != KindTruncated {
		t.Fatalf("ReadFrame err = %v, want KindTruncated", err)
	}
}

func TestReadIMEI(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x00, 0x0F, '1', '2', '3', '4', '5', '6', '7', '8', '9', '0', '1', '2', '3', '4', '5'})
	imei, err := ReadIMEI(buf)
	if err != nil {
		t.Fatalf("ReadIMEI: %v", err)
	}
	if imei != "123456789012345" {
		t.Errorf("ReadIMEI = %q, want %q", imei, "123456789012345")
	}
}
