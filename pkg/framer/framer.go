// Package framer reads and writes the length-prefixed, CRC-checked frames
// that wrap both Codec 8E uplink data and Codec 12 downlink data, plus the
// distinct two-byte-length IMEI handshake frame.
package framer

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/satgroupe/fmb-gateway/pkg/crc16"
)

// Kind distinguishes the sentinel errors callers branch on.
type Kind string

const (
	KindTruncated   Kind = "truncated"
	KindBadPreamble Kind = "bad_preamble"
	KindBadCrc      Kind = "bad_crc"
)

// Error is a framing failure tagged with its Kind, so callers can branch on
// it without string matching.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Msg }

func truncated(msg string) error   { return &Error{Kind: KindTruncated, Msg: msg} }
func badPreamble(msg string) error { return &Error{Kind: KindBadPreamble, Msg: msg} }
func badCrc(msg string) error      { return &Error{Kind: KindBadCrc, Msg: msg} }

// ReadFrame reads one preamble-length-data-CRC frame from r and returns the
// data field (the bytes between the length and the CRC), already verified
// against the trailing CRC-16/IBM checksum.
//
//	[4B preamble=0x00000000][4B data_length][data_field][4B CRC16]
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, truncated(fmt.Sprintf("reading frame header: %v", err))
	}

	preamble := binary.BigEndian.Uint32(header[0:4])
	if preamble != 0 {
		return nil, badPreamble(fmt.Sprintf("got %#08x, want 0x00000000", preamble))
	}

	dataLength := binary.BigEndian.Uint32(header[4:8])
	data := make([]byte, dataLength)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, truncated(fmt.Sprintf("reading %d-byte data field: %v", dataLength, err))
	}

	var crcField [4]byte
	if _, err := io.ReadFull(r, crcField[:]); err != nil {
		return nil, truncated(fmt.Sprintf("reading trailing CRC: %v", err))
	}

	wantCRC := binary.BigEndian.Uint32(crcField[:]) & 0xFFFF
	gotCRC := uint32(crc16.Checksum(data))
	if gotCRC != wantCRC {
		return nil, badCrc(fmt.Sprintf("computed %#04x, frame says %#04x", gotCRC, wantCRC))
	}

	return data, nil
}

// WriteFrame writes data wrapped in the preamble-length-CRC envelope.
func WriteFrame(w io.Writer, data []byte) error {
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], 0)
	binary.BigEndian.PutUint32(header[4:8], uint32(len(data)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing data field: %w", err)
	}

	var crcField [4]byte
	binary.BigEndian.PutUint32(crcField[:], uint32(crc16.Checksum(data)))
	if _, err := w.Write(crcField[:]); err != nil {
		return fmt.Errorf("writing trailing CRC: %w", err)
	}
	return nil
}

// ReadIMEI reads the two-byte-length-prefixed ASCII IMEI handshake frame.
//
//	[2B length][length bytes ASCII]
func ReadIMEI(r io.Reader) (string, error) {
	var lengthField [2]byte
	if _, err := io.ReadFull(r, lengthField[:]); err != nil {
		return "", truncated(fmt.Sprintf("reading IMEI length: %v", err))
	}
	length := binary.BigEndian.Uint16(lengthField[:])

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", truncated(fmt.Sprintf("reading %d-byte IMEI body: %v", length, err))
	}
	return string(buf), nil
}
