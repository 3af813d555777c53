/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Command fmb-devicesim dials a running gateway, performs the IMEI
// handshake, drains any commands the gateway sends, uploads a small Codec
// 8E batch, and prints the acknowledgement. It exists to exercise the
// listener/session path end to end without real hardware.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/xid"

	"github.com/satgroupe/fmb-gateway/pkg/codec8e"
	"github.com/satgroupe/fmb-gateway/pkg/framer"
	"github.com/satgroupe/fmb-gateway/pkg/sockconn"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:12345", "gateway TCP address")
	imei := flag.String("imei", "123456789012345", "device IMEI to present")
	records := flag.Int("records", 2, "number of AVL records to upload")
	flag.Parse()

	raw, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devicesim: dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	conn := sockconn.Wrap(raw, xid.New().String(), nil)
	defer conn.Close()

	if err := handshake(conn, *imei); err != nil {
		fmt.Fprintf(os.Stderr, "devicesim: handshake: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("devicesim: IMEI accepted")

	if err := drainCommands(conn); err != nil {
		fmt.Fprintf(os.Stderr, "devicesim: draining commands: %v\n", err)
		os.Exit(1)
	}

	n, err := uploadBatch(conn, *records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devicesim: uploading batch: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("devicesim: gateway acknowledged %d records\n", n)
}

func handshake(conn net.Conn, imei string) error {
	var lengthField [2]byte
	binary.BigEndian.PutUint16(lengthField[:], uint16(len(imei)))
	if _, err := conn.Write(lengthField[:]); err != nil {
		return err
	}
	if _, err := conn.Write([]byte(imei)); err != nil {
		return err
	}

	var ack [1]byte
	if _, err := conn.Read(ack[:]); err != nil {
		return err
	}
	if ack[0] != 0x01 {
		return fmt.Errorf("gateway rejected IMEI (ack=%#02x)", ack[0])
	}
	return nil
}

// drainCommands is a best-effort listen for queued downlink commands the
// gateway may send immediately after the handshake: it replies OK to
// anything it receives within a short window, then moves on. A real device
// would keep listening indefinitely; the simulator only needs to unblock
// the gateway's drain phase so ingest can proceed.
func drainCommands(conn net.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	defer conn.SetReadDeadline(time.Time{})

	for {
		data, err := framer.ReadFrame(conn)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil
			}
			return nil // any other framing error here just means no more commands
		}
		fmt.Printf("devicesim: received command frame (%d bytes), replying OK\n", len(data))
		if err := framer.WriteFrame(conn, buildOKResponse()); err != nil {
			return err
		}
	}
}

func buildOKResponse() []byte {
	body := []byte("OK")
	buf := make([]byte, 0, 3+4+len(body)+1)
	buf = append(buf, 0x0C, 0x01, 0x06)
	var lengthField [4]byte
	binary.BigEndian.PutUint32(lengthField[:], uint32(len(body)))
	buf = append(buf, lengthField[:]...)
	buf = append(buf, body...)
	buf = append(buf, 0x01)
	return buf
}

func uploadBatch(conn net.Conn, n int) (uint32, error) {
	_ = conn.SetReadDeadline(time.Time{})

	recs := make([]codec8e.Record, n)
	base := time.Now().UTC().Truncate(time.Second)
	for i := range recs {
		recs[i] = codec8e.Record{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Priority:  0,
			Longitude: -122.4194,
			Latitude:  37.7749,
			Speed:     0,
			IOs:       []codec8e.IoPoint{{IOID: 179, Value: 0}},
		}
	}

	if err := framer.WriteFrame(conn, codec8e.Encode(recs)); err != nil {
		return 0, err
	}

	var ackBuf [4]byte
	read := 0
	for read < 4 {
		m, err := conn.Read(ackBuf[read:])
		if err != nil {
			return 0, err
		}
		read += m
	}
	return binary.BigEndian.Uint32(ackBuf[:]), nil
}
