// Package codec8e decodes and encodes Teltonika Codec 8 Extended AVL data
// fields: the GPS+IO record batches carried inside a framer.ReadFrame data
// field on uplink. Decode is a pure function of bytes in, records out (and
// an optional clock-substitution warning) — no I/O, no state, so it is
// exhaustively property-testable.
package codec8e

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const CodecID = 0x8E

// Kind distinguishes the sentinel errors callers branch on.
type Kind string

const (
	KindTruncated        Kind = "truncated"
	KindUnsupportedCodec Kind = "unsupported_codec"
	KindCountMismatch    Kind = "count_mismatch"
)

// Error is a decode failure tagged with its Kind.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Msg }

func truncated(format string, a ...any) error {
	return &Error{Kind: KindTruncated, Msg: fmt.Sprintf(format, a...)}
}

// Record is one decoded AVL row, with coordinates already scaled and the
// timestamp already in UTC seconds precision.
type Record struct {
	Timestamp  time.Time
	Priority   uint8
	Longitude  float64
	Latitude   float64
	Altitude   int16
	Angle      uint16
	Satellites uint8
	Speed      uint16
	EventIOID  uint16
	IOs        []IoPoint

	// BadTimestamp is true if the wire timestamp fell outside [0, 2^31-1]
	// seconds or otherwise failed to parse; Timestamp was substituted with
	// the decoder's wall-clock UTC in that case. The record is never
	// dropped for this reason.
	BadTimestamp bool
}

// IoPoint is one decoded IO element, value always stored as an unsigned
// 64-bit magnitude regardless of wire width.
type IoPoint struct {
	IOID  uint16
	Value uint64
}

// nowFunc is overridden in tests so BadTimestamp substitution is
// deterministic.
var nowFunc = func() time.Time { return time.Now().UTC() }

// cursor walks data with bounds-checked reads, turning any overrun into a
// uniform Truncated error instead of a panic.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) take(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, truncated("need %d bytes at offset %d, have %d", n, c.pos, c.remaining())
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) u8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) u16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *cursor) u32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *cursor) u64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Decode parses a Codec 8E AVL data field (as produced by framer.ReadFrame)
// into an ordered slice of Records. It consumes exactly the bytes of one
// well-formed data field and returns Truncated if data runs out early,
// UnsupportedCodec if the leading codec id isn't 0x8E, and CountMismatch if
// the leading and trailing record counts disagree.
func Decode(data []byte) ([]Record, error) {
	c := &cursor{data: data}

	codecID, err := c.u8()
	if err != nil {
		return nil, err
	}
	if codecID != CodecID {
		return nil, &Error{Kind: KindUnsupportedCodec, Msg: fmt.Sprintf("got %#02x, want %#02x", codecID, CodecID)}
	}

	nStart, err := c.u8()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, nStart)
	for i := uint8(0); i < nStart; i++ {
		rec, err := decodeRecord(c)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	nEnd, err := c.u8()
	if err != nil {
		return nil, err
	}
	if nStart != nEnd {
		return nil, &Error{Kind: KindCountMismatch, Msg: fmt.Sprintf("n_start=%d n_end=%d", nStart, nEnd)}
	}

	return records, nil
}

func decodeRecord(c *cursor) (Record, error) {
	var rec Record

	timestampMs, err := c.u64()
	if err != nil {
		return rec, err
	}

	priority, err := c.u8()
	if err != nil {
		return rec, err
	}
	rec.Priority = priority

	rawLon, err := c.u32()
	if err != nil {
		return rec, err
	}
	rawLat, err := c.u32()
	if err != nil {
		return rec, err
	}
	rec.Longitude = float64(int32(rawLon)) * 1e-7
	rec.Latitude = float64(int32(rawLat)) * 1e-7

	alt, err := c.u16()
	if err != nil {
		return rec, err
	}
	rec.Altitude = int16(alt)

	angle, err := c.u16()
	if err != nil {
		return rec, err
	}
	rec.Angle = angle

	sat, err := c.u8()
	if err != nil {
		return rec, err
	}
	rec.Satellites = sat

	speed, err := c.u16()
	if err != nil {
		return rec, err
	}
	rec.Speed = speed

	eventIOID, err := c.u16()
	if err != nil {
		return rec, err
	}
	rec.EventIOID = eventIOID

	// total_io_count is informational only; the decoder trusts the per-width
	// counts that follow, matching what devices actually send.
	if _, err := c.u16(); err != nil {
		return rec, err
	}

	ios, err := decodeIOs(c)
	if err != nil {
		return rec, err
	}
	rec.IOs = ios

	rec.Timestamp, rec.BadTimestamp = decodeTimestamp(timestampMs)

	return rec, nil
}

// decodeTimestamp converts a millisecond epoch timestamp to UTC seconds
// precision. Outside [0, 2^31-1] seconds, the decoder's wall-clock is
// substituted and bad=true is returned; the record is never dropped.
func decodeTimestamp(timestampMs uint64) (t time.Time, bad bool) {
	seconds := timestampMs / 1000
	if seconds > math.MaxInt32 {
		return nowFunc(), true
	}
	return time.Unix(int64(seconds), 0).UTC(), false
}

func decodeIOs(c *cursor) ([]IoPoint, error) {
	var ios []IoPoint

	widths := []struct {
		count    func() (uint16, error)
		valWidth int
	}{
		{c.u16, 1},
		{c.u16, 2},
		{c.u16, 4},
		{c.u16, 8},
	}

	for _, w := range widths {
		n, err := w.count()
		if err != nil {
			return nil, err
		}
		for i := uint16(0); i < n; i++ {
			id, err := c.u16()
			if err != nil {
				return nil, err
			}
			val, err := readFixedWidthValue(c, w.valWidth)
			if err != nil {
				return nil, err
			}
			ios = append(ios, IoPoint{IOID: id, Value: val})
		}
	}

	nx, err := c.u16()
	if err != nil {
		return nil, err
	}
	for i := uint16(0); i < nx; i++ {
		id, err := c.u16()
		if err != nil {
			return nil, err
		}
		length, err := c.u16()
		if err != nil {
			return nil, err
		}
		raw, err := c.take(int(length))
		if err != nil {
			return nil, err
		}
		ios = append(ios, IoPoint{IOID: id, Value: bigEndianMagnitude(raw)})
	}

	return ios, nil
}

func readFixedWidthValue(c *cursor, width int) (uint64, error) {
	switch width {
	case 1:
		v, err := c.u8()
		return uint64(v), err
	case 2:
		v, err := c.u16()
		return uint64(v), err
	case 4:
		v, err := c.u32()
		return uint64(v), err
	case 8:
		return c.u64()
	default:
		panic(fmt.Sprintf("unsupported IO width %d", width))
	}
}

// bigEndianMagnitude interprets raw as a big-endian unsigned integer,
// truncating to the low 64 bits if longer (variable-width IO elements are
// decoded as an unsigned magnitude per spec).
func bigEndianMagnitude(raw []byte) uint64 {
	var v uint64
	for _, b := range raw {
		v = (v << 8) | uint64(b)
	}
	return v
}

// Encode builds a Codec 8E data field from records, the inverse of Decode.
// It is not used by the gateway's runtime (the gateway only ever decodes
// uplink frames), but it makes the decode(encode(x))==x round-trip
// property directly testable and backs the device simulator tool.
func Encode(records []Record) []byte {
	buf := []byte{CodecID, byte(len(records))}
	for _, rec := range records {
		buf = encodeRecord(buf, rec)
	}
	buf = append(buf, byte(len(records)))
	return buf
}

func encodeRecord(buf []byte, rec Record) []byte {
	var tmp [8]byte

	binary.BigEndian.PutUint64(tmp[:], uint64(rec.Timestamp.Unix())*1000)
	buf = append(buf, tmp[:]...)

	buf = append(buf, rec.Priority)

	var tmp4 [4]byte
	binary.BigEndian.PutUint32(tmp4[:], uint32(int32(math.Round(rec.Longitude*1e7))))
	buf = append(buf, tmp4[:]...)
	binary.BigEndian.PutUint32(tmp4[:], uint32(int32(math.Round(rec.Latitude*1e7))))
	buf = append(buf, tmp4[:]...)

	var tmp2 [2]byte
	binary.BigEndian.PutUint16(tmp2[:], uint16(rec.Altitude))
	buf = append(buf, tmp2[:]...)
	binary.BigEndian.PutUint16(tmp2[:], rec.Angle)
	buf = append(buf, tmp2[:]...)
	buf = append(buf, rec.Satellites)
	binary.BigEndian.PutUint16(tmp2[:], rec.Speed)
	buf = append(buf, tmp2[:]...)
	binary.BigEndian.PutUint16(tmp2[:], rec.EventIOID)
	buf = append(buf, tmp2[:]...)
	binary.BigEndian.PutUint16(tmp2[:], uint16(len(rec.IOs)))
	buf = append(buf, tmp2[:]...)

	buf = encodeIOsByWidth(buf, rec.IOs, 1)
	buf = encodeIOsByWidth(buf, rec.IOs, 2)
	buf = encodeIOsByWidth(buf, rec.IOs, 4)
	buf = encodeIOsByWidth(buf, rec.IOs, 8)

	// No variable-width elements are produced by the encoder; the simulator
	// only needs to exercise the fixed-width lanes.
	binary.BigEndian.PutUint16(tmp2[:], 0)
	buf = append(buf, tmp2[:]...)

	return buf
}

func encodeIOsByWidth(buf []byte, ios []IoPoint, width int) []byte {
	var matched []IoPoint
	for _, io := range ios {
		if fitsWidth(io.Value, width) {
			matched = append(matched, io)
		}
	}

	var tmp2 [2]byte
	binary.BigEndian.PutUint16(tmp2[:], uint16(len(matched)))
	buf = append(buf, tmp2[:]...)
	for _, io := range matched {
		binary.BigEndian.PutUint16(tmp2[:], io.IOID)
		buf = append(buf, tmp2[:]...)
		buf = appendFixedWidthValue(buf, io.Value, width)
	}
	return buf
}

// fitsWidth reports whether value is the narrowest fixed width the encoder
// supports, so each IoPoint round-trips through exactly one width lane.
func fitsWidth(value uint64, width int) bool {
	switch width {
	case 1:
		return value <= math.MaxUint8
	case 2:
		return value > math.MaxUint8 && value <= math.MaxUint16
	case 4:
		return value > math.MaxUint16 && value <= math.MaxUint32
	case 8:
		return value > math.MaxUint32
	default:
		return false
	}
}

func appendFixedWidthValue(buf []byte, value uint64, width int) []byte {
	switch width {
	case 1:
		return append(buf, byte(value))
	case 2:
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(value))
		return append(buf, tmp[:]...)
	case 4:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(value))
		return append(buf, tmp[:]...)
	case 8:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], value)
		return append(buf, tmp[:]...)
	default:
		panic(fmt.Sprintf("unsupported IO width %d", width))
	}
}
