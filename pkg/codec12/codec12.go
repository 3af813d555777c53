// Package codec12 builds Codec 12 downlink command request frames and
// parses the device's Codec 12 response frames. Downlink commands are
// plain ASCII text ("setdigout 1", "setdigout 0", ...); the gateway issues
// them on the same TCP connection the device used to upload its AVL batch.
package codec12

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	codecID        = 0x0C
	requestType    = 0x05
	responseType   = 0x06
	quantityOfCmds = 0x01
)

// Kind distinguishes the sentinel errors callers branch on.
type Kind string

const (
	KindTruncated        Kind = "truncated"
	KindBadCodec         Kind = "bad_codec"
	KindBadResponseType  Kind = "bad_response_type"
	KindQuantityMismatch Kind = "quantity_mismatch"
)

// Error is a codec-12 failure tagged with its Kind.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Msg }

// BuildRequest builds the data field (the bytes framer.WriteFrame expects)
// for a Codec 12 command request.
//
//	[1B codec=0x0C][1B quantity=0x01][1B type=0x05][4B cmd_length]
//	[cmd_length bytes ASCII][1B quantity=0x01]
func BuildRequest(command string) []byte {
	cmdBytes := []byte(command)

	buf := make([]byte, 0, 3+4+len(cmdBytes)+1)
	buf = append(buf, codecID, quantityOfCmds, requestType)

	var lengthField [4]byte
	binary.BigEndian.PutUint32(lengthField[:], uint32(len(cmdBytes)))
	buf = append(buf, lengthField[:]...)

	buf = append(buf, cmdBytes...)
	buf = append(buf, quantityOfCmds)
	return buf
}

// Response is a parsed Codec 12 command response.
type Response struct {
	Body string
	OK   bool
}

// ParseResponse parses a Codec 12 response data field.
//
//	[1B codec=0x0C][1B quantity][1B type=0x06][4B resp_length]
//	[resp_length ASCII bytes][1B quantity]
func ParseResponse(data []byte) (Response, error) {
	if len(data) < 3+4+1 {
		return Response{}, &Error{Kind: KindTruncated, Msg: fmt.Sprintf("response data field too short: %d bytes", len(data))}
	}

	pos := 0
	id := data[pos]
	pos++
	if id != codecID {
		return Response{}, &Error{Kind: KindBadCodec, Msg: fmt.Sprintf("got %#02x, want %#02x", id, codecID)}
	}

	openQuantity := data[pos]
	pos++

	typ := data[pos]
	pos++
	if typ != responseType {
		return Response{}, &Error{Kind: KindBadResponseType, Msg: fmt.Sprintf("got %#02x, want %#02x", typ, responseType)}
	}

	if pos+4 > len(data) {
		return Response{}, &Error{Kind: KindTruncated, Msg: "missing response length field"}
	}
	respLength := binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4

	if pos+int(respLength) > len(data) {
		return Response{}, &Error{Kind: KindTruncated, Msg: fmt.Sprintf("response body truncated: want %d bytes, have %d", respLength, len(data)-pos)}
	}
	body := string(data[pos : pos+int(respLength)])
	pos += int(respLength)

	if pos >= len(data) {
		return Response{}, &Error{Kind: KindTruncated, Msg: "missing trailing quantity byte"}
	}
	closeQuantity := data[pos]

	if openQuantity != closeQuantity {
		return Response{}, &Error{Kind: KindQuantityMismatch, Msg: fmt.Sprintf("open=%d close=%d", openQuantity, closeQuantity)}
	}

	return Response{Body: body, OK: isOK(body)}, nil
}

// isOK is the device's success predicate: any response body containing the
// substring "OK" is success, anything else is failure. Factored into a
// named function per spec so the rule is replaceable without touching the
// parser.
func isOK(body string) bool {
	return strings.Contains(body, "OK")
}
