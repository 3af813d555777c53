package codec12

import (
	"encoding/binary"
	"errors"
	"testing"
)

func buildResponse(quantity byte, typ byte, body string, closeQuantity byte) []byte {
	buf := []byte{codecID, quantity, typ}
	var lenField [4]byte
	binary.BigEndian.PutUint32(lenField[:], uint32(len(body)))
	buf = append(buf, lenField[:]...)
	buf = append(buf, []byte(body)...)
	buf = append(buf, closeQuantity)
	return buf
}

func TestBuildRequest(t *testing.T) {
	data := BuildRequest("setdigout 1")
	if data[0] != codecID || data[1] != quantityOfCmds || data[2] != requestType {
		t.Fatalf("BuildRequest envelope = %v", data[:3])
	}
	length := binary.BigEndian.Uint32(data[3:7])
	if int(length) != len("setdigout 1") {
		t.Errorf("cmd_length = %d, want %d", length, len("setdigout 1"))
	}
	if string(data[7:7+length]) != "setdigout 1" {
		t.Errorf("command body = %q", data[7:7+length])
	}
	if data[len(data)-1] != quantityOfCmds {
		t.Errorf("trailing quantity = %d, want %d", data[len(data)-1], quantityOfCmds)
	}
}

func TestParseResponseOK(t *testing.T) {
	data := buildResponse(0x01, responseType, "setdigout 1: OK", 0x01)
	resp, err := ParseResponse(data)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if !resp.OK {
		t.Errorf("OK = false, want true for body %q", resp.Body)
	}
}

func TestParseResponseFailureBody(t *testing.T) {
	data := buildResponse(0x01, responseType, "ERROR", 0x01)
	resp, err := ParseResponse(data)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if resp.OK {
		t.Errorf("OK = true, want false for body %q", resp.Body)
	}
}

func TestParseResponseBadCodec(t *testing.T) {
	data := buildResponse(0x01, responseType, "OK", 0x01)
	data[0] = 0x08
	_, err := ParseResponse(data)
	var ce *Error
	if !errors.As(err, &ce) || ce.Kind != KindBadCodec {
		t.Fatalf("ParseResponse err = %v, want KindBadCodec", err)
	}
}

func TestParseResponseBadResponseType(t *testing.T) {
	data := buildResponse(0x01, 0x05, "OK", 0x01)
	_, err := ParseResponse(data)
	var ce *Error
	if !errors.As(err, &ce) || ce.Kind != KindBadResponseType {
		t.Fatalf("ParseResponse err = %v, want KindBadResponseType", err)
	}
}

func TestParseResponseQuantityMismatch(t *testing.T) {
	data := buildResponse(0x01, responseType, "OK", 0x02)
	_, err := ParseResponse(data)
	var ce *Error
	if !errors.As(err, &ce) || ce.Kind != KindQuantityMismatch {
		t.Fatalf("ParseResponse err = %v, want KindQuantityMismatch", err)
	}
}

func TestParseResponseTruncated(t *testing.T) {
	_, err := ParseResponse([]byte{codecID, 0x01})
	var ce *Error
	if !errors.As(err, &ce) || ce.Kind != KindTruncated {
		t.Fatalf("ParseResponse err = %v, want KindTruncated", err)
	}
}
