package lsp

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestJSONRPCFramingMultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	msg1 := []byte(`{"jsonrpc":"2.0","method":"one"}`)
	msg2 := []byte(`{"jsonrpc":"2.0","method":"two"}`)

	if err := writeMessage(&buf, msg1); err != nil {
		t.Fatalf("write message 1: %v", err)
	}
	if err := writeMessage(&buf, msg2); err != nil {
		t.Fatalf("write message 2: %v", err)
	}

	reader := bufio.NewReader(&buf)
	for i, want := range [][]byte{msg1, msg2} {
		got, err := readMessage(reader)
		if err != nil {
			t.Fatalf("read message %d: %v", i+1, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("message %d = %s", i+1, got)
		}
	}
	if _, err := readMessage(reader); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after last message, got %v", err)
	}
}

func TestJSONRPCHeaderErrors(t *testing.T) {
	for name, input := range map[string]string{
		"missing length": "Content-Type: x\r\n\r\n{}",
		"bad length":     "Content-Length: abc\r\n\r\n{}",
	} {
		if _, err := readMessage(bufio.NewReader(strings.NewReader(input))); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
