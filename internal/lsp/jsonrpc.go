package lsp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
)

// maxMessage caps a single payload; editors never send anything close.
const maxMessage = 64 << 20

func readMessage(r *bufio.Reader) ([]byte, error) {
	header, err := textproto.NewReader(r).ReadMIMEHeader()
	if err != nil {
		if errors.Is(err, io.EOF) && len(header) == 0 {
			return nil, io.EOF
		}
		return nil, err
	}
	value := header.Get("Content-Length")
	if value == "" {
		return nil, errors.New("missing Content-Length header")
	}
	length, err := strconv.Atoi(value)
	if err != nil || length < 0 || length > maxMessage {
		return nil, fmt.Errorf("invalid Content-Length %q", value)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func writeMessage(w io.Writer, payload []byte) error {
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
