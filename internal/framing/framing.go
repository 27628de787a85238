// Package framing implements the Content-Length framing used on the analysis
// server socket.
//
// A frame is an ASCII header block, the separator "\r\n\r\n" and a UTF-8
// body. The only header that carries meaning is Content-Length, the byte
// length of the body:
//
//	Content-Length: 11\r\n
//	\r\n
//	hello world
//
// Decode is pure and can be called repeatedly on a growing buffer; it reports
// ErrContentIncomplete until the declared number of body bytes has arrived.
// ReadFrame wraps that loop around an io.Reader and is shared by the client
// and the server.
package framing

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Separator terminates the header block.
const Separator = "\r\n\r\n"

var (
	// ErrHeaderMissing means the buffer holds no header separator yet.
	ErrHeaderMissing = errors.New("header missing")
	// ErrContentLengthMissing means no header line declares the body length.
	ErrContentLengthMissing = errors.New("content length missing")
	// ErrContentLengthConflict means two Content-Length headers disagree.
	ErrContentLengthConflict = errors.New("conflicting content length headers")
	// ErrContentIncomplete means fewer body bytes than declared have arrived.
	// It is the only decode error a reader should retry on.
	ErrContentIncomplete = errors.New("content incomplete")
	// ErrContentOverflow means more body bytes than declared were received.
	ErrContentOverflow = errors.New("content overflow")
	// ErrContentTooLarge means the declared length exceeds the reader's limit.
	ErrContentTooLarge = errors.New("content too large")
)

var contentLengthPattern = regexp.MustCompile(`(?i)^content-length:[ \t]*(\d+)[ \t]*$`)

// Encode frames body with a Content-Length header.
func Encode(body string) []byte {
	header := "Content-Length: " + strconv.Itoa(len(body)) + Separator
	buf := make([]byte, 0, len(header)+len(body))
	buf = append(buf, header...)
	buf = append(buf, body...)
	return buf
}

// Decode extracts the body of a single complete frame from buf.
func Decode(buf []byte) (string, error) {
	return decode(buf, 0)
}

// decode is Decode with an optional upper bound on the declared length.
// The bound is checked before the body arrives so an oversized frame is
// rejected without buffering it.
func decode(buf []byte, maxLen int) (string, error) {
	idx := bytes.Index(buf, []byte(Separator))
	if idx < 0 {
		return "", ErrHeaderMissing
	}

	declared, err := contentLength(string(buf[:idx]))
	if err != nil {
		return "", err
	}
	if maxLen > 0 && declared > maxLen {
		return "", fmt.Errorf("%w: %d bytes declared, limit is %d", ErrContentTooLarge, declared, maxLen)
	}

	body := buf[idx+len(Separator):]
	switch {
	case len(body) < declared:
		return "", ErrContentIncomplete
	case len(body) > declared:
		return "", fmt.Errorf("%w: %d bytes declared, %d received", ErrContentOverflow, declared, len(body))
	}
	return string(body), nil
}

func contentLength(header string) (int, error) {
	found := -1
	for _, line := range strings.Split(header, "\r\n") {
		m := contentLengthPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("%w: %s overflows int", ErrContentTooLarge, m[1])
		}
		if found >= 0 && found != n {
			return 0, fmt.Errorf("%w: %d and %d", ErrContentLengthConflict, found, n)
		}
		found = n
	}
	if found < 0 {
		return 0, ErrContentLengthMissing
	}
	return found, nil
}

// Retryable reports whether err only means that more bytes are needed.
func Retryable(err error) bool {
	return errors.Is(err, ErrContentIncomplete) || errors.Is(err, ErrHeaderMissing)
}
