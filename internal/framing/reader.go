package framing

import (
	"errors"
	"fmt"
	"io"

	"github.com/codefionn/pytools/internal/consts"
)

// Options bounds the incremental read of a frame.
type Options struct {
	// BufferSize is the size of a single read (default 1KB)
	BufferSize int
	// MaxContentLength rejects frames declaring a larger body (0 = default)
	MaxContentLength int
	// MaxHeaderSize is how many bytes may arrive before the separator (0 = default)
	MaxHeaderSize int
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = consts.BufferSize1KB
	}
	if o.MaxContentLength <= 0 {
		o.MaxContentLength = consts.BufferSize64MB
	}
	if o.MaxHeaderSize <= 0 {
		o.MaxHeaderSize = consts.BufferSize64KB
	}
	return o
}

// ReadFrame reads from r until one complete frame has been received and
// returns its body.
//
// A reader that reaches EOF before sending anything yields io.EOF. EOF in the
// middle of a frame yields an error matching both io.ErrUnexpectedEOF and the
// last decode error. Errors from r (including deadline errors) are returned
// unchanged.
func ReadFrame(r io.Reader, opts Options) (string, error) {
	opts = opts.withDefaults()

	chunk := make([]byte, opts.BufferSize)
	var buf []byte
	lastErr := ErrHeaderMissing

	for {
		n, readErr := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)

			body, err := decode(buf, opts.MaxContentLength)
			switch {
			case err == nil:
				return body, nil
			case errors.Is(err, ErrHeaderMissing):
				if len(buf) > opts.MaxHeaderSize {
					return "", fmt.Errorf("%w: no separator within %d bytes", ErrHeaderMissing, opts.MaxHeaderSize)
				}
			case errors.Is(err, ErrContentIncomplete):
			default:
				return "", err
			}
			lastErr = err
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if len(buf) == 0 {
					return "", io.EOF
				}
				return "", fmt.Errorf("%w: %w", io.ErrUnexpectedEOF, lastErr)
			}
			return "", readErr
		}
	}
}

// WriteFrame writes body as a single frame.
func WriteFrame(w io.Writer, body string) error {
	if _, err := w.Write(Encode(body)); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
