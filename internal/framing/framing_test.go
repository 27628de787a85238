package framing

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, "Content-Length: 11\r\n\r\nhello world", string(Encode("hello world")))
	assert.Equal(t, "Content-Length: 0\r\n\r\n", string(Encode("")))
	// byte length, not rune count
	assert.Equal(t, "Content-Length: 6\r\n\r\nhé€", string(Encode("hé€")))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"complete", "Content-Length: 11\r\n\r\nhello world", "hello world", nil},
		{"empty body", "Content-Length: 0\r\n\r\n", "", nil},
		{"incomplete body", "Content-Length: 11\r\n\r\nhello wo", "", ErrContentIncomplete},
		{"overflow", "Content-Length: 11\r\n\r\nhello worlds", "", ErrContentOverflow},
		{"no separator", "Content-Length: 11\r\n", "", ErrHeaderMissing},
		{"empty buffer", "", "", ErrHeaderMissing},
		{"no content length", "Content-Type: text/plain\r\n\r\nhello", "", ErrContentLengthMissing},
		{"extra headers", "Content-Type: application/json\r\nContent-Length: 2\r\n\r\n{}", "{}", nil},
		{"duplicate equal headers", "Content-Length: 2\r\nContent-Length: 2\r\n\r\n{}", "{}", nil},
		{"conflicting headers", "Content-Length: 2\r\nContent-Length: 3\r\n\r\n{}", "", ErrContentLengthConflict},
		{"lowercase key", "content-length: 2\r\n\r\n{}", "{}", nil},
		{"separator inside body", "Content-Length: 8\r\n\r\nab\r\n\r\ncd", "ab\r\n\r\ncd", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeLengthOverflowsInt(t *testing.T) {
	digits := "99999999999999999999999"
	_, err := Decode([]byte("Content-Length: " + digits + "\r\n\r\n{}"))
	require.ErrorIs(t, err, ErrContentTooLarge)
	assert.Contains(t, err.Error(), digits+" overflows int")
	assert.False(t, Retryable(err))

	_, err = ReadFrame(strings.NewReader("Content-Length: "+digits+"\r\n\r\n{}"), Options{})
	assert.ErrorIs(t, err, ErrContentTooLarge)
}

func TestDecodeRoundTrip(t *testing.T) {
	bodies := []string{
		"",
		"hello world",
		`{"method":"ping","params":{"x":1}}`,
		"unicode: héllo wörld 日本語 🐍",
		"Content-Length: 99\r\n\r\nnested",
		strings.Repeat("x", 10000),
	}

	for _, body := range bodies {
		got, err := Decode(Encode(body))
		require.NoError(t, err)
		assert.Equal(t, body, got)
	}
}

func TestDecodeEveryPrefixIsRetryable(t *testing.T) {
	frame := Encode(`{"result":"héllo"}`)
	for i := 0; i < len(frame); i++ {
		_, err := Decode(frame[:i])
		assert.True(t, Retryable(err), "prefix %d: %v", i, err)
	}
}

func TestReadFrame(t *testing.T) {
	body := `{"method":"document_completion","params":{"source":"import os\nos.","row":2,"column":3}}`
	frame := Encode(body)

	t.Run("single read", func(t *testing.T) {
		got, err := ReadFrame(bytes.NewReader(frame), Options{BufferSize: len(frame) * 2})
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("one byte at a time", func(t *testing.T) {
		got, err := ReadFrame(iotest.OneByteReader(bytes.NewReader(frame)), Options{})
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("small buffer", func(t *testing.T) {
		got, err := ReadFrame(bytes.NewReader(frame), Options{BufferSize: 3})
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("data with eof", func(t *testing.T) {
		got, err := ReadFrame(iotest.DataErrReader(bytes.NewReader(frame)), Options{})
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})
}

func TestReadFrameErrors(t *testing.T) {
	t.Run("empty stream", func(t *testing.T) {
		_, err := ReadFrame(strings.NewReader(""), Options{})
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("eof mid body", func(t *testing.T) {
		_, err := ReadFrame(strings.NewReader("Content-Length: 11\r\n\r\nhello"), Options{})
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.ErrorIs(t, err, ErrContentIncomplete)
	})

	t.Run("eof mid header", func(t *testing.T) {
		_, err := ReadFrame(strings.NewReader("Content-Len"), Options{})
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.ErrorIs(t, err, ErrHeaderMissing)
	})

	t.Run("overflow", func(t *testing.T) {
		_, err := ReadFrame(strings.NewReader("Content-Length: 2\r\n\r\n{}}"), Options{})
		assert.ErrorIs(t, err, ErrContentOverflow)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := ReadFrame(strings.NewReader("Content-Length: 4096\r\n\r\n"), Options{MaxContentLength: 1024})
		assert.ErrorIs(t, err, ErrContentTooLarge)
	})

	t.Run("header never terminated", func(t *testing.T) {
		_, err := ReadFrame(strings.NewReader(strings.Repeat("X", 200)), Options{BufferSize: 16, MaxHeaderSize: 64})
		assert.ErrorIs(t, err, ErrHeaderMissing)
		assert.NotErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("reader error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := ReadFrame(iotest.ErrReader(boom), Options{})
		assert.ErrorIs(t, err, boom)
	})
}

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, "hello world"))
	assert.Equal(t, "Content-Length: 11\r\n\r\nhello world", buf.String())
}
