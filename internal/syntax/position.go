package syntax

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/codefionn/pytools/internal/rpc"
)

// Offset converts a cursor position to a byte offset into source. row is
// 1-based; column is a 0-based count of code points and may point just past
// the end of the line. Positions outside the document are input errors.
func Offset(source string, row, column int) (int, error) {
	if row < 1 {
		return 0, rpc.NewError(rpc.CodeInputError, "row %d is out of range", row)
	}

	start := 0
	for i := 1; i < row; i++ {
		nl := strings.IndexByte(source[start:], '\n')
		if nl < 0 {
			return 0, rpc.NewError(rpc.CodeInputError, "row %d is out of range (document has %d lines)", row, i)
		}
		start += nl + 1
	}

	end := strings.IndexByte(source[start:], '\n')
	if end < 0 {
		end = len(source)
	} else {
		end += start
	}
	line := strings.TrimSuffix(source[start:end], "\r")

	if column < 0 || column > utf8.RuneCountInString(line) {
		return 0, rpc.NewError(rpc.CodeInputError, "column %d is out of range for row %d", column, row)
	}

	offset := start
	for i := 0; i < column; i++ {
		_, size := utf8.DecodeRuneInString(source[offset:])
		offset += size
	}
	return offset, nil
}

// columnAt returns the 0-based code point column of a byte offset.
func columnAt(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	lineStart := strings.LastIndexByte(string(source[:offset]), '\n') + 1
	return utf8.RuneCount(source[lineStart:offset])
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// identifierBefore returns the identifier characters immediately before
// offset and the offset where they start.
func identifierBefore(source string, offset int) (string, int) {
	start := offset
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(source[:start])
		if !isIdentRune(r) {
			break
		}
		start -= size
	}
	return source[start:offset], start
}

// wordAt returns the identifier that contains or ends at offset.
func wordAt(source string, offset int) (string, int) {
	_, start := identifierBefore(source, offset)
	end := offset
	for end < len(source) {
		r, size := utf8.DecodeRuneInString(source[end:])
		if !isIdentRune(r) {
			break
		}
		end += size
	}
	return source[start:end], start
}

// dottedBefore returns the dotted expression ending right before a '.' at
// dot, e.g. "os.path" for "os.path.|". It returns "" when dot does not hold
// a '.' or nothing precedes it.
func dottedBefore(source string, dot int) string {
	if dot <= 0 || dot > len(source) || source[dot-1] != '.' {
		return ""
	}
	end := dot - 1
	start := end
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(source[:start])
		if !isIdentRune(r) && r != '.' {
			break
		}
		start -= size
	}
	expr := strings.Trim(source[start:end], ".")
	if expr == "" || strings.Contains(expr, "..") {
		return ""
	}
	if r, _ := utf8.DecodeRuneInString(expr); unicode.IsDigit(r) {
		return ""
	}
	return expr
}

// lineBefore returns the text of the current line up to offset.
func lineBefore(source string, offset int) string {
	lineStart := strings.LastIndexByte(source[:offset], '\n') + 1
	return source[lineStart:offset]
}
