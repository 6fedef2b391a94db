package tabular

// streaming.go cleans up CSV input as it is read:
//
//   - a leading UTF-8 byte order mark (common in spreadsheet exports) is dropped
//   - invalid UTF-8 bytes are replaced with '?', and a warning with the
//     replaced byte count is logged once the stream ends
//
// Both work on the stream, so memory use does not grow with file size.

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Sanitize wraps r so that the BOM is skipped and invalid UTF-8 is replaced.
func Sanitize(r io.Reader) io.Reader {
	return newUTF8Sanitizer(skipBOM(r))
}

// skipBOM returns a reader positioned after the UTF-8 BOM, if r starts with one.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' on the fly.
// A multi-byte sequence split across reads is carried to the next read.
type utf8Sanitizer struct {
	reader   io.Reader
	pending  []byte
	replaced int
	reported bool
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n > 0 && !isASCII(p[:n]) {
		n = s.sanitize(p[:n], err == io.EOF)
	}
	if err == io.EOF {
		s.report()
	}
	return n, err
}

// report logs the replaced byte count once, after the last read.
func (s *utf8Sanitizer) report() {
	if s.reported || s.replaced == 0 {
		return
	}
	s.reported = true
	slog.Warn("invalid UTF-8 replaced in input", "bytes", s.replaced)
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes to emit.
// Unless atEOF, a trailing incomplete sequence is held back in pending.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		if !atEOF {
			if trailing := incompleteTail(data); trailing > 0 {
				s.pending = append(s.pending, data[len(data)-trailing:]...)
				return len(data) - trailing
			}
		}
		return len(data)
	}

	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])

		if !atEOF && !utf8.FullRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			s.replaced++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// incompleteTail returns how many bytes at the end of data begin a multi-byte
// sequence that is not yet complete.
func incompleteTail(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if utf8.RuneStart(b) {
			if !utf8.FullRune(data[len(data)-i:]) {
				return i
			}
			return 0
		}
	}
	return 0
}
