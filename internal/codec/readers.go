package codec

// readers.go holds the streaming wrappers applied to CSV input before parsing:
//
//   - bomSkipper drops a leading UTF-8 BOM (0xEF 0xBB 0xBF) added by Windows tools
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?' without buffering the file
//
// wrapText applies both in the right order.

import (
	"io"
	"unicode/utf8"
)

// wrapText strips a BOM first, then sanitizes what follows.
func wrapText(r io.Reader) io.Reader {
	return newUTF8Sanitizer(newBOMSkipper(r))
}

// utf8Sanitizer rewrites invalid UTF-8 on the fly. Bytes that may start a
// multi-byte rune split across reads are carried over to the next Read.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

// sanitize rewrites data in place and returns how many bytes are ready.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		if !atEOF {
			if k := incompleteTail(data); k > 0 {
				s.pending = append(s.pending, data[len(data)-k:]...)
				return len(data) - k
			}
		}
		return len(data)
	}

	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])
		if !atEOF && r == utf8.RuneError && expectedLen(data[read]) > len(data)-read {
			s.pending = append(s.pending, data[read:]...)
			return write
		}
		if r == utf8.RuneError && size == 1 {
			// '?' keeps the output no longer than the input.
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// incompleteTail returns how many trailing bytes form the start of a rune
// that has not been fully read yet.
func incompleteTail(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < expectedLen(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// expectedLen is the encoded length of a rune whose first byte is b.
func expectedLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// bomSkipper drops a UTF-8 BOM at the start of the stream.
type bomSkipper struct {
	r       io.Reader
	checked bool
	head    []byte
}

func newBOMSkipper(r io.Reader) *bomSkipper {
	return &bomSkipper{r: r}
}

func (b *bomSkipper) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		buf := make([]byte, 3)
		n, err := io.ReadFull(b.r, buf)
		switch {
		case n == 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF:
		default:
			b.head = buf[:n]
		}
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, err
		}
		if (err == io.EOF || err == io.ErrUnexpectedEOF) && len(b.head) == 0 {
			return 0, io.EOF
		}
	}

	if len(b.head) > 0 {
		n := copy(p, b.head)
		b.head = b.head[n:]
		return n, nil
	}
	return b.r.Read(p)
}
