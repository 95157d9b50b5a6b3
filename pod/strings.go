package pod

import (
	"bytes"

	"memview/process"

	"golang.org/x/text/encoding/unicode"
)

const probePage = 0x1000

// readUntil reads up to maxBytes at addr one page at a time, stopping at the
// first chunk for which done reports a terminator index. It never reads past
// maxBytes and never touches a page beyond the one holding the terminator.
func (r *Reader) readUntil(addr process.ProcessMemoryAddress, maxBytes int, done func([]byte) int) ([]byte, error) {
	buf := make([]byte, 0, min(maxBytes, probePage))
	cur := addr
	for len(buf) < maxBytes {
		n := probePage - int(uint64(cur)%probePage)
		n = min(n, maxBytes-len(buf))

		chunk, err := r.ReadBytes(cur, process.ProcessMemorySize(n))
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
		if end := done(buf); end >= 0 {
			return buf[:end], nil
		}
		cur = cur.Add(process.ProcessMemorySize(n))
	}
	return nil, r.ReportCorrupt(addr, "no terminator within %d bytes", maxBytes)
}

// ReadBoundedString reads a NUL-terminated narrow string of at most maxBytes
// bytes (terminator included). It returns "" when no terminator is found.
func (r *Reader) ReadBoundedString(addr process.ProcessMemoryAddress, maxBytes int) (string, error) {
	if maxBytes <= 0 {
		return "", nil
	}
	data, err := r.readUntil(addr, maxBytes, func(b []byte) int {
		return bytes.IndexByte(b, 0)
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBoundedUTF16 reads a NUL-terminated little-endian UTF-16 string of at
// most maxChars code units (terminator included).
func (r *Reader) ReadBoundedUTF16(addr process.ProcessMemoryAddress, maxChars int) (string, error) {
	if maxChars <= 0 {
		return "", nil
	}
	data, err := r.readUntil(addr, maxChars*2, func(b []byte) int {
		for i := 0; i+1 < len(b); i += 2 {
			if b[i] == 0 && b[i+1] == 0 {
				return i
			}
		}
		return -1
	})
	if err != nil {
		return "", err
	}
	return DecodeUTF16(data), nil
}

// DecodeUTF16 converts little-endian UTF-16 bytes to a Go string. Unpaired
// surrogates become U+FFFD.
func DecodeUTF16(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(out)
}
