package stl

import (
	"memview/layout"
	"memview/pod"
	"memview/process"
)

// DecodeString decodes a basic_string header of charWidth-byte characters.
// Capacities at or below the inline threshold are decoded from the header's
// own buffer with no further reads; anything larger costs exactly one read of
// Length*charWidth bytes at the heap pointer.
func DecodeString(d *Decoder, hdr layout.String, charWidth int) (string, error) {
	if charWidth != 1 && charWidth != 2 {
		return "", d.r.ReportCorrupt(0, "unsupported character width %d", charWidth)
	}
	if hdr.Length > hdr.Capacity {
		return "", d.r.ReportCorrupt(hdr.Pointer(), "string length %d exceeds capacity %d", hdr.Length, hdr.Capacity)
	}

	var raw []byte
	if hdr.Capacity <= layout.InlineCapacity(charWidth) {
		n := hdr.Length * uint64(charWidth)
		if n > layout.StringInline {
			return "", d.r.ReportCorrupt(0, "inline string of %d bytes", n)
		}
		raw = hdr.Buffer[:n]
	} else {
		if hdr.Length > uint64(d.limits.MaxStringBytes/charWidth) {
			return "", d.r.ReportCorrupt(hdr.Pointer(), "string length %d exceeds limit", hdr.Length)
		}
		var err error
		raw, err = pod.TryReadArray[byte](d.r, hdr.Pointer(), int(hdr.Length)*charWidth)
		if err != nil {
			return "", err
		}
	}

	if charWidth == 2 {
		return pod.DecodeUTF16(raw), nil
	}
	return string(raw), nil
}

// String decodes a narrow std::string header.
func String(d *Decoder, hdr layout.String) (string, error) {
	return DecodeString(d, hdr, 1)
}

// WString decodes a std::wstring header.
func WString(d *Decoder, hdr layout.String) (string, error) {
	return DecodeString(d, hdr, 2)
}

// StringAt reads the string header at addr and decodes it.
func StringAt(d *Decoder, addr process.ProcessMemoryAddress, charWidth int) (string, error) {
	hdr, err := pod.ReadStruct[layout.String](d.r, addr)
	if err != nil {
		return "", err
	}
	return DecodeString(d, hdr, charWidth)
}
