package stl

import (
	"memview/layout"
	"memview/pod"
	"memview/process"
)

// VectorCount returns the element count of hdr for elements of type T.
// An inverted header, a distance that is not a whole number of elements, or
// a count above MaxElements is CorruptData.
func VectorCount[T any](d *Decoder, hdr layout.Vector) (int, error) {
	size := int64(pod.SizeOf[T]())
	if size == 0 {
		return 0, nil
	}
	n := hdr.Bytes()
	switch {
	case hdr.First == 0 && hdr.Last == 0:
		return 0, nil
	case n < 0:
		return 0, d.r.ReportCorrupt(process.ProcessMemoryAddress(hdr.First), "vector last 0x%x before first 0x%x", hdr.Last, hdr.First)
	case n%size != 0:
		return 0, d.r.ReportCorrupt(process.ProcessMemoryAddress(hdr.First), "vector span %d is not a multiple of %d", n, size)
	case n/size > int64(d.limits.MaxElements):
		return 0, d.r.ReportCorrupt(process.ProcessMemoryAddress(hdr.First), "vector of %d elements exceeds limit %d", n/size, d.limits.MaxElements)
	}
	return int(n / size), nil
}

// Vector decodes the elements of hdr with one read. On any failure it
// returns an empty slice and the error.
func Vector[T any](d *Decoder, hdr layout.Vector) ([]T, error) {
	count, err := VectorCount[T](d, hdr)
	if err != nil || count == 0 {
		return []T{}, err
	}
	return pod.TryReadArray[T](d.r, process.ProcessMemoryAddress(hdr.First), count)
}

// VectorAt reads the vector header at addr and decodes its elements.
func VectorAt[T any](d *Decoder, addr process.ProcessMemoryAddress) ([]T, error) {
	hdr, err := pod.ReadStruct[layout.Vector](d.r, addr)
	if err != nil {
		return []T{}, err
	}
	return Vector[T](d, hdr)
}
