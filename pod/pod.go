package pod

import (
	"fmt"
	"reflect"
	"unsafe"

	"memview/process"
)

// SizeOf returns the in-memory size of T.
func SizeOf[T any]() process.ProcessMemorySize {
	var t T
	return process.ProcessMemorySize(unsafe.Sizeof(t))
}

// ReadStruct copies sizeof(T) bytes at addr into a new T.
// T must be plain data: no Go pointers, slices, strings, maps or interfaces.
func ReadStruct[T any](r *Reader, addr process.ProcessMemoryAddress) (T, error) {
	var zero T
	if hasPointers[T]() {
		return zero, fmt.Errorf("ReadStruct: %s contains pointers", reflect.TypeFor[T]())
	}
	size := SizeOf[T]()
	if size == 0 {
		return zero, nil
	}

	data, err := r.ReadBytes(addr, size)
	if err != nil {
		return zero, err
	}
	return Decode[T](data), nil
}

// TryReadArray reads count consecutive T values at addr in one read.
func TryReadArray[T any](r *Reader, addr process.ProcessMemoryAddress, count int) ([]T, error) {
	if hasPointers[T]() {
		return []T{}, fmt.Errorf("ReadArray: %s contains pointers", reflect.TypeFor[T]())
	}
	size := SizeOf[T]()
	if count <= 0 || size == 0 {
		return []T{}, nil
	}
	if uint64(count) > uint64(r.limits.MaxReadBytes/size) {
		return []T{}, r.ReportCorrupt(addr, "array of %d x %d bytes exceeds read limit", count, size)
	}

	data, err := r.ReadBytes(addr, size*process.ProcessMemorySize(count))
	if err != nil {
		return []T{}, err
	}

	out := make([]T, count)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), len(data)), data)
	return out, nil
}

// ReadArray is TryReadArray with the failure already accounted for: it
// returns an empty slice when the read fails.
func ReadArray[T any](r *Reader, addr process.ProcessMemoryAddress, count int) []T {
	out, _ := TryReadArray[T](r, addr, count)
	return out
}

// Decode reinterprets the first sizeof(T) bytes of data as a T. Short input
// leaves the remaining bytes zero.
func Decode[T any](data []byte) T {
	var t T
	size := int(unsafe.Sizeof(t))
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&t)), size), data)
	return t
}

// Encode serializes a plain-data value using its in-memory layout.
func Encode[T any](v T) []byte {
	size := int(unsafe.Sizeof(v))
	if size == 0 {
		return []byte{}
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(&v)), size))
	return out
}

// hasPointers reports whether T (recursively) contains any pointer-like fields.
func hasPointers[T any]() bool {
	return typeHasPointers(reflect.TypeFor[T]())
}

func typeHasPointers(rt reflect.Type) bool {
	switch rt.Kind() {
	case reflect.Ptr, reflect.UnsafePointer, reflect.Interface, reflect.Func, reflect.Map, reflect.Slice, reflect.String, reflect.Chan:
		return true
	case reflect.Array:
		return typeHasPointers(rt.Elem())
	case reflect.Struct:
		for i := 0; i < rt.NumField(); i++ {
			if typeHasPointers(rt.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
