// Package layout describes the byte shapes of native standard-library
// containers as the 64-bit MSVC runtime lays them out, and the external
// field-layout schema used to locate fields inside application structs.
//
// Every type here is plain data: it is copied byte-for-byte out of remote
// memory and must not contain Go pointers, slices, strings or maps.
package layout

import (
	"encoding/binary"
	"unsafe"

	"memview/process"
)

// Vector is the header of std::vector<T>: begin, end and end-of-storage.
type Vector struct {
	First uint64
	Last  uint64
	End   uint64
}

// Bytes returns Last-First, or a negative value when the header is inverted.
func (v Vector) Bytes() int64 {
	return int64(v.Last) - int64(v.First)
}

// List is the header of std::list<T>: the sentinel node and the element count.
type List struct {
	Head uint64
	Size uint64
}

// ListNode is a node of a doubly linked std::list<T>.
type ListNode[T any] struct {
	Next  uint64
	Prev  uint64
	Value T
}

// Map is the header of std::map<K,V> / std::set<K>: the head sentinel and the element count.
// The head's Parent is the root of the tree.
type Map struct {
	Head uint64
	Size uint64
}

// Pair is the value_type of an ordered map. Nesting the key and value in their
// own struct gives the pair the alignment of its widest member, as in C++.
type Pair[K, V any] struct {
	Key   K
	Value V
}

// TreeNode is a red-black tree node of std::map<K,V>.
type TreeNode[K, V any] struct {
	Left   uint64
	Parent uint64
	Right  uint64
	Color  uint8
	IsNil  uint8
	Pair   Pair[K, V]
}

// BucketWidth is the number of packed entries in one bucket slot.
const BucketWidth = 8

// BucketInvalid marks an empty entry in a bucket slot's flag array.
const BucketInvalid uint8 = 0xFF

// BucketSlot is one slot of an open-addressing hash table: eight validity
// flags followed by eight values.
type BucketSlot[V any] struct {
	Flags  [BucketWidth]uint8
	Values [BucketWidth]V
}

// Buckets is the header of an open-addressing table whose slots live in a vector.
type Buckets struct {
	Slots Vector
	Count uint64
}

// StringInline is the size of the in-place buffer of std::basic_string.
const StringInline = 16

// String is the header of std::basic_string<CharT>. While Capacity is at or
// below InlineCapacity the characters live in Buffer itself; otherwise the
// first eight bytes of Buffer are a pointer to the heap allocation.
type String struct {
	Buffer   [StringInline]byte
	Length   uint64
	Capacity uint64
}

// InlineCapacity is the small-string threshold for a character width in bytes.
// Narrow strings keep a terminator in the buffer, so 15 characters fit. Wide
// strings are inline up to 8 characters; MSVC never reports a heap capacity
// of 8 for them, so this agrees with its 7-character buffer.
func InlineCapacity(charWidth int) uint64 {
	switch {
	case charWidth <= 0:
		return 0
	case charWidth == 1:
		return StringInline - 1
	}
	return uint64(StringInline / charWidth)
}

// Pointer returns the heap pointer stored in the buffer of a long string.
func (s String) Pointer() process.ProcessMemoryAddress {
	return process.ProcessMemoryAddress(binary.LittleEndian.Uint64(s.Buffer[:8]))
}

// SizeOf returns the in-memory size of T.
func SizeOf[T any]() process.ProcessMemorySize {
	var t T
	return process.ProcessMemorySize(unsafe.Sizeof(t))
}
