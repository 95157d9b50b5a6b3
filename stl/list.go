package stl

import (
	"memview/layout"
	"memview/pod"
	"memview/process"
)

// List walks a doubly linked list from its sentinel until the sentinel comes
// around again. A null link before that means the list changed under the
// walk: the values collected so far are returned without error. A walk that
// runs past Size+TreeMargin nodes is CorruptData.
func List[T any](d *Decoder, hdr layout.List) ([]T, error) {
	if hdr.Head == 0 {
		return []T{}, nil
	}
	if hdr.Size > uint64(d.limits.MaxElements) {
		return []T{}, d.r.ReportCorrupt(process.ProcessMemoryAddress(hdr.Head), "list of %d elements exceeds limit %d", hdr.Size, d.limits.MaxElements)
	}

	head, err := pod.ReadStruct[layout.ListNode[T]](d.r, process.ProcessMemoryAddress(hdr.Head))
	if err != nil {
		return []T{}, err
	}

	bound := int(hdr.Size) + d.limits.TreeMargin
	out := make([]T, 0, hdr.Size)
	for cur := head.Next; cur != hdr.Head; {
		if cur == 0 {
			return out, nil
		}
		if len(out) >= bound {
			return out, d.r.ReportCorrupt(process.ProcessMemoryAddress(hdr.Head), "list walk exceeded %d nodes", bound)
		}
		node, err := pod.ReadStruct[layout.ListNode[T]](d.r, process.ProcessMemoryAddress(cur))
		if err != nil {
			return out, err
		}
		out = append(out, node.Value)
		cur = node.Next
	}
	return out, nil
}

// ListAt reads the list header at addr and walks it.
func ListAt[T any](d *Decoder, addr process.ProcessMemoryAddress) ([]T, error) {
	hdr, err := pod.ReadStruct[layout.List](d.r, addr)
	if err != nil {
		return []T{}, err
	}
	return List[T](d, hdr)
}
