package stl

import (
	"memview/layout"
	"memview/pod"
	"memview/process"
)

// Order selects the traversal order of a tree walk.
type Order int

const (
	InOrder Order = iota
	PreOrder
)

// TreeOptions tunes a tree walk.
type TreeOptions[K any] struct {
	Order Order
	// Filter, when set, drops pairs whose key it rejects.
	Filter func(K) bool
	// Margin overrides the decoder's TreeMargin when positive.
	Margin int
}

type treeWalk[K, V any] struct {
	d       *Decoder
	head    uint64
	bound   int
	visited map[uint64]struct{}
}

// leaf reports whether addr terminates a branch without reading it.
func (w *treeWalk[K, V]) leaf(addr uint64) bool {
	return addr == 0 || addr == w.head
}

// visit reads the node at addr, enforcing the visit bound and cycle check.
// ok is false for nil nodes.
func (w *treeWalk[K, V]) visit(addr uint64) (node layout.TreeNode[K, V], ok bool, err error) {
	if _, seen := w.visited[addr]; seen {
		return node, false, w.d.r.ReportCorrupt(process.ProcessMemoryAddress(addr), "tree node revisited")
	}
	if len(w.visited) >= w.bound {
		return node, false, w.d.r.ReportCorrupt(process.ProcessMemoryAddress(w.head), "tree walk exceeded %d nodes", w.bound)
	}
	node, err = pod.ReadStruct[layout.TreeNode[K, V]](w.d.r, process.ProcessMemoryAddress(addr))
	if err != nil {
		return node, false, err
	}
	if node.IsNil != 0 {
		return node, false, nil
	}
	w.visited[addr] = struct{}{}
	return node, true, nil
}

// Tree flattens a red-black tree map into its pairs, starting at the head's
// parent (the root). Nil nodes are leaves. The walk visits at most
// Size+Margin nodes; a corrupt or cyclic tree aborts with CorruptData and
// returns the pairs collected so far.
func Tree[K, V any](d *Decoder, hdr layout.Map, opts TreeOptions[K]) ([]layout.Pair[K, V], error) {
	if hdr.Head == 0 || hdr.Size == 0 {
		return []layout.Pair[K, V]{}, nil
	}
	if hdr.Size > uint64(d.limits.MaxElements) {
		return []layout.Pair[K, V]{}, d.r.ReportCorrupt(process.ProcessMemoryAddress(hdr.Head), "map of %d elements exceeds limit %d", hdr.Size, d.limits.MaxElements)
	}

	head, err := pod.ReadStruct[layout.TreeNode[K, V]](d.r, process.ProcessMemoryAddress(hdr.Head))
	if err != nil {
		return []layout.Pair[K, V]{}, err
	}

	margin := d.limits.TreeMargin
	if opts.Margin > 0 {
		margin = opts.Margin
	}
	w := &treeWalk[K, V]{
		d:       d,
		head:    hdr.Head,
		bound:   int(hdr.Size) + margin,
		visited: make(map[uint64]struct{}, hdr.Size),
	}

	out := make([]layout.Pair[K, V], 0, hdr.Size)
	emit := func(p layout.Pair[K, V]) {
		if opts.Filter == nil || opts.Filter(p.Key) {
			out = append(out, p)
		}
	}

	if opts.Order == PreOrder {
		err = w.preOrder(head.Parent, emit)
	} else {
		err = w.inOrder(head.Parent, emit)
	}
	return out, err
}

func (w *treeWalk[K, V]) inOrder(root uint64, emit func(layout.Pair[K, V])) error {
	var stack []layout.TreeNode[K, V]
	cur := root
	for {
		for !w.leaf(cur) {
			node, ok, err := w.visit(cur)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			stack = append(stack, node)
			cur = node.Left
		}
		if len(stack) == 0 {
			return nil
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		emit(node.Pair)
		cur = node.Right
	}
}

func (w *treeWalk[K, V]) preOrder(root uint64, emit func(layout.Pair[K, V])) error {
	stack := []uint64{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if w.leaf(cur) {
			continue
		}
		node, ok, err := w.visit(cur)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		emit(node.Pair)
		stack = append(stack, node.Right, node.Left)
	}
	return nil
}

// TreeAt reads the map header at addr and flattens it.
func TreeAt[K, V any](d *Decoder, addr process.ProcessMemoryAddress, opts TreeOptions[K]) ([]layout.Pair[K, V], error) {
	hdr, err := pod.ReadStruct[layout.Map](d.r, addr)
	if err != nil {
		return []layout.Pair[K, V]{}, err
	}
	return Tree[K, V](d, hdr, opts)
}
