package stl

import (
	"memview/layout"
	"memview/pod"
	"memview/process"
)

// Buckets reads every slot of an open-addressing table in one bulk read and
// returns the values whose flag is not BucketInvalid, in slot order. The slot
// count is checked against MaxElements/BucketWidth before anything is read.
func Buckets[V any](d *Decoder, hdr layout.Buckets) ([]V, error) {
	count, err := VectorCount[layout.BucketSlot[V]](d, hdr.Slots)
	if err != nil || count == 0 {
		return []V{}, err
	}
	if count > d.limits.MaxElements/layout.BucketWidth {
		return []V{}, d.r.ReportCorrupt(process.ProcessMemoryAddress(hdr.Slots.First), "%d bucket slots exceed limit", count)
	}
	slots, err := pod.TryReadArray[layout.BucketSlot[V]](d.r, process.ProcessMemoryAddress(hdr.Slots.First), count)
	if err != nil {
		return []V{}, err
	}

	out := make([]V, 0, int(min(hdr.Count, uint64(len(slots)*layout.BucketWidth))))
	for _, slot := range slots {
		for i, flag := range slot.Flags {
			if flag != layout.BucketInvalid {
				out = append(out, slot.Values[i])
			}
		}
	}
	return out, nil
}
