package scanner

import (
	"memview/pod"
	"memview/process"
)

// ResolveRIP32 resolves a 32-bit instruction-relative operand located at addr,
// as in "mov rax, [rip+disp32]" with the match skipped to the displacement.
// The operand is assumed to be the last one of its instruction.
func ResolveRIP32(r *pod.Reader, addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	disp, err := pod.ReadStruct[int32](r, addr)
	if err != nil {
		return 0, err
	}
	return process.ProcessMemoryAddress(int64(addr) + 4 + int64(disp)), nil
}
